package repository

import (
	"context"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/domain"
)

var truckingUpsert = upsertStatement{
	table:     "trucking_operations",
	keyColumn: "trip_id",
	columns: []string{
		"id", "trip_id", "contract_id", "contract_number", "po_number", "sto_number", "truck_number",
		"transporter", "driver", "origin", "destination", "loading_date", "unloading_date",
		"quantity_loaded", "quantity_unloaded", "source_batch_id",
	},
	mutable: []string{
		"contract_id", "contract_number", "po_number", "sto_number", "truck_number", "transporter",
		"driver", "origin", "destination", "loading_date", "unloading_date", "quantity_loaded",
		"quantity_unloaded",
	},
}

type truckingOperationRepository struct {
	q db.DBTX
}

// NewTruckingOperationRepository binds a trucking repository to a pool or transaction.
func NewTruckingOperationRepository(q db.DBTX) TruckingOperationRepository {
	return &truckingOperationRepository{q: q}
}

func (r *truckingOperationRepository) Upsert(ctx context.Context, op domain.TruckingOperation) (domain.UpsertResult, error) {
	args := []any{
		newID(op.ID),
		op.TripID,
		uuidArg(op.ContractID),
		textArg(op.ContractNumber),
		textArg(op.PONumber),
		textArg(op.STONumber),
		textArg(op.TruckNumber),
		textArg(op.Transporter),
		textArg(op.Driver),
		textArg(op.Origin),
		textArg(op.Destination),
		dateArg(op.LoadingDate),
		dateArg(op.UnloadingDate),
		decimalArg(op.QuantityLoaded),
		decimalArg(op.QuantityUnloaded),
		batchArg(op.SourceBatchID),
	}
	return truckingUpsert.exec(ctx, r.q, op.TripID, args)
}

func (r *truckingOperationRepository) LinkContract(ctx context.Context, contract domain.Contract) (int64, error) {
	return linkContract(ctx, r.q, "trucking_operations", contract)
}
