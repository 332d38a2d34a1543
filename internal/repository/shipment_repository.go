package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const shipmentColumns = `id, sto_number, contract_id, contract_number, po_number, vessel_name, voyage,
	loading_port, discharge_port, bl_number, bl_date, bl_quantity, etd, eta, source_batch_id,
	created_at, updated_at`

var shipmentUpsert = upsertStatement{
	table:     "shipments",
	keyColumn: "sto_number",
	columns: []string{
		"id", "sto_number", "contract_id", "contract_number", "po_number", "vessel_name", "voyage",
		"loading_port", "discharge_port", "bl_number", "bl_date", "bl_quantity", "etd", "eta",
		"source_batch_id",
	},
	mutable: []string{
		"contract_id", "contract_number", "po_number", "vessel_name", "voyage", "loading_port",
		"discharge_port", "bl_number", "bl_date", "bl_quantity", "etd", "eta",
	},
}

type shipmentRepository struct {
	q db.DBTX
}

// NewShipmentRepository binds a shipment repository to a pool or transaction.
func NewShipmentRepository(q db.DBTX) ShipmentRepository {
	return &shipmentRepository{q: q}
}

func (r *shipmentRepository) GetBySTO(ctx context.Context, stoNumber string) (domain.Shipment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE sto_number = $1`, stoNumber)
	shipment, err := scanShipment(row)
	if err != nil {
		return domain.Shipment{}, wrapNotFound(err, fmt.Sprintf("shipment %q", stoNumber))
	}
	return shipment, nil
}

func (r *shipmentRepository) Upsert(ctx context.Context, s domain.Shipment) (domain.UpsertResult, error) {
	args := []any{
		newID(s.ID),
		s.STONumber,
		uuidArg(s.ContractID),
		textArg(s.ContractNumber),
		textArg(s.PONumber),
		textArg(s.VesselName),
		textArg(s.Voyage),
		textArg(s.LoadingPort),
		textArg(s.DischargePort),
		textArg(s.BLNumber),
		dateArg(s.BLDate),
		decimalArg(s.BLQuantity),
		dateArg(s.ETD),
		dateArg(s.ETA),
		batchArg(s.SourceBatchID),
	}
	return shipmentUpsert.exec(ctx, r.q, s.STONumber, args)
}

func (r *shipmentRepository) LinkContract(ctx context.Context, contract domain.Contract) (int64, error) {
	return linkContract(ctx, r.q, "shipments", contract)
}

func scanShipment(row pgx.Row) (domain.Shipment, error) {
	var s domain.Shipment
	var contractID, sourceBatch pgtype.UUID
	var number, po, vessel, voyage, loadingPort, dischargePort, blNumber pgtype.Text
	var blDate, etd, eta pgtype.Date
	var blQuantity pgtype.Numeric
	err := row.Scan(
		&s.ID, &s.STONumber, &contractID, &number, &po, &vessel, &voyage,
		&loadingPort, &dischargePort, &blNumber, &blDate, &blQuantity, &etd, &eta, &sourceBatch,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Shipment{}, err
	}

	s.ContractID = uuidValue(contractID)
	s.ContractNumber = number.String
	s.PONumber = po.String
	s.VesselName = vessel.String
	s.Voyage = voyage.String
	s.LoadingPort = loadingPort.String
	s.DischargePort = dischargePort.String
	s.BLNumber = blNumber.String
	s.BLDate = dateValue(blDate)
	s.BLQuantity = decimalValue(blQuantity)
	s.ETD = dateValue(etd)
	s.ETA = dateValue(eta)
	if id := uuidValue(sourceBatch); id != nil {
		s.SourceBatchID = *id
	}
	return s, nil
}
