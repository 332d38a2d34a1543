package distribution

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/repository/memrepo"
	"github.com/rpattn/sapingest/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDistributor(t *testing.T) (*Distributor, *memrepo.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := memrepo.NewStore()
	return NewDistributor(store, WithLogger(logger)), store
}

func fullRecord() domain.ParsedRecord {
	return domain.ParsedRecord{
		RowNumber: 5,
		Contract: domain.ContractFields{
			ContractNumber: "CT-1001",
			PONumber:       "4500012345",
			STONumber:      "STO-77",
			Supplier:       "PT Sawit Jaya",
			Product:        "CPO",
			Quantity:       "1,000.000",
			Unit:           "MT",
			Price:          "850.50",
			Currency:       "usd",
			Incoterm:       "fob",
			DeliveryStart:  "01.03.2024",
			DeliveryEnd:    "31.03.2024",
		},
		Shipment: domain.ShipmentFields{
			STONumber:   "STO-77",
			VesselName:  "MT Ocean Star",
			LoadingPort: "Dumai",
			BLQuantity:  "998.5",
			ETD:         "2024-03-10",
			ETA:         "2024-03-18",
		},
		Trucking: []domain.TruckingFields{
			{TripID: "TRIP-1", TruckNumber: "BM 1234 XY", QuantityLoaded: "30.1", LoadingDate: "05/03/2024"},
			{TripID: "TRIP-2", TruckNumber: "BM 9876 ZZ", QuantityLoaded: "29.8"},
		},
		Quality: domain.QualityFields{
			Location: "Dumai",
			Surveyor: "Sucofindo",
			FFA:      "3.5",
			Moisture: "0.15",
		},
		Raw: domain.RawRow{"Contract": "CT-1001"},
	}
}

func TestDistributeWritesEveryEligibleEntity(t *testing.T) {
	d, store := newTestDistributor(t)
	batchID := uuid.New()

	result, err := d.Distribute(context.Background(), batchID, fullRecord())
	require.NoError(t, err)
	assert.Empty(t, result.Skipped)
	require.Len(t, result.Changes, 5)
	for _, change := range result.Changes {
		assert.Equal(t, domain.ChangeCreated, change.Action, "%s %s", change.Kind, change.Key)
	}

	contracts := store.Contracts()
	require.Len(t, contracts, 1)
	contract := contracts[0]
	assert.Equal(t, "CT-1001", contract.ContractKey)
	assert.Equal(t, "USD", contract.Currency)
	assert.True(t, contract.Quantity.Decimal.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, batchID, contract.SourceBatchID)

	shipments := store.Shipments()
	require.Len(t, shipments, 1)
	require.NotNil(t, shipments[0].ContractID)
	assert.Equal(t, contract.ID, *shipments[0].ContractID)

	trips := store.TruckingOperations()
	require.Len(t, trips, 2)
	for _, trip := range trips {
		require.NotNil(t, trip.ContractID)
		assert.Equal(t, contract.ID, *trip.ContractID)
	}

	surveys := store.QualitySurveys()
	require.Len(t, surveys, 1)
	assert.Equal(t, "STO-77/DUMAI", surveys[0].SurveyKey)
	require.NotNil(t, surveys[0].ShipmentID)
	assert.Equal(t, shipments[0].ID, *surveys[0].ShipmentID)
}

func TestDistributeIsIdempotent(t *testing.T) {
	d, store := newTestDistributor(t)
	ctx := context.Background()

	first, err := d.Distribute(ctx, uuid.New(), fullRecord())
	require.NoError(t, err)
	before := store.Contracts()[0]

	second, err := d.Distribute(ctx, uuid.New(), fullRecord())
	require.NoError(t, err)

	assert.Len(t, store.Contracts(), 1)
	assert.Len(t, store.Shipments(), 1)
	assert.Len(t, store.TruckingOperations(), 2)
	assert.Len(t, store.QualitySurveys(), 1)

	require.Len(t, second.Changes, len(first.Changes))
	for i, change := range second.Changes {
		assert.Equal(t, first.Changes[i].ID, change.ID)
		assert.Equal(t, domain.ChangeUnchanged, change.Action, "%s %s", change.Kind, change.Key)
	}

	after := store.Contracts()[0]
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, before.SourceBatchID, after.SourceBatchID)
}

func TestDistributeSkipsContractWithoutKey(t *testing.T) {
	d, store := newTestDistributor(t)

	record := fullRecord()
	record.Contract.ContractNumber = ""
	record.Contract.PONumber = "  "

	result, err := d.Distribute(context.Background(), uuid.New(), record)
	require.NoError(t, err)
	assert.Contains(t, result.Skipped, domain.EntityContract)
	assert.Empty(t, store.Contracts())
	require.Len(t, store.Shipments(), 1)
	assert.Nil(t, store.Shipments()[0].ContractID)
}

func TestDistributeBlankCellsKeepStoredValues(t *testing.T) {
	d, store := newTestDistributor(t)
	ctx := context.Background()

	_, err := d.Distribute(ctx, uuid.New(), fullRecord())
	require.NoError(t, err)

	update := domain.ParsedRecord{
		RowNumber: 9,
		Contract:  domain.ContractFields{ContractNumber: "CT-1001", Price: "900"},
	}
	result, err := d.Distribute(ctx, uuid.New(), update)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, domain.ChangeUpdated, result.Changes[0].Action)

	contract := store.Contracts()[0]
	assert.Equal(t, "CPO", contract.Product)
	assert.Equal(t, "4500012345", contract.PONumber)
	assert.True(t, contract.Price.Decimal.Equal(decimal.NewFromInt(900)))
}

func TestShipmentBeforeContractIsLinkedLater(t *testing.T) {
	d, store := newTestDistributor(t)
	ctx := context.Background()

	shipmentOnly := domain.ParsedRecord{
		RowNumber: 3,
		Contract:  domain.ContractFields{STONumber: "STO-5"},
		Shipment:  domain.ShipmentFields{STONumber: "STO-5", VesselName: "MV Early"},
		Trucking:  []domain.TruckingFields{{TripID: "T-5"}},
	}
	_, err := d.Distribute(ctx, uuid.New(), shipmentOnly)
	require.NoError(t, err)
	require.Nil(t, store.Shipments()[0].ContractID)
	require.Nil(t, store.TruckingOperations()[0].ContractID)

	contractOnly := domain.ParsedRecord{
		RowNumber: 4,
		Contract:  domain.ContractFields{ContractNumber: "CT-5", STONumber: "STO-5"},
	}
	result, err := d.Distribute(ctx, uuid.New(), contractOnly)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Linked)

	contract := store.Contracts()[0]
	require.NotNil(t, store.Shipments()[0].ContractID)
	assert.Equal(t, contract.ID, *store.Shipments()[0].ContractID)
	require.NotNil(t, store.TruckingOperations()[0].ContractID)
	assert.Equal(t, contract.ID, *store.TruckingOperations()[0].ContractID)
}

func TestContractNumberRekeysPOContract(t *testing.T) {
	d, store := newTestDistributor(t)
	ctx := context.Background()

	_, err := d.Distribute(ctx, uuid.New(), domain.ParsedRecord{
		RowNumber: 2,
		Contract:  domain.ContractFields{PONumber: "450001", Product: "PKO"},
	})
	require.NoError(t, err)
	original := store.Contracts()[0]
	require.Equal(t, "PO-450001", original.ContractKey)

	result, err := d.Distribute(ctx, uuid.New(), domain.ParsedRecord{
		RowNumber: 3,
		Contract:  domain.ContractFields{ContractNumber: "CT-9", PONumber: "450001"},
	})
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, domain.ChangeRekeyed, result.Changes[0].Action)

	contracts := store.Contracts()
	require.Len(t, contracts, 1)
	assert.Equal(t, original.ID, contracts[0].ID)
	assert.Equal(t, "CT-9", contracts[0].ContractKey)
	assert.Equal(t, "CT-9", contracts[0].ContractNumber)
	assert.Equal(t, "PKO", contracts[0].Product)

	// A later PO-only row folds into the re-keyed contract.
	_, err = d.Distribute(ctx, uuid.New(), domain.ParsedRecord{
		RowNumber: 4,
		Contract:  domain.ContractFields{PONumber: "450001", Unit: "MT"},
	})
	require.NoError(t, err)
	contracts = store.Contracts()
	require.Len(t, contracts, 1)
	assert.Equal(t, "MT", contracts[0].Unit)
}

func TestConflictingContractKeysFailTheRow(t *testing.T) {
	d, store := newTestDistributor(t)
	ctx := context.Background()

	_, err := d.Distribute(ctx, uuid.New(), domain.ParsedRecord{Contract: domain.ContractFields{PONumber: "77"}})
	require.NoError(t, err)
	_, err = d.Distribute(ctx, uuid.New(), domain.ParsedRecord{Contract: domain.ContractFields{ContractNumber: "CT-77"}})
	require.NoError(t, err)

	_, err = d.Distribute(ctx, uuid.New(), domain.ParsedRecord{
		Contract: domain.ContractFields{ContractNumber: "CT-77", PONumber: "77"},
		Shipment: domain.ShipmentFields{STONumber: "STO-77"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContractKeyConflict)
	assert.Len(t, store.Contracts(), 2)
	assert.Empty(t, store.Shipments())
}

func TestValidationFailureRollsBackRow(t *testing.T) {
	d, store := newTestDistributor(t)

	record := fullRecord()
	record.Quality.Moisture = "150"

	_, err := d.Distribute(context.Background(), uuid.New(), record)
	require.Error(t, err)
	assert.ErrorIs(t, err, validator.ErrInvalidRecord)
	assert.Empty(t, store.Contracts())
	assert.Empty(t, store.Shipments())
	assert.Empty(t, store.TruckingOperations())
}

func TestUpsertFailureRollsBackRow(t *testing.T) {
	d, store := newTestDistributor(t)
	violation := errors.New("duplicate key value violates unique constraint")
	store.InjectFault(memrepo.Fault{Kind: domain.EntityTruckingOperation, Key: "TRIP-2", Err: violation})

	_, err := d.Distribute(context.Background(), uuid.New(), fullRecord())
	require.Error(t, err)
	assert.ErrorIs(t, err, violation)
	assert.Empty(t, store.Contracts())
	assert.Empty(t, store.TruckingOperations())

	_, err = d.Distribute(context.Background(), uuid.New(), fullRecord())
	require.NoError(t, err)
	assert.Len(t, store.TruckingOperations(), 2)
}
