// Package distribution fans parsed spreadsheet rows out into the normalized
// contract, shipment, trucking and quality survey tables.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/sapingest/internal/coerce"
	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/repository"
	"github.com/rpattn/sapingest/pkg/validator"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrContractKeyConflict is returned when a row names a contract number while
// both that number and the PO-derived key already identify different contracts.
var ErrContractKeyConflict = errors.New("contract key conflict")

// Result lists the entities one row touched.
type Result struct {
	Changes []domain.EntityChange `json:"changes"`
	// Skipped names sub-objects that carried no natural key this row.
	Skipped []domain.EntityKind `json:"skipped,omitempty"`
	// Linked counts previously orphaned records attached to the row's contract.
	Linked int64 `json:"linked,omitempty"`
}

// Distributor performs the natural-key upserts of one parsed row.
type Distributor struct {
	uow       repository.UnitOfWork
	validator *validator.RecordValidator
	logger    logrus.FieldLogger
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithLogger sets the logger used for row level diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Distributor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithValidator replaces the record validator.
func WithValidator(v *validator.RecordValidator) Option {
	return func(d *Distributor) {
		if v != nil {
			d.validator = v
		}
	}
}

// NewDistributor wires a distributor around a unit of work.
func NewDistributor(uow repository.UnitOfWork, opts ...Option) *Distributor {
	d := &Distributor{
		uow:       uow,
		validator: validator.NewRecordValidator(),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distribute writes one row inside its own transaction. Any error rolls back
// every write of the row.
func (d *Distributor) Distribute(ctx context.Context, batchID uuid.UUID, record domain.ParsedRecord) (Result, error) {
	var result Result
	err := d.uow.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		result, err = d.DistributeInTx(ctx, repos, batchID, record)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	d.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"row":      record.RowNumber,
		"changes":  len(result.Changes),
		"skipped":  len(result.Skipped),
		"linked":   result.Linked,
	}).Debug("row distributed")
	return result, nil
}

// DistributeInTx writes one row with repositories bound to a caller-owned
// transaction.
func (d *Distributor) DistributeInTx(ctx context.Context, repos repository.Repositories, batchID uuid.UUID, record domain.ParsedRecord) (Result, error) {
	var result Result

	if err := d.distributeContract(ctx, repos, batchID, record, &result); err != nil {
		return Result{}, err
	}
	if err := d.distributeShipment(ctx, repos, batchID, record, &result); err != nil {
		return Result{}, err
	}
	if err := d.distributeTrucking(ctx, repos, batchID, record, &result); err != nil {
		return Result{}, err
	}
	if err := d.distributeSurvey(ctx, repos, batchID, record, &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (d *Distributor) distributeContract(ctx context.Context, repos repository.Repositories, batchID uuid.UUID, record domain.ParsedRecord, result *Result) error {
	fields := record.Contract
	if !fields.HasKey() {
		result.Skipped = append(result.Skipped, domain.EntityContract)
		return nil
	}

	number := clean(fields.ContractNumber)
	po := clean(fields.PONumber)
	contract := domain.Contract{
		ContractKey:    domain.ContractKeyFor(number, po),
		ContractNumber: number,
		PONumber:       po,
		STONumber:      clean(firstNonEmpty(fields.STONumber, record.Shipment.STONumber)),
		Supplier:       clean(fields.Supplier),
		Product:        clean(fields.Product),
		Quantity:       coerce.ParseNumber(fields.Quantity),
		Unit:           clean(fields.Unit),
		Price:          coerce.ParseNumber(fields.Price),
		Currency:       strings.ToUpper(clean(fields.Currency)),
		Incoterm:       strings.ToUpper(clean(fields.Incoterm)),
		ContractDate:   coerce.ParseDate(fields.ContractDate),
		DeliveryStart:  coerce.ParseDate(fields.DeliveryStart),
		DeliveryEnd:    coerce.ParseDate(fields.DeliveryEnd),
		Classification: clean(fields.Classification),
		SourceBatchID:  batchID,
	}
	if err := d.validate(domain.EntityContract, contract.ContractKey, contractProperties(contract), contractRules); err != nil {
		return err
	}

	rekeyed, err := d.reconcileContractKey(ctx, repos, &contract)
	if err != nil {
		return err
	}

	upserted, err := repos.Contracts.Upsert(ctx, contract)
	if err != nil {
		return fmt.Errorf("upsert contract %q: %w", contract.ContractKey, err)
	}
	action := upserted.Action()
	if rekeyed {
		action = domain.ChangeRekeyed
	}
	result.Changes = append(result.Changes, domain.EntityChange{
		Kind:   domain.EntityContract,
		ID:     upserted.ID,
		Key:    contract.ContractKey,
		Action: action,
	})

	stored, err := repos.Contracts.GetByKey(ctx, contract.ContractKey)
	if err != nil {
		return fmt.Errorf("reload contract %q: %w", contract.ContractKey, err)
	}
	return d.linkOrphans(ctx, repos, stored, result)
}

// reconcileContractKey resolves the key the contract is stored under.
//
// A real contract number arriving for a contract first seen under its
// PO-derived key renames that contract in place. A PO-only row for a contract
// already known by its real number is folded into that contract.
func (d *Distributor) reconcileContractKey(ctx context.Context, repos repository.Repositories, contract *domain.Contract) (bool, error) {
	if contract.PONumber == "" {
		return false, nil
	}

	if contract.ContractNumber == "" {
		known, err := repos.Contracts.FindByReference(ctx, domain.ContractReference{PONumber: contract.PONumber})
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("find contract by PO %q: %w", contract.PONumber, err)
		}
		if !known.IsSyntheticKey() {
			contract.ContractKey = known.ContractKey
		}
		return false, nil
	}

	syntheticKey := domain.SyntheticContractKeyPrefix + contract.PONumber
	synthetic, err := repos.Contracts.GetByKey(ctx, syntheticKey)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load contract %q: %w", syntheticKey, err)
	}
	if !synthetic.IsSyntheticKey() {
		return false, nil
	}

	_, err = repos.Contracts.GetByKey(ctx, contract.ContractKey)
	switch {
	case err == nil:
		return false, fmt.Errorf("%w: %q and %q identify different contracts", ErrContractKeyConflict, contract.ContractKey, syntheticKey)
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("load contract %q: %w", contract.ContractKey, err)
	}

	if err := repos.Contracts.Rekey(ctx, synthetic.ID, contract.ContractKey, contract.ContractNumber); err != nil {
		return false, fmt.Errorf("rekey contract %q to %q: %w", syntheticKey, contract.ContractKey, err)
	}
	d.logger.WithFields(logrus.Fields{
		"contract_id": synthetic.ID,
		"from":        syntheticKey,
		"to":          contract.ContractKey,
	}).Info("contract rekeyed")
	return true, nil
}

func (d *Distributor) linkOrphans(ctx context.Context, repos repository.Repositories, contract domain.Contract, result *Result) error {
	linkers := []struct {
		kind domain.EntityKind
		link func(context.Context, domain.Contract) (int64, error)
	}{
		{domain.EntityShipment, repos.Shipments.LinkContract},
		{domain.EntityTruckingOperation, repos.Trucking.LinkContract},
		{domain.EntityQualitySurvey, repos.Surveys.LinkContract},
	}
	for _, l := range linkers {
		linked, err := l.link(ctx, contract)
		if err != nil {
			return fmt.Errorf("link %s records to contract %q: %w", l.kind, contract.ContractKey, err)
		}
		result.Linked += linked
	}
	return nil
}

func (d *Distributor) distributeShipment(ctx context.Context, repos repository.Repositories, batchID uuid.UUID, record domain.ParsedRecord, result *Result) error {
	fields := record.Shipment
	if !fields.HasKey() {
		result.Skipped = append(result.Skipped, domain.EntityShipment)
		return nil
	}

	shipment := domain.Shipment{
		STONumber:      clean(fields.STONumber),
		ContractNumber: clean(record.Contract.ContractNumber),
		PONumber:       clean(record.Contract.PONumber),
		VesselName:     clean(fields.VesselName),
		Voyage:         clean(fields.Voyage),
		LoadingPort:    clean(fields.LoadingPort),
		DischargePort:  clean(fields.DischargePort),
		BLNumber:       clean(fields.BLNumber),
		BLDate:         coerce.ParseDate(fields.BLDate),
		BLQuantity:     coerce.ParseNumber(fields.BLQuantity),
		ETD:            coerce.ParseDate(fields.ETD),
		ETA:            coerce.ParseDate(fields.ETA),
		SourceBatchID:  batchID,
	}
	if err := d.validate(domain.EntityShipment, shipment.STONumber, shipmentProperties(shipment), shipmentRules); err != nil {
		return err
	}

	contractID, err := resolveContract(ctx, repos, shipment.Reference())
	if err != nil {
		return err
	}
	shipment.ContractID = contractID

	upserted, err := repos.Shipments.Upsert(ctx, shipment)
	if err != nil {
		return fmt.Errorf("upsert shipment %q: %w", shipment.STONumber, err)
	}
	result.Changes = append(result.Changes, domain.EntityChange{
		Kind:   domain.EntityShipment,
		ID:     upserted.ID,
		Key:    shipment.STONumber,
		Action: upserted.Action(),
	})
	return nil
}

func (d *Distributor) distributeTrucking(ctx context.Context, repos repository.Repositories, batchID uuid.UUID, record domain.ParsedRecord, result *Result) error {
	written := 0
	for _, fields := range record.Trucking {
		if !fields.HasKey() {
			if !fields.IsEmpty() {
				d.logger.WithFields(logrus.Fields{
					"batch_id": batchID,
					"row":      record.RowNumber,
					"truck":    fields.TruckNumber,
				}).Debug("trucking entry without trip id skipped")
			}
			continue
		}

		op := domain.TruckingOperation{
			TripID:           clean(fields.TripID),
			ContractNumber:   clean(record.Contract.ContractNumber),
			PONumber:         clean(record.Contract.PONumber),
			STONumber:        clean(firstNonEmpty(record.Shipment.STONumber, record.Contract.STONumber)),
			TruckNumber:      clean(fields.TruckNumber),
			Transporter:      clean(fields.Transporter),
			Driver:           clean(fields.Driver),
			Origin:           clean(fields.Origin),
			Destination:      clean(fields.Destination),
			LoadingDate:      coerce.ParseDate(fields.LoadingDate),
			UnloadingDate:    coerce.ParseDate(fields.UnloadingDate),
			QuantityLoaded:   coerce.ParseNumber(fields.QuantityLoaded),
			QuantityUnloaded: coerce.ParseNumber(fields.QuantityUnloaded),
			SourceBatchID:    batchID,
		}
		if err := d.validate(domain.EntityTruckingOperation, op.TripID, truckingProperties(op), truckingRules); err != nil {
			return err
		}

		contractID, err := resolveContract(ctx, repos, op.Reference())
		if err != nil {
			return err
		}
		op.ContractID = contractID

		upserted, err := repos.Trucking.Upsert(ctx, op)
		if err != nil {
			return fmt.Errorf("upsert trucking operation %q: %w", op.TripID, err)
		}
		result.Changes = append(result.Changes, domain.EntityChange{
			Kind:   domain.EntityTruckingOperation,
			ID:     upserted.ID,
			Key:    op.TripID,
			Action: upserted.Action(),
		})
		written++
	}

	if written == 0 {
		result.Skipped = append(result.Skipped, domain.EntityTruckingOperation)
	}
	return nil
}

func (d *Distributor) distributeSurvey(ctx context.Context, repos repository.Repositories, batchID uuid.UUID, record domain.ParsedRecord, result *Result) error {
	fields := record.Quality
	sto := clean(firstNonEmpty(record.Shipment.STONumber, record.Contract.STONumber))
	key := domain.SurveyKeyFor(fields.ReportNumber, sto, fields.Location)
	if key == "" {
		result.Skipped = append(result.Skipped, domain.EntityQualitySurvey)
		return nil
	}

	survey := domain.QualitySurvey{
		SurveyKey:      key,
		ReportNumber:   clean(fields.ReportNumber),
		STONumber:      sto,
		ContractNumber: clean(record.Contract.ContractNumber),
		PONumber:       clean(record.Contract.PONumber),
		Location:       clean(fields.Location),
		Surveyor:       clean(fields.Surveyor),
		SurveyDate:     coerce.ParseDate(fields.SurveyDate),
		FFA:            coerce.ParseNumber(fields.FFA),
		Moisture:       coerce.ParseNumber(fields.Moisture),
		Impurity:       coerce.ParseNumber(fields.Impurity),
		SurveyQuantity: coerce.ParseNumber(fields.SurveyQuantity),
		SourceBatchID:  batchID,
	}
	if err := d.validate(domain.EntityQualitySurvey, survey.SurveyKey, surveyProperties(survey), surveyRules); err != nil {
		return err
	}

	if sto != "" {
		shipment, err := repos.Shipments.GetBySTO(ctx, sto)
		switch {
		case err == nil:
			id := shipment.ID
			survey.ShipmentID = &id
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("load shipment %q: %w", sto, err)
		}
	}

	contractID, err := resolveContract(ctx, repos, survey.Reference())
	if err != nil {
		return err
	}
	survey.ContractID = contractID

	upserted, err := repos.Surveys.Upsert(ctx, survey)
	if err != nil {
		return fmt.Errorf("upsert quality survey %q: %w", survey.SurveyKey, err)
	}
	result.Changes = append(result.Changes, domain.EntityChange{
		Kind:   domain.EntityQualitySurvey,
		ID:     upserted.ID,
		Key:    survey.SurveyKey,
		Action: upserted.Action(),
	})
	return nil
}

func (d *Distributor) validate(kind domain.EntityKind, key string, properties map[string]any, rules map[string]validator.FieldDefinition) error {
	if err := d.validator.ValidateProperties(properties, rules).Err(); err != nil {
		return fmt.Errorf("%s %q: %w", kind, key, err)
	}
	return nil
}

// resolveContract finds the contract a record references, or nil when none
// is known yet. Orphans are attached later by linkOrphans.
func resolveContract(ctx context.Context, repos repository.Repositories, ref domain.ContractReference) (*uuid.UUID, error) {
	if ref.IsZero() {
		return nil, nil
	}
	contract, err := repos.Contracts.FindByReference(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve contract: %w", err)
	}
	id := contract.ID
	return &id, nil
}

func clean(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
