package memrepo

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/google/uuid"
)

type txView struct {
	store *Store
	state *entities
}

type contractRepo struct{ tx *txView }

func (r *contractRepo) GetByKey(_ context.Context, key string) (domain.Contract, error) {
	c, ok := r.tx.state.contracts[key]
	if !ok {
		return domain.Contract{}, fmt.Errorf("contract %q: %w", key, repository.ErrNotFound)
	}
	return c, nil
}

func (r *contractRepo) FindByReference(_ context.Context, ref domain.ContractReference) (domain.Contract, error) {
	if ref.IsZero() {
		return domain.Contract{}, fmt.Errorf("empty contract reference: %w", repository.ErrNotFound)
	}

	candidates := make([]domain.Contract, 0, len(r.tx.state.contracts))
	for _, c := range r.tx.state.contracts {
		candidates = append(candidates, c)
	}
	sortByOrder(r.tx.state, candidates, func(c domain.Contract) uuid.UUID { return c.ID })

	rank := func(c domain.Contract) int {
		switch {
		case ref.ContractNumber != "" && (c.ContractNumber == ref.ContractNumber || c.ContractKey == ref.ContractNumber):
			return 0
		case ref.STONumber != "" && c.STONumber == ref.STONumber:
			return 1
		case ref.PONumber != "" && c.PONumber == ref.PONumber:
			return 2
		}
		return 3
	}
	sort.SliceStable(candidates, func(i, j int) bool { return rank(candidates[i]) < rank(candidates[j]) })

	if len(candidates) == 0 || rank(candidates[0]) == 3 {
		return domain.Contract{}, fmt.Errorf("contract by reference: %w", repository.ErrNotFound)
	}
	return candidates[0], nil
}

func (r *contractRepo) Upsert(_ context.Context, c domain.Contract) (domain.UpsertResult, error) {
	if err := r.tx.store.takeFault(domain.EntityContract, c.ContractKey); err != nil {
		return domain.UpsertResult{}, err
	}

	now := r.tx.store.now()
	current, ok := r.tx.state.contracts[c.ContractKey]
	if !ok {
		c.ID = newID(c.ID)
		c.ContractNumber = trimmed(c.ContractNumber)
		c.PONumber = trimmed(c.PONumber)
		c.STONumber = trimmed(c.STONumber)
		c.CreatedAt, c.UpdatedAt = now, now
		r.tx.state.contracts[c.ContractKey] = c
		r.tx.state.register(c.ID)
		return domain.UpsertResult{ID: c.ID, Inserted: true}, nil
	}

	merged := current
	merged.ContractNumber = stickyText(current.ContractNumber, c.ContractNumber)
	merged.PONumber = stickyText(current.PONumber, c.PONumber)
	merged.STONumber = mergeText(current.STONumber, c.STONumber)
	merged.Supplier = mergeText(current.Supplier, c.Supplier)
	merged.Product = mergeText(current.Product, c.Product)
	merged.Quantity = mergeDecimal(current.Quantity, c.Quantity)
	merged.Unit = mergeText(current.Unit, c.Unit)
	merged.Price = mergeDecimal(current.Price, c.Price)
	merged.Currency = mergeText(current.Currency, c.Currency)
	merged.Incoterm = mergeText(current.Incoterm, c.Incoterm)
	merged.ContractDate = mergeDate(current.ContractDate, c.ContractDate)
	merged.DeliveryStart = mergeDate(current.DeliveryStart, c.DeliveryStart)
	merged.DeliveryEnd = mergeDate(current.DeliveryEnd, c.DeliveryEnd)
	merged.Classification = mergeText(current.Classification, c.Classification)

	if sameValues(merged, current) {
		return domain.UpsertResult{ID: current.ID, Unchanged: true}, nil
	}
	merged.UpdatedAt = now
	r.tx.state.contracts[c.ContractKey] = merged
	return domain.UpsertResult{ID: current.ID}, nil
}

func (r *contractRepo) Rekey(_ context.Context, id uuid.UUID, newKey string, contractNumber string) error {
	if _, taken := r.tx.state.contracts[newKey]; taken {
		return fmt.Errorf("contract key %q already exists", newKey)
	}
	for key, c := range r.tx.state.contracts {
		if c.ID != id {
			continue
		}
		delete(r.tx.state.contracts, key)
		c.ContractKey = newKey
		c.ContractNumber = contractNumber
		c.UpdatedAt = r.tx.store.now()
		r.tx.state.contracts[newKey] = c
		return nil
	}
	return fmt.Errorf("contract %s: %w", id, repository.ErrNotFound)
}

// referencesContract mirrors the SQL used to link orphans to a contract.
func referencesContract(ref domain.ContractReference, c domain.Contract) bool {
	return (c.ContractNumber != "" && ref.ContractNumber == c.ContractNumber) ||
		(c.STONumber != "" && ref.STONumber == c.STONumber) ||
		(c.PONumber != "" && ref.PONumber == c.PONumber)
}

type shipmentRepo struct{ tx *txView }

func (r *shipmentRepo) GetBySTO(_ context.Context, stoNumber string) (domain.Shipment, error) {
	s, ok := r.tx.state.shipments[stoNumber]
	if !ok {
		return domain.Shipment{}, fmt.Errorf("shipment %q: %w", stoNumber, repository.ErrNotFound)
	}
	return s, nil
}

func (r *shipmentRepo) Upsert(_ context.Context, s domain.Shipment) (domain.UpsertResult, error) {
	if err := r.tx.store.takeFault(domain.EntityShipment, s.STONumber); err != nil {
		return domain.UpsertResult{}, err
	}

	now := r.tx.store.now()
	current, ok := r.tx.state.shipments[s.STONumber]
	if !ok {
		s.ID = newID(s.ID)
		s.ContractNumber = trimmed(s.ContractNumber)
		s.PONumber = trimmed(s.PONumber)
		s.CreatedAt, s.UpdatedAt = now, now
		r.tx.state.shipments[s.STONumber] = s
		r.tx.state.register(s.ID)
		return domain.UpsertResult{ID: s.ID, Inserted: true}, nil
	}

	merged := current
	merged.ContractID = mergeID(current.ContractID, s.ContractID)
	merged.ContractNumber = mergeText(current.ContractNumber, s.ContractNumber)
	merged.PONumber = mergeText(current.PONumber, s.PONumber)
	merged.VesselName = mergeText(current.VesselName, s.VesselName)
	merged.Voyage = mergeText(current.Voyage, s.Voyage)
	merged.LoadingPort = mergeText(current.LoadingPort, s.LoadingPort)
	merged.DischargePort = mergeText(current.DischargePort, s.DischargePort)
	merged.BLNumber = mergeText(current.BLNumber, s.BLNumber)
	merged.BLDate = mergeDate(current.BLDate, s.BLDate)
	merged.BLQuantity = mergeDecimal(current.BLQuantity, s.BLQuantity)
	merged.ETD = mergeDate(current.ETD, s.ETD)
	merged.ETA = mergeDate(current.ETA, s.ETA)

	if sameValues(merged, current) {
		return domain.UpsertResult{ID: current.ID, Unchanged: true}, nil
	}
	merged.UpdatedAt = now
	r.tx.state.shipments[s.STONumber] = merged
	return domain.UpsertResult{ID: current.ID}, nil
}

func (r *shipmentRepo) LinkContract(_ context.Context, contract domain.Contract) (int64, error) {
	var linked int64
	for key, s := range r.tx.state.shipments {
		if s.ContractID != nil || !referencesContract(s.Reference(), contract) {
			continue
		}
		id := contract.ID
		s.ContractID = &id
		s.UpdatedAt = r.tx.store.now()
		r.tx.state.shipments[key] = s
		linked++
	}
	return linked, nil
}

type truckingRepo struct{ tx *txView }

func (r *truckingRepo) Upsert(_ context.Context, t domain.TruckingOperation) (domain.UpsertResult, error) {
	if err := r.tx.store.takeFault(domain.EntityTruckingOperation, t.TripID); err != nil {
		return domain.UpsertResult{}, err
	}

	now := r.tx.store.now()
	current, ok := r.tx.state.trucking[t.TripID]
	if !ok {
		t.ID = newID(t.ID)
		t.ContractNumber = trimmed(t.ContractNumber)
		t.PONumber = trimmed(t.PONumber)
		t.STONumber = trimmed(t.STONumber)
		t.CreatedAt, t.UpdatedAt = now, now
		r.tx.state.trucking[t.TripID] = t
		r.tx.state.register(t.ID)
		return domain.UpsertResult{ID: t.ID, Inserted: true}, nil
	}

	merged := current
	merged.ContractID = mergeID(current.ContractID, t.ContractID)
	merged.ContractNumber = mergeText(current.ContractNumber, t.ContractNumber)
	merged.PONumber = mergeText(current.PONumber, t.PONumber)
	merged.STONumber = mergeText(current.STONumber, t.STONumber)
	merged.TruckNumber = mergeText(current.TruckNumber, t.TruckNumber)
	merged.Transporter = mergeText(current.Transporter, t.Transporter)
	merged.Driver = mergeText(current.Driver, t.Driver)
	merged.Origin = mergeText(current.Origin, t.Origin)
	merged.Destination = mergeText(current.Destination, t.Destination)
	merged.LoadingDate = mergeDate(current.LoadingDate, t.LoadingDate)
	merged.UnloadingDate = mergeDate(current.UnloadingDate, t.UnloadingDate)
	merged.QuantityLoaded = mergeDecimal(current.QuantityLoaded, t.QuantityLoaded)
	merged.QuantityUnloaded = mergeDecimal(current.QuantityUnloaded, t.QuantityUnloaded)

	if sameValues(merged, current) {
		return domain.UpsertResult{ID: current.ID, Unchanged: true}, nil
	}
	merged.UpdatedAt = now
	r.tx.state.trucking[t.TripID] = merged
	return domain.UpsertResult{ID: current.ID}, nil
}

func (r *truckingRepo) LinkContract(_ context.Context, contract domain.Contract) (int64, error) {
	var linked int64
	for key, t := range r.tx.state.trucking {
		if t.ContractID != nil || !referencesContract(t.Reference(), contract) {
			continue
		}
		id := contract.ID
		t.ContractID = &id
		t.UpdatedAt = r.tx.store.now()
		r.tx.state.trucking[key] = t
		linked++
	}
	return linked, nil
}

type surveyRepo struct{ tx *txView }

func (r *surveyRepo) Upsert(_ context.Context, q domain.QualitySurvey) (domain.UpsertResult, error) {
	if err := r.tx.store.takeFault(domain.EntityQualitySurvey, q.SurveyKey); err != nil {
		return domain.UpsertResult{}, err
	}

	now := r.tx.store.now()
	current, ok := r.tx.state.surveys[q.SurveyKey]
	if !ok {
		q.ID = newID(q.ID)
		q.ReportNumber = trimmed(q.ReportNumber)
		q.STONumber = trimmed(q.STONumber)
		q.ContractNumber = trimmed(q.ContractNumber)
		q.PONumber = trimmed(q.PONumber)
		q.CreatedAt, q.UpdatedAt = now, now
		r.tx.state.surveys[q.SurveyKey] = q
		r.tx.state.register(q.ID)
		return domain.UpsertResult{ID: q.ID, Inserted: true}, nil
	}

	merged := current
	merged.ReportNumber = stickyText(current.ReportNumber, q.ReportNumber)
	merged.STONumber = mergeText(current.STONumber, q.STONumber)
	merged.ShipmentID = mergeID(current.ShipmentID, q.ShipmentID)
	merged.ContractID = mergeID(current.ContractID, q.ContractID)
	merged.ContractNumber = mergeText(current.ContractNumber, q.ContractNumber)
	merged.PONumber = mergeText(current.PONumber, q.PONumber)
	merged.Location = mergeText(current.Location, q.Location)
	merged.Surveyor = mergeText(current.Surveyor, q.Surveyor)
	merged.SurveyDate = mergeDate(current.SurveyDate, q.SurveyDate)
	merged.FFA = mergeDecimal(current.FFA, q.FFA)
	merged.Moisture = mergeDecimal(current.Moisture, q.Moisture)
	merged.Impurity = mergeDecimal(current.Impurity, q.Impurity)
	merged.SurveyQuantity = mergeDecimal(current.SurveyQuantity, q.SurveyQuantity)

	if sameValues(merged, current) {
		return domain.UpsertResult{ID: current.ID, Unchanged: true}, nil
	}
	merged.UpdatedAt = now
	r.tx.state.surveys[q.SurveyKey] = merged
	return domain.UpsertResult{ID: current.ID}, nil
}

func (r *surveyRepo) LinkContract(_ context.Context, contract domain.Contract) (int64, error) {
	var linked int64
	for key, q := range r.tx.state.surveys {
		if q.ContractID != nil || !referencesContract(q.Reference(), contract) {
			continue
		}
		id := contract.ID
		q.ContractID = &id
		q.UpdatedAt = r.tx.store.now()
		r.tx.state.surveys[key] = q
		linked++
	}
	return linked, nil
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}
