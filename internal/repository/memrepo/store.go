// Package memrepo holds in-memory implementations of the repository
// interfaces. They mirror the merge rules of the pgx repositories and back
// tests and dry-run imports.
package memrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type rowKey struct {
	batch uuid.UUID
	row   int
}

type parsedRow struct {
	record       domain.ParsedRecord
	status       repository.RowStatus
	errorMessage string
}

// entities is the transactional part of the store.
type entities struct {
	seq       int64
	contracts map[string]domain.Contract
	shipments map[string]domain.Shipment
	trucking  map[string]domain.TruckingOperation
	surveys   map[string]domain.QualitySurvey
	order     map[uuid.UUID]int64
}

func newEntities() *entities {
	return &entities{
		contracts: map[string]domain.Contract{},
		shipments: map[string]domain.Shipment{},
		trucking:  map[string]domain.TruckingOperation{},
		surveys:   map[string]domain.QualitySurvey{},
		order:     map[uuid.UUID]int64{},
	}
}

func (e *entities) clone() *entities {
	out := newEntities()
	out.seq = e.seq
	for k, v := range e.contracts {
		out.contracts[k] = v
	}
	for k, v := range e.shipments {
		out.shipments[k] = v
	}
	for k, v := range e.trucking {
		out.trucking[k] = v
	}
	for k, v := range e.surveys {
		out.surveys[k] = v
	}
	for k, v := range e.order {
		out.order[k] = v
	}
	return out
}

func (e *entities) register(id uuid.UUID) {
	e.seq++
	e.order[id] = e.seq
}

// Fault makes the next upsert of the given natural key fail, simulating a
// constraint violation.
type Fault struct {
	Kind domain.EntityKind
	Key  string
	Err  error
}

// Store is an in-memory database shared by the memrepo repositories.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	now  func() time.Time

	state   *entities
	batches map[uuid.UUID]domain.ImportBatch
	raw     map[rowKey]domain.RawRow
	parsed  map[rowKey]parsedRow
	logs    []domain.IngestionLogEntry
	logSeq  int64
	faults  []Fault
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC() },
		state:   newEntities(),
		batches: map[uuid.UUID]domain.ImportBatch{},
		raw:     map[rowKey]domain.RawRow{},
		parsed:  map[rowKey]parsedRow{},
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// InjectFault registers a failure for a future upsert.
func (s *Store) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, f)
}

func (s *Store) takeFault(kind domain.EntityKind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faults {
		if f.Kind == kind && f.Key == key {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			if f.Err == nil {
				return fmt.Errorf("injected failure for %s %q", kind, key)
			}
			return f.Err
		}
	}
	return nil
}

// WithinTransaction runs fn against a private copy of the entity tables and
// publishes the copy only when fn succeeds. Transactions are serialised.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	working := s.state.clone()
	s.mu.Unlock()

	tx := &txView{store: s, state: working}
	if err := fn(ctx, repository.Repositories{
		Contracts: &contractRepo{tx},
		Shipments: &shipmentRepo{tx},
		Trucking:  &truckingRepo{tx},
		Surveys:   &surveyRepo{tx},
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// Contracts returns committed contracts ordered by creation.
func (s *Store) Contracts() []domain.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Contract, 0, len(s.state.contracts))
	for _, c := range s.state.contracts {
		out = append(out, c)
	}
	sortByOrder(s.state, out, func(c domain.Contract) uuid.UUID { return c.ID })
	return out
}

// Shipments returns committed shipments ordered by creation.
func (s *Store) Shipments() []domain.Shipment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Shipment, 0, len(s.state.shipments))
	for _, v := range s.state.shipments {
		out = append(out, v)
	}
	sortByOrder(s.state, out, func(v domain.Shipment) uuid.UUID { return v.ID })
	return out
}

// TruckingOperations returns committed trucking operations ordered by creation.
func (s *Store) TruckingOperations() []domain.TruckingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TruckingOperation, 0, len(s.state.trucking))
	for _, v := range s.state.trucking {
		out = append(out, v)
	}
	sortByOrder(s.state, out, func(v domain.TruckingOperation) uuid.UUID { return v.ID })
	return out
}

// QualitySurveys returns committed surveys ordered by creation.
func (s *Store) QualitySurveys() []domain.QualitySurvey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QualitySurvey, 0, len(s.state.surveys))
	for _, v := range s.state.surveys {
		out = append(out, v)
	}
	sortByOrder(s.state, out, func(v domain.QualitySurvey) uuid.UUID { return v.ID })
	return out
}

// RawRow returns the archived verbatim row.
func (s *Store) RawRow(batchID uuid.UUID, rowNumber int) (domain.RawRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.raw[rowKey{batchID, rowNumber}]
	return row, ok
}

// ArchivedRows returns the archived row numbers of a batch in order.
func (s *Store) ArchivedRows(batchID uuid.UUID) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []int
	for key := range s.raw {
		if key.batch == batchID {
			rows = append(rows, key.row)
		}
	}
	sort.Ints(rows)
	return rows
}

func sortByOrder[T any](state *entities, items []T, id func(T) uuid.UUID) {
	sort.SliceStable(items, func(i, j int) bool {
		return state.order[id(items[i])] < state.order[id(items[j])]
	})
}

func mergeText(current, incoming string) string {
	if v := strings.TrimSpace(incoming); v != "" {
		return v
	}
	return current
}

func stickyText(current, incoming string) string {
	if current != "" {
		return current
	}
	return strings.TrimSpace(incoming)
}

func mergeDecimal(current, incoming decimal.NullDecimal) decimal.NullDecimal {
	if incoming.Valid {
		return incoming
	}
	return current
}

func mergeDate(current, incoming *time.Time) *time.Time {
	if incoming != nil {
		return incoming
	}
	return current
}

func mergeID(current, incoming *uuid.UUID) *uuid.UUID {
	if incoming != nil && *incoming != uuid.Nil {
		return incoming
	}
	return current
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}

// sameValues compares two entities by their JSON form, which normalises
// decimals with trailing zeros.
func sameValues(a, b any) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(left) == string(right)
}
