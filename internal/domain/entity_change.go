package domain

import "github.com/google/uuid"

// EntityKind names a normalized table the distributor writes to.
type EntityKind string

const (
	EntityContract          EntityKind = "contract"
	EntityShipment          EntityKind = "shipment"
	EntityTruckingOperation EntityKind = "trucking_operation"
	EntityQualitySurvey     EntityKind = "quality_survey"
)

// ChangeAction describes what an upsert did.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeRekeyed ChangeAction = "rekeyed"

	// ChangeUnchanged marks an upsert whose merged values equal the stored row.
	ChangeUnchanged ChangeAction = "unchanged"
)

// EntityChange identifies one entity written while distributing a row.
type EntityChange struct {
	Kind   EntityKind   `json:"kind"`
	ID     uuid.UUID    `json:"id"`
	Key    string       `json:"key"`
	Action ChangeAction `json:"action"`
}

// UpsertResult is returned by repository upserts.
type UpsertResult struct {
	ID        uuid.UUID
	Inserted  bool
	Unchanged bool
}

// Action maps the upsert outcome onto a change action.
func (r UpsertResult) Action() ChangeAction {
	switch {
	case r.Inserted:
		return ChangeCreated
	case r.Unchanged:
		return ChangeUnchanged
	}
	return ChangeUpdated
}
