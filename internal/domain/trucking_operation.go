package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TruckingOperation is one truck trip identified by TripID.
type TruckingOperation struct {
	ID               uuid.UUID           `json:"id"`
	TripID           string              `json:"tripId"`
	ContractID       *uuid.UUID          `json:"contractId,omitempty"`
	ContractNumber   string              `json:"contractNumber,omitempty"`
	PONumber         string              `json:"poNumber,omitempty"`
	STONumber        string              `json:"stoNumber,omitempty"`
	TruckNumber      string              `json:"truckNumber,omitempty"`
	Transporter      string              `json:"transporter,omitempty"`
	Driver           string              `json:"driver,omitempty"`
	Origin           string              `json:"origin,omitempty"`
	Destination      string              `json:"destination,omitempty"`
	LoadingDate      *time.Time          `json:"loadingDate,omitempty"`
	UnloadingDate    *time.Time          `json:"unloadingDate,omitempty"`
	QuantityLoaded   decimal.NullDecimal `json:"quantityLoaded"`
	QuantityUnloaded decimal.NullDecimal `json:"quantityUnloaded"`
	SourceBatchID    uuid.UUID           `json:"sourceBatchId"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Reference returns the identifiers used to resolve the owning contract.
func (t TruckingOperation) Reference() ContractReference {
	return ContractReference{ContractNumber: t.ContractNumber, PONumber: t.PONumber, STONumber: t.STONumber}
}
