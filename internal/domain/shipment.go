package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shipment is a vessel movement identified by its STO number.
type Shipment struct {
	ID             uuid.UUID           `json:"id"`
	STONumber      string              `json:"stoNumber"`
	ContractID     *uuid.UUID          `json:"contractId,omitempty"`
	ContractNumber string              `json:"contractNumber,omitempty"`
	PONumber       string              `json:"poNumber,omitempty"`
	VesselName     string              `json:"vesselName,omitempty"`
	Voyage         string              `json:"voyage,omitempty"`
	LoadingPort    string              `json:"loadingPort,omitempty"`
	DischargePort  string              `json:"dischargePort,omitempty"`
	BLNumber       string              `json:"blNumber,omitempty"`
	BLDate         *time.Time          `json:"blDate,omitempty"`
	BLQuantity     decimal.NullDecimal `json:"blQuantity"`
	ETD            *time.Time          `json:"etd,omitempty"`
	ETA            *time.Time          `json:"eta,omitempty"`
	SourceBatchID  uuid.UUID           `json:"sourceBatchId"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Reference returns the identifiers used to resolve the owning contract.
func (s Shipment) Reference() ContractReference {
	return ContractReference{ContractNumber: s.ContractNumber, PONumber: s.PONumber, STONumber: s.STONumber}
}
