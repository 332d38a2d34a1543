package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyntheticContractKeyPrefix marks contract keys derived from a PO number.
const SyntheticContractKeyPrefix = "PO-"

// Contract is a purchase/sales contract identified by ContractKey.
type Contract struct {
	ID             uuid.UUID           `json:"id"`
	ContractKey    string              `json:"contractKey"`
	ContractNumber string              `json:"contractNumber,omitempty"`
	PONumber       string              `json:"poNumber,omitempty"`
	STONumber      string              `json:"stoNumber,omitempty"`
	Supplier       string              `json:"supplier,omitempty"`
	Product        string              `json:"product,omitempty"`
	Quantity       decimal.NullDecimal `json:"quantity"`
	Unit           string              `json:"unit,omitempty"`
	Price          decimal.NullDecimal `json:"price"`
	Currency       string              `json:"currency,omitempty"`
	Incoterm       string              `json:"incoterm,omitempty"`
	ContractDate   *time.Time          `json:"contractDate,omitempty"`
	DeliveryStart  *time.Time          `json:"deliveryStart,omitempty"`
	DeliveryEnd    *time.Time          `json:"deliveryEnd,omitempty"`
	Classification string              `json:"classification,omitempty"`
	SourceBatchID  uuid.UUID           `json:"sourceBatchId"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// ContractKeyFor resolves the natural key of a contract: the contract number
// when present, otherwise a key derived from the PO number.
func ContractKeyFor(contractNumber, poNumber string) string {
	if number := strings.TrimSpace(contractNumber); number != "" {
		return number
	}
	if po := strings.TrimSpace(poNumber); po != "" {
		return SyntheticContractKeyPrefix + po
	}
	return ""
}

// IsSyntheticKey reports whether the contract is still keyed by its PO number.
func (c Contract) IsSyntheticKey() bool {
	return strings.TrimSpace(c.ContractNumber) == "" && strings.HasPrefix(c.ContractKey, SyntheticContractKeyPrefix)
}

// ContractReference carries the identifiers another record can use to find its contract.
type ContractReference struct {
	ContractNumber string
	PONumber       string
	STONumber      string
}

// IsZero reports whether the reference carries no identifier at all.
func (r ContractReference) IsZero() bool {
	return strings.TrimSpace(r.ContractNumber) == "" &&
		strings.TrimSpace(r.PONumber) == "" &&
		strings.TrimSpace(r.STONumber) == ""
}

// Matches reports whether the contract is the one referenced.
func (r ContractReference) Matches(c Contract) bool {
	if r.ContractNumber != "" && (r.ContractNumber == c.ContractNumber || r.ContractNumber == c.ContractKey) {
		return true
	}
	if r.STONumber != "" && r.STONumber == c.STONumber {
		return true
	}
	if r.PONumber != "" && r.PONumber == c.PONumber {
		return true
	}
	return false
}
