package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QualitySurvey is an independent surveyor's report on a cargo.
type QualitySurvey struct {
	ID             uuid.UUID           `json:"id"`
	SurveyKey      string              `json:"surveyKey"`
	ReportNumber   string              `json:"reportNumber,omitempty"`
	STONumber      string              `json:"stoNumber,omitempty"`
	ShipmentID     *uuid.UUID          `json:"shipmentId,omitempty"`
	ContractID     *uuid.UUID          `json:"contractId,omitempty"`
	ContractNumber string              `json:"contractNumber,omitempty"`
	PONumber       string              `json:"poNumber,omitempty"`
	Location       string              `json:"location,omitempty"`
	Surveyor       string              `json:"surveyor,omitempty"`
	SurveyDate     *time.Time          `json:"surveyDate,omitempty"`
	FFA            decimal.NullDecimal `json:"ffa"`
	Moisture       decimal.NullDecimal `json:"moisture"`
	Impurity       decimal.NullDecimal `json:"impurity"`
	SurveyQuantity decimal.NullDecimal `json:"surveyQuantity"`
	SourceBatchID  uuid.UUID           `json:"sourceBatchId"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// SurveyKeyFor resolves the natural key of a survey: the report number, or
// "<sto>/<location>" when both are known.
func SurveyKeyFor(reportNumber, stoNumber, location string) string {
	if report := strings.TrimSpace(reportNumber); report != "" {
		return report
	}
	sto := strings.TrimSpace(stoNumber)
	loc := strings.TrimSpace(location)
	if sto == "" || loc == "" {
		return ""
	}
	return sto + "/" + strings.ToUpper(loc)
}

// Reference returns the identifiers used to resolve the owning contract.
func (q QualitySurvey) Reference() ContractReference {
	return ContractReference{ContractNumber: q.ContractNumber, PONumber: q.PONumber, STONumber: q.STONumber}
}
