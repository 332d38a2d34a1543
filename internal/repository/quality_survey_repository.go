package repository

import (
	"context"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/domain"
)

var surveyUpsert = upsertStatement{
	table:     "quality_surveys",
	keyColumn: "survey_key",
	columns: []string{
		"id", "survey_key", "report_number", "sto_number", "shipment_id", "contract_id",
		"contract_number", "po_number", "location", "surveyor", "survey_date", "ffa", "moisture",
		"impurity", "survey_quantity", "source_batch_id",
	},
	mutable: []string{
		"sto_number", "shipment_id", "contract_id", "contract_number", "po_number", "location",
		"surveyor", "survey_date", "ffa", "moisture", "impurity", "survey_quantity",
	},
	sticky: []string{"report_number"},
}

type qualitySurveyRepository struct {
	q db.DBTX
}

// NewQualitySurveyRepository binds a survey repository to a pool or transaction.
func NewQualitySurveyRepository(q db.DBTX) QualitySurveyRepository {
	return &qualitySurveyRepository{q: q}
}

func (r *qualitySurveyRepository) Upsert(ctx context.Context, s domain.QualitySurvey) (domain.UpsertResult, error) {
	args := []any{
		newID(s.ID),
		s.SurveyKey,
		textArg(s.ReportNumber),
		textArg(s.STONumber),
		uuidArg(s.ShipmentID),
		uuidArg(s.ContractID),
		textArg(s.ContractNumber),
		textArg(s.PONumber),
		textArg(s.Location),
		textArg(s.Surveyor),
		dateArg(s.SurveyDate),
		decimalArg(s.FFA),
		decimalArg(s.Moisture),
		decimalArg(s.Impurity),
		decimalArg(s.SurveyQuantity),
		batchArg(s.SourceBatchID),
	}
	return surveyUpsert.exec(ctx, r.q, s.SurveyKey, args)
}

func (r *qualitySurveyRepository) LinkContract(ctx context.Context, contract domain.Contract) (int64, error) {
	return linkContract(ctx, r.q, "quality_surveys", contract)
}
