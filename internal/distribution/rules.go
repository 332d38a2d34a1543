package distribution

import (
	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/pkg/validator"
)

var (
	contractRules = map[string]validator.FieldDefinition{
		"contract_key":    {Type: validator.FieldTypeString, Required: true, MaxLength: 128},
		"contract_number": {Type: validator.FieldTypeString, MaxLength: 64},
		"po_number":       {Type: validator.FieldTypeString, MaxLength: 64},
		"quantity":        {Type: validator.FieldTypeDecimal, Min: validator.Bound(0)},
		"price":           {Type: validator.FieldTypeDecimal, Min: validator.Bound(0)},
		"delivery_start":  {Type: validator.FieldTypeDate},
		"delivery_end":    {Type: validator.FieldTypeDate, NotBefore: "delivery_start"},
	}

	shipmentRules = map[string]validator.FieldDefinition{
		"sto_number":  {Type: validator.FieldTypeString, Required: true, MaxLength: 64},
		"bl_quantity": {Type: validator.FieldTypeDecimal, Min: validator.Bound(0)},
		"etd":         {Type: validator.FieldTypeDate},
		"eta":         {Type: validator.FieldTypeDate, NotBefore: "etd"},
	}

	truckingRules = map[string]validator.FieldDefinition{
		"trip_id":           {Type: validator.FieldTypeString, Required: true, MaxLength: 64},
		"quantity_loaded":   {Type: validator.FieldTypeDecimal, Min: validator.Bound(0)},
		"quantity_unloaded": {Type: validator.FieldTypeDecimal, Min: validator.Bound(0)},
		"loading_date":      {Type: validator.FieldTypeDate},
		"unloading_date":    {Type: validator.FieldTypeDate, NotBefore: "loading_date"},
	}

	surveyRules = map[string]validator.FieldDefinition{
		"survey_key":      {Type: validator.FieldTypeString, Required: true, MaxLength: 128},
		"ffa":             {Type: validator.FieldTypeDecimal, Min: validator.Bound(0), Max: validator.Bound(100)},
		"moisture":        {Type: validator.FieldTypeDecimal, Min: validator.Bound(0), Max: validator.Bound(100)},
		"impurity":        {Type: validator.FieldTypeDecimal, Min: validator.Bound(0), Max: validator.Bound(100)},
		"survey_quantity": {Type: validator.FieldTypeDecimal, Min: validator.Bound(0)},
	}
)

func contractProperties(c domain.Contract) map[string]any {
	return map[string]any{
		"contract_key":    c.ContractKey,
		"contract_number": c.ContractNumber,
		"po_number":       c.PONumber,
		"quantity":        c.Quantity,
		"price":           c.Price,
		"delivery_start":  c.DeliveryStart,
		"delivery_end":    c.DeliveryEnd,
	}
}

func shipmentProperties(s domain.Shipment) map[string]any {
	return map[string]any{
		"sto_number":  s.STONumber,
		"bl_quantity": s.BLQuantity,
		"etd":         s.ETD,
		"eta":         s.ETA,
	}
}

func truckingProperties(t domain.TruckingOperation) map[string]any {
	return map[string]any{
		"trip_id":           t.TripID,
		"quantity_loaded":   t.QuantityLoaded,
		"quantity_unloaded": t.QuantityUnloaded,
		"loading_date":      t.LoadingDate,
		"unloading_date":    t.UnloadingDate,
	}
}

func surveyProperties(q domain.QualitySurvey) map[string]any {
	return map[string]any{
		"survey_key":      q.SurveyKey,
		"ffa":             q.FFA,
		"moisture":        q.Moisture,
		"impurity":        q.Impurity,
		"survey_quantity": q.SurveyQuantity,
	}
}
