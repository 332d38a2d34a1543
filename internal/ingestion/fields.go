package ingestion

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rpattn/sapingest/internal/domain"
)

// FieldKey is the canonical name of a well-known column.
type FieldKey string

const (
	FieldContractNumber FieldKey = "contract_number"
	FieldPONumber       FieldKey = "po_number"
	FieldSTONumber      FieldKey = "sto_number"
	FieldSupplier       FieldKey = "supplier"
	FieldProduct        FieldKey = "product"
	FieldQuantity       FieldKey = "quantity"
	FieldUnit           FieldKey = "unit"
	FieldPrice          FieldKey = "price"
	FieldCurrency       FieldKey = "currency"
	FieldIncoterm       FieldKey = "incoterm"
	FieldContractDate   FieldKey = "contract_date"
	FieldDeliveryStart  FieldKey = "delivery_start"
	FieldDeliveryEnd    FieldKey = "delivery_end"
	FieldClassification FieldKey = "classification"

	FieldVesselName    FieldKey = "vessel_name"
	FieldVoyage        FieldKey = "voyage"
	FieldLoadingPort   FieldKey = "loading_port"
	FieldDischargePort FieldKey = "discharge_port"
	FieldBLNumber      FieldKey = "bl_number"
	FieldBLDate        FieldKey = "bl_date"
	FieldBLQuantity    FieldKey = "bl_quantity"
	FieldETD           FieldKey = "etd"
	FieldETA           FieldKey = "eta"

	FieldTripID           FieldKey = "trip_id"
	FieldTruckNumber      FieldKey = "truck_number"
	FieldTransporter      FieldKey = "transporter"
	FieldDriver           FieldKey = "driver"
	FieldOrigin           FieldKey = "origin"
	FieldDestination      FieldKey = "destination"
	FieldLoadingDate      FieldKey = "loading_date"
	FieldUnloadingDate    FieldKey = "unloading_date"
	FieldQuantityLoaded   FieldKey = "quantity_loaded"
	FieldQuantityUnloaded FieldKey = "quantity_unloaded"

	FieldSurveyReport   FieldKey = "survey_report_number"
	FieldSurveyLocation FieldKey = "survey_location"
	FieldSurveyor       FieldKey = "surveyor"
	FieldSurveyDate     FieldKey = "survey_date"
	FieldFFA            FieldKey = "ffa"
	FieldMoisture       FieldKey = "moisture"
	FieldImpurity       FieldKey = "impurity"
	FieldSurveyQuantity FieldKey = "survey_quantity"
)

// fieldBinding ties a well-known column to the sub-objects it fills. A
// binding with a trucking setter is repeated per occurrence of its header.
type fieldBinding struct {
	key      FieldKey
	aliases  []string
	contract func(*domain.ContractFields, string)
	shipment func(*domain.ShipmentFields, string)
	trucking func(*domain.TruckingFields, string)
	quality  func(*domain.QualityFields, string)
}

func (b *fieldBinding) repeats() bool {
	return b.trucking != nil
}

var fieldBindings = []fieldBinding{
	{key: FieldContractNumber, aliases: []string{"Contract No", "Contract No.", "Contract Number", "Contract", "Sales Contract"},
		contract: func(c *domain.ContractFields, v string) { c.ContractNumber = v }},
	{key: FieldPONumber, aliases: []string{"PO No", "PO Number", "Purchase Order", "Purchasing Document", "Purch.Doc."},
		contract: func(c *domain.ContractFields, v string) { c.PONumber = v }},
	{key: FieldSTONumber, aliases: []string{"STO No", "STO Number", "STO", "Stock Transport Order", "Shipment No", "Shipment Number"},
		contract: func(c *domain.ContractFields, v string) { c.STONumber = v },
		shipment: func(s *domain.ShipmentFields, v string) { s.STONumber = v }},
	{key: FieldSupplier, aliases: []string{"Supplier", "Vendor", "Vendor Name", "Supplier Name"},
		contract: func(c *domain.ContractFields, v string) { c.Supplier = v }},
	{key: FieldProduct, aliases: []string{"Product", "Material", "Material Description", "Commodity"},
		contract: func(c *domain.ContractFields, v string) { c.Product = v }},
	{key: FieldQuantity, aliases: []string{"Contract Qty", "Contract Quantity", "Quantity", "Qty", "Qty (MT)", "Contract Qty (MT)"},
		contract: func(c *domain.ContractFields, v string) { c.Quantity = v }},
	{key: FieldUnit, aliases: []string{"UoM", "Unit", "Order Unit"},
		contract: func(c *domain.ContractFields, v string) { c.Unit = v }},
	{key: FieldPrice, aliases: []string{"Price", "Unit Price", "Net Price"},
		contract: func(c *domain.ContractFields, v string) { c.Price = v }},
	{key: FieldCurrency, aliases: []string{"Currency", "Curr.", "Crcy"},
		contract: func(c *domain.ContractFields, v string) { c.Currency = v }},
	{key: FieldIncoterm, aliases: []string{"Incoterm", "Incoterms", "Inco Terms"},
		contract: func(c *domain.ContractFields, v string) { c.Incoterm = v }},
	{key: FieldContractDate, aliases: []string{"Contract Date", "Document Date"},
		contract: func(c *domain.ContractFields, v string) { c.ContractDate = v }},
	{key: FieldDeliveryStart, aliases: []string{"Delivery Start", "Delivery Start Date", "Delivery Period Start", "Validity Start"},
		contract: func(c *domain.ContractFields, v string) { c.DeliveryStart = v }},
	{key: FieldDeliveryEnd, aliases: []string{"Delivery End", "Delivery End Date", "Delivery Period End", "Validity End"},
		contract: func(c *domain.ContractFields, v string) { c.DeliveryEnd = v }},
	{key: FieldClassification, aliases: []string{"Group", "Contract Type", "Classification", "Purchasing Group"},
		contract: func(c *domain.ContractFields, v string) { c.Classification = v }},

	{key: FieldVesselName, aliases: []string{"Vessel", "Vessel Name"},
		shipment: func(s *domain.ShipmentFields, v string) { s.VesselName = v }},
	{key: FieldVoyage, aliases: []string{"Voyage", "Voyage No", "Voyage Number"},
		shipment: func(s *domain.ShipmentFields, v string) { s.Voyage = v }},
	{key: FieldLoadingPort, aliases: []string{"Loading Port", "Port of Loading", "Vessel Loading Port", "POL"},
		shipment: func(s *domain.ShipmentFields, v string) { s.LoadingPort = v }},
	{key: FieldDischargePort, aliases: []string{"Discharge Port", "Port of Discharge", "Discharging Port", "POD"},
		shipment: func(s *domain.ShipmentFields, v string) { s.DischargePort = v }},
	{key: FieldBLNumber, aliases: []string{"B/L No", "BL Number", "Bill of Lading"},
		shipment: func(s *domain.ShipmentFields, v string) { s.BLNumber = v }},
	{key: FieldBLDate, aliases: []string{"B/L Date", "Bill of Lading Date"},
		shipment: func(s *domain.ShipmentFields, v string) { s.BLDate = v }},
	{key: FieldBLQuantity, aliases: []string{"B/L Qty", "BL Quantity", "Shipped Qty"},
		shipment: func(s *domain.ShipmentFields, v string) { s.BLQuantity = v }},
	{key: FieldETD, aliases: []string{"ETD", "Estimated Departure"},
		shipment: func(s *domain.ShipmentFields, v string) { s.ETD = v }},
	{key: FieldETA, aliases: []string{"ETA", "Estimated Arrival"},
		shipment: func(s *domain.ShipmentFields, v string) { s.ETA = v }},

	{key: FieldTripID, aliases: []string{"Trip No", "Trip ID", "Trip Number", "Trip"},
		trucking: func(t *domain.TruckingFields, v string) { t.TripID = v }},
	{key: FieldTruckNumber, aliases: []string{"Truck No", "Vehicle No", "Plate No", "Truck Plate"},
		trucking: func(t *domain.TruckingFields, v string) { t.TruckNumber = v }},
	{key: FieldTransporter, aliases: []string{"Transporter", "Trucking Company", "Haulier"},
		trucking: func(t *domain.TruckingFields, v string) { t.Transporter = v }},
	{key: FieldDriver, aliases: []string{"Driver", "Driver Name"},
		trucking: func(t *domain.TruckingFields, v string) { t.Driver = v }},
	{key: FieldOrigin, aliases: []string{"Origin", "Loading Point", "Pickup Point"},
		trucking: func(t *domain.TruckingFields, v string) { t.Origin = v }},
	{key: FieldDestination, aliases: []string{"Destination", "Unloading Point", "Delivery Point"},
		trucking: func(t *domain.TruckingFields, v string) { t.Destination = v }},
	{key: FieldLoadingDate, aliases: []string{"Loading Date", "Truck Loading Date"},
		trucking: func(t *domain.TruckingFields, v string) { t.LoadingDate = v }},
	{key: FieldUnloadingDate, aliases: []string{"Unloading Date", "Truck Unloading Date"},
		trucking: func(t *domain.TruckingFields, v string) { t.UnloadingDate = v }},
	{key: FieldQuantityLoaded, aliases: []string{"Loaded Qty", "Qty Loaded", "Net Weight Loaded"},
		trucking: func(t *domain.TruckingFields, v string) { t.QuantityLoaded = v }},
	{key: FieldQuantityUnloaded, aliases: []string{"Unloaded Qty", "Qty Unloaded", "Net Weight Unloaded"},
		trucking: func(t *domain.TruckingFields, v string) { t.QuantityUnloaded = v }},

	{key: FieldSurveyReport, aliases: []string{"Survey Report No", "Survey Report", "Certificate No"},
		quality: func(q *domain.QualityFields, v string) { q.ReportNumber = v }},
	{key: FieldSurveyLocation, aliases: []string{"Survey Location", "Survey Point"},
		quality: func(q *domain.QualityFields, v string) { q.Location = v }},
	{key: FieldSurveyor, aliases: []string{"Surveyor", "Survey Company"},
		quality: func(q *domain.QualityFields, v string) { q.Surveyor = v }},
	{key: FieldSurveyDate, aliases: []string{"Survey Date", "Inspection Date"},
		quality: func(q *domain.QualityFields, v string) { q.SurveyDate = v }},
	{key: FieldFFA, aliases: []string{"FFA", "FFA (%)", "Free Fatty Acid"},
		quality: func(q *domain.QualityFields, v string) { q.FFA = v }},
	{key: FieldMoisture, aliases: []string{"Moisture", "Moisture (%)", "M&I Moisture"},
		quality: func(q *domain.QualityFields, v string) { q.Moisture = v }},
	{key: FieldImpurity, aliases: []string{"Impurity", "Impurities", "Dirt", "Impurity (%)"},
		quality: func(q *domain.QualityFields, v string) { q.Impurity = v }},
	{key: FieldSurveyQuantity, aliases: []string{"Survey Qty", "Surveyed Quantity", "Outturn Qty"},
		quality: func(q *domain.QualityFields, v string) { q.SurveyQuantity = v }},
}

var bindingsByAlias = indexBindings(fieldBindings)

func indexBindings(bindings []fieldBinding) map[string]*fieldBinding {
	index := make(map[string]*fieldBinding)
	for i := range bindings {
		b := &bindings[i]
		for _, alias := range append([]string{string(b.key)}, b.aliases...) {
			norm := normalizeHeader(alias)
			if existing, dup := index[norm]; dup && existing != b {
				panic(fmt.Sprintf("header alias %q bound to both %s and %s", alias, existing.key, b.key))
			}
			index[norm] = b
		}
	}
	return index
}

// lookupBinding finds the well-known field a header names, if any.
func lookupBinding(header string) (*fieldBinding, bool) {
	b, ok := bindingsByAlias[normalizeHeader(header)]
	return b, ok
}

// normalizeHeader folds case and drops punctuation so that "B/L No." and
// "bl no" compare equal.
func normalizeHeader(header string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// WellKnownFields lists the canonical keys the parser understands.
func WellKnownFields() []FieldKey {
	keys := make([]FieldKey, len(fieldBindings))
	for i, b := range fieldBindings {
		keys[i] = b.key
	}
	return keys
}
