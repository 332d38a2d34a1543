package domain

import "strings"

// RawRow archives one data row keyed by canonical field name.
type RawRow map[string]string

// ContractFields is the contract slice of a parsed row, as cell text.
type ContractFields struct {
	ContractNumber string `json:"contractNumber,omitempty"`
	PONumber       string `json:"poNumber,omitempty"`
	STONumber      string `json:"stoNumber,omitempty"`
	Supplier       string `json:"supplier,omitempty"`
	Product        string `json:"product,omitempty"`
	Quantity       string `json:"quantity,omitempty"`
	Unit           string `json:"unit,omitempty"`
	Price          string `json:"price,omitempty"`
	Currency       string `json:"currency,omitempty"`
	Incoterm       string `json:"incoterm,omitempty"`
	ContractDate   string `json:"contractDate,omitempty"`
	DeliveryStart  string `json:"deliveryStart,omitempty"`
	DeliveryEnd    string `json:"deliveryEnd,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// HasKey reports whether the contract carries a natural key this row.
func (c ContractFields) HasKey() bool {
	return strings.TrimSpace(c.ContractNumber) != "" || strings.TrimSpace(c.PONumber) != ""
}

// ShipmentFields is the shipment slice of a parsed row.
type ShipmentFields struct {
	STONumber     string `json:"stoNumber,omitempty"`
	VesselName    string `json:"vesselName,omitempty"`
	Voyage        string `json:"voyage,omitempty"`
	LoadingPort   string `json:"loadingPort,omitempty"`
	DischargePort string `json:"dischargePort,omitempty"`
	BLNumber      string `json:"blNumber,omitempty"`
	BLDate        string `json:"blDate,omitempty"`
	BLQuantity    string `json:"blQuantity,omitempty"`
	ETD           string `json:"etd,omitempty"`
	ETA           string `json:"eta,omitempty"`
}

// HasKey reports whether the shipment carries its STO number.
func (s ShipmentFields) HasKey() bool {
	return strings.TrimSpace(s.STONumber) != ""
}

// TruckingFields is one trucking block of a parsed row.
type TruckingFields struct {
	TripID           string `json:"tripId,omitempty"`
	TruckNumber      string `json:"truckNumber,omitempty"`
	Transporter      string `json:"transporter,omitempty"`
	Driver           string `json:"driver,omitempty"`
	Origin           string `json:"origin,omitempty"`
	Destination      string `json:"destination,omitempty"`
	LoadingDate      string `json:"loadingDate,omitempty"`
	UnloadingDate    string `json:"unloadingDate,omitempty"`
	QuantityLoaded   string `json:"quantityLoaded,omitempty"`
	QuantityUnloaded string `json:"quantityUnloaded,omitempty"`
}

// HasKey reports whether the trucking entry carries a trip identifier.
func (t TruckingFields) HasKey() bool {
	return strings.TrimSpace(t.TripID) != ""
}

// IsEmpty reports whether no trucking column had a value.
func (t TruckingFields) IsEmpty() bool {
	return t == TruckingFields{}
}

// QualityFields is the quality survey slice of a parsed row.
type QualityFields struct {
	ReportNumber   string `json:"reportNumber,omitempty"`
	Location       string `json:"location,omitempty"`
	Surveyor       string `json:"surveyor,omitempty"`
	SurveyDate     string `json:"surveyDate,omitempty"`
	FFA            string `json:"ffa,omitempty"`
	Moisture       string `json:"moisture,omitempty"`
	Impurity       string `json:"impurity,omitempty"`
	SurveyQuantity string `json:"surveyQuantity,omitempty"`
}

// ParsedRecord is the structured view of one data row.
type ParsedRecord struct {
	RowNumber int              `json:"rowNumber"`
	Contract  ContractFields   `json:"contract"`
	Shipment  ShipmentFields   `json:"shipment"`
	Trucking  []TruckingFields `json:"trucking"`
	Quality   QualityFields    `json:"quality"`
	Raw       RawRow           `json:"raw"`
}
