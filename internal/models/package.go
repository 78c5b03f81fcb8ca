package models

// RawRow is one CSV record keyed by header name, header row excluded.
type RawRow map[string]string

// TransformedRow maps canonical field names to typed values
// (string, float64, int64, bool, []string or nil).
type TransformedRow map[string]interface{}

// Weight units
const (
	WeightUnitKilograms = "K"
	WeightUnitPounds    = "L"
)

// Address is a shipper or consignee address
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// Product is one declared line item
type Product struct {
	SKU           string   `json:"sku"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	Quantity      int      `json:"quantity"`
	DeclaredValue float64  `json:"declared_value"`
	ListPrice     float64  `json:"list_price"`
	OriginCountry string   `json:"origin_country"`
	HSCode        string   `json:"hs_code,omitempty"`
	EANUPC        string   `json:"ean_upc,omitempty"`
	Pieces        int      `json:"pieces"`
	Normalize     bool     `json:"normalize"`
	Categories    []string `json:"categories,omitempty"`
	// ImageSource is one image reference or a pipe- or comma-separated list.
	ImageSource string   `json:"image_source,omitempty"`
	ImageSlots  []string `json:"image_slots,omitempty"`
}

// PackageRecord is a fully validated package. It is never mutated after
// validation; corrections re-enter as a new row.
type PackageRecord struct {
	ExternalID         string    `json:"external_id"`
	HouseBillNumber    string    `json:"house_bill_number"`
	Barcode            string    `json:"barcode"`
	PlatformID         string    `json:"platform_id"`
	SellerID           string    `json:"seller_id"`
	ExportCountry      string    `json:"export_country"`
	DestinationCountry string    `json:"destination_country"`
	Weight             float64   `json:"weight"`
	WeightUnit         string    `json:"weight_unit"`
	EntryType          string    `json:"entry_type"`
	TransportMode      string    `json:"transport_mode"`
	CarrierID          string    `json:"carrier_id"`
	ShipDate           string    `json:"ship_date,omitempty"`
	Shipper            Address   `json:"shipper"`
	Consignee          Address   `json:"consignee"`
	Products           []Product `json:"products"`
}

// FieldError describes one violated constraint
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// RowValidationResult is the outcome of validating a single row.
// SanitizedData is set only when IsValid is true.
type RowValidationResult struct {
	RowNumber     int            `json:"row_number"`
	IsValid       bool           `json:"is_valid"`
	Errors        []FieldError   `json:"errors"`
	SanitizedData *PackageRecord `json:"sanitized_data,omitempty"`
}

// FileValidationResult aggregates row validation over one upload. It is
// replaced, never patched, when rows are edited.
type FileValidationResult struct {
	IsValid        bool                  `json:"is_valid"`
	TotalRows      int                   `json:"total_rows"`
	ValidRows      int                   `json:"valid_rows"`
	InvalidRows    int                   `json:"invalid_rows"`
	Results        []RowValidationResult `json:"results"`
	MissingColumns []string              `json:"missing_columns"`
	RawRows        []RawRow              `json:"raw_rows,omitempty"`
}

// ValidRecords returns the valid row results in file order
func (r *FileValidationResult) ValidRecords() []RowValidationResult {
	var out []RowValidationResult
	for _, res := range r.Results {
		if res.IsValid && res.SanitizedData != nil {
			out = append(out, res)
		}
	}
	return out
}
