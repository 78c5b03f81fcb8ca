package validation

import (
	"regexp"
	"strings"
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	countryCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	postalCodeRegex  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	phoneRegex       = regexp.MustCompile(`^[0-9-]+$`)
	hsCodeRegex      = regexp.MustCompile(`^[0-9]{6,10}$`)
	eanUpcRegex      = regexp.MustCompile(`^[0-9]{12,13}$`)
	dateRegex        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindInteger
	kindBool
	kindList
)

// fieldRule declares how one CSV column becomes one canonical field and
// which constraints the value must satisfy.
type fieldRule struct {
	Field    string
	Column   string
	Kind     fieldKind
	Required bool
	MaxLen   int
	Pattern  *regexp.Regexp
	Format   string // human description of Pattern
	Enum     []string
	Positive bool
	Upper    bool
	Sanitize func(string) string
	Default  interface{}
	Date     bool
	URL      bool
	Email    bool
}

// Canonical field names referenced outside the rule table
const (
	FieldExternalID         = "externalId"
	FieldHouseBillNumber    = "houseBillNumber"
	FieldBarcode            = "barcode"
	FieldPlatformID         = "platformId"
	FieldSellerID           = "sellerId"
	FieldExportCountry      = "exportCountry"
	FieldDestinationCountry = "destinationCountry"
	FieldWeight             = "weight"
	FieldWeightUnit         = "weightUnit"
	FieldEntryType          = "entryType"
	FieldTransportMode      = "transportMode"
	FieldCarrierID          = "carrierId"
	FieldShipDate           = "shipDate"
	FieldProductSKU         = "productSku"
	FieldProductName        = "productName"
	FieldProductDescription = "productDescription"
	FieldProductURL         = "productUrl"
	FieldProductQuantity    = "productQuantity"
	FieldProductValue       = "productValue"
	FieldProductListPrice   = "productListPrice"
	FieldProductOrigin      = "productOriginCountry"
	FieldProductHSCode      = "productHsCode"
	FieldProductEANUPC      = "productEanUpc"
	FieldProductPieces      = "productPieces"
	FieldProductNormalize   = "productNormalize"
	FieldProductCategories  = "productCategories"
	FieldProductImageURL    = "productImageUrl"
	FieldProductImage1      = "productImage1"
	FieldProductImage2      = "productImage2"
	FieldProductImage3      = "productImage3"
)

// Allowed enumeration values
var (
	WeightUnits    = []string{"K", "L"}
	EntryTypes     = []string{"01", "11", "86", "P"}
	TransportModes = []string{"AIR", "TRUCK"}
)

var schema = buildSchema()

func buildSchema() []fieldRule {
	rules := []fieldRule{
		{Field: FieldExternalID, Column: "external_id", Required: true, MaxLen: 50},
		{Field: FieldHouseBillNumber, Column: "house_bill_number", Required: true, MaxLen: 12},
		{Field: FieldBarcode, Column: "barcode", Required: true, MaxLen: 50},
		{Field: FieldPlatformID, Column: "platform_id", Required: true},
		{Field: FieldSellerID, Column: "seller_id", Required: true, MaxLen: 50},
		countryRule(FieldExportCountry, "export_country"),
		countryRule(FieldDestinationCountry, "destination_country"),
		{Field: FieldWeight, Column: "weight", Kind: kindNumber, Required: true, Positive: true},
		{Field: FieldWeightUnit, Column: "weight_unit", Required: true, Upper: true, Enum: WeightUnits},
		{Field: FieldEntryType, Column: "entry_type", Required: true, Upper: true, Enum: EntryTypes},
		{Field: FieldTransportMode, Column: "transport_mode", Required: true, Upper: true, Enum: TransportModes},
		{Field: FieldCarrierID, Column: "carrier_id", Required: true},
		{Field: FieldShipDate, Column: "ship_date", Pattern: dateRegex, Format: "YYYY-MM-DD", Date: true},
	}
	rules = append(rules, addressRules("shipper")...)
	rules = append(rules, addressRules("consignee")...)
	rules = append(rules,
		fieldRule{Field: FieldProductSKU, Column: "product_sku", Required: true, MaxLen: 50},
		fieldRule{Field: FieldProductName, Column: "product_name", Required: true, MaxLen: 300},
		fieldRule{Field: FieldProductDescription, Column: "product_description", Required: true, MaxLen: 2000},
		fieldRule{Field: FieldProductURL, Column: "product_url", Required: true, URL: true},
		fieldRule{Field: FieldProductQuantity, Column: "product_quantity", Kind: kindInteger, Required: true, Positive: true},
		fieldRule{Field: FieldProductValue, Column: "product_value", Kind: kindNumber, Required: true, Positive: true},
		fieldRule{Field: FieldProductListPrice, Column: "product_list_price", Kind: kindNumber, Required: true, Positive: true},
		countryRule(FieldProductOrigin, "product_origin_country"),
		fieldRule{Field: FieldProductHSCode, Column: "product_hs_code", Sanitize: SanitizeHsCode,
			Pattern: hsCodeRegex, Format: "6 to 10 digits"},
		fieldRule{Field: FieldProductEANUPC, Column: "product_ean_upc", Pattern: eanUpcRegex, Format: "12 or 13 digits"},
		fieldRule{Field: FieldProductPieces, Column: "product_pieces", Kind: kindInteger, Positive: true, Default: int64(1)},
		fieldRule{Field: FieldProductNormalize, Column: "product_normalize", Kind: kindBool, Default: false},
		fieldRule{Field: FieldProductCategories, Column: "product_categories", Kind: kindList},
		fieldRule{Field: FieldProductImageURL, Column: "product_image_url"},
		fieldRule{Field: FieldProductImage1, Column: "product_image_1"},
		fieldRule{Field: FieldProductImage2, Column: "product_image_2"},
		fieldRule{Field: FieldProductImage3, Column: "product_image_3"},
	)
	return rules
}

func countryRule(field, column string) fieldRule {
	return fieldRule{
		Field: field, Column: column, Required: true,
		Sanitize: SanitizeCountryCode, Pattern: countryCodeRegex, Format: "3-letter ISO country code",
	}
}

func addressRules(party string) []fieldRule {
	return []fieldRule{
		{Field: party + "Name", Column: party + "_name", Required: true, MaxLen: 50},
		{Field: party + "Line1", Column: party + "_line1", Required: true, MaxLen: 50},
		{Field: party + "Line2", Column: party + "_line2", MaxLen: 50},
		{Field: party + "City", Column: party + "_city", Required: true, MaxLen: 50},
		{Field: party + "State", Column: party + "_state", Required: true, MaxLen: 30},
		{Field: party + "PostalCode", Column: party + "_postal_code", Required: true, MaxLen: 12,
			Sanitize: SanitizePostalCode, Pattern: postalCodeRegex, Format: "letters and digits only"},
		countryRule(party+"Country", party+"_country"),
		{Field: party + "Phone", Column: party + "_phone", Sanitize: SanitizePhone,
			Pattern: phoneRegex, Format: "digits and hyphens only"},
		{Field: party + "Email", Column: party + "_email", MaxLen: 35, Email: true},
	}
}

// RequiredColumns lists the CSV columns that must appear in a file header
func RequiredColumns() []string {
	var cols []string
	for _, r := range schema {
		if r.Required {
			cols = append(cols, r.Column)
		}
	}
	return cols
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
