package validation

import (
	"strings"
	"testing"

	"github.com/customs-screening-pipeline/internal/models"
)

// validRawRow returns a row that passes every rule with the default catalog.
func validRawRow() models.RawRow {
	return models.RawRow{
		"external_id":            "PKG-0001",
		"house_bill_number":      "HB123456",
		"barcode":                "BC-998877",
		"platform_id":            "amazon",
		"seller_id":              "SELLER-42",
		"export_country":         "usa",
		"destination_country":    "MEX",
		"weight":                 "1.25",
		"weight_unit":            "k",
		"entry_type":             "86",
		"transport_mode":         "air",
		"carrier_id":             "dhl",
		"ship_date":              "2024-05-01",
		"shipper_name":           "Acme Fulfillment",
		"shipper_line1":          "100 Main St",
		"shipper_city":           "Laredo",
		"shipper_state":          "TX",
		"shipper_postal_code":    "78040-1234",
		"shipper_country":        "USA",
		"shipper_phone":          "+1 (956) 555-0100",
		"shipper_email":          "ops@acme.example",
		"consignee_name":         "Maria Lopez",
		"consignee_line1":        "Av. Reforma 222",
		"consignee_city":         "Ciudad de Mexico",
		"consignee_state":        "CDMX",
		"consignee_postal_code":  "06600",
		"consignee_country":      "MEX",
		"product_sku":            "SKU-1",
		"product_name":           "Wireless Mouse",
		"product_description":    "2.4GHz wireless optical mouse",
		"product_url":            "https://www.amazon.com/dp/B000000001",
		"product_quantity":       "2",
		"product_value":          "19.99",
		"product_list_price":     "24.99",
		"product_origin_country": "CHN",
		"product_hs_code":        "8471.60.70",
		"product_categories":     "Electronics|Computer Accessories",
		"product_image_url":      "https://images.example.com/mouse.jpg",
	}
}

func rowWith(overrides map[string]string) models.RawRow {
	row := validRawRow()
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func hasFieldError(errs []models.FieldError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateRaw_ValidRow(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	res := v.ValidateRaw(validRawRow(), 1)
	if !res.IsValid {
		t.Fatalf("expected valid row, got errors: %+v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("expected zero errors, got %d", len(res.Errors))
	}

	rec := res.SanitizedData
	if rec == nil {
		t.Fatal("expected sanitized data for a valid row")
	}
	if rec.ExportCountry != "USA" {
		t.Errorf("export country should be uppercased, got %q", rec.ExportCountry)
	}
	if rec.WeightUnit != "K" || rec.TransportMode != "AIR" {
		t.Errorf("enums should be uppercased, got unit=%q mode=%q", rec.WeightUnit, rec.TransportMode)
	}
	if rec.CarrierID != "DHL" {
		t.Errorf("carrier should use canonical spelling, got %q", rec.CarrierID)
	}
	if rec.Shipper.PostalCode != "780401234" {
		t.Errorf("postal code should be sanitized, got %q", rec.Shipper.PostalCode)
	}
	if rec.Shipper.Phone != "1956555-0100" {
		t.Errorf("phone should be sanitized, got %q", rec.Shipper.Phone)
	}
	if len(rec.Products) != 1 {
		t.Fatalf("expected one product, got %d", len(rec.Products))
	}
	p := rec.Products[0]
	if p.HSCode != "84716070" {
		t.Errorf("hs code should be sanitized, got %q", p.HSCode)
	}
	if p.Quantity != 2 || p.DeclaredValue != 19.99 {
		t.Errorf("unexpected numeric values: qty=%d value=%v", p.Quantity, p.DeclaredValue)
	}
	if p.Pieces != 1 {
		t.Errorf("pieces should default to 1, got %d", p.Pieces)
	}
	if p.Normalize {
		t.Error("normalize should default to false")
	}
	if len(p.Categories) != 2 || p.Categories[1] != "Computer Accessories" {
		t.Errorf("categories should split on pipes, got %v", p.Categories)
	}
}

func TestValidateRaw_FieldRules(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	tests := []struct {
		name       string
		overrides  map[string]string
		wantFields []string
	}{
		{"house bill too long", map[string]string{"house_bill_number": "HB12345678901"}, []string{FieldHouseBillNumber}},
		{"bad country", map[string]string{"destination_country": "MX"}, []string{FieldDestinationCountry}},
		{"zero weight", map[string]string{"weight": "0"}, []string{FieldWeight}},
		{"negative weight", map[string]string{"weight": "-2"}, []string{FieldWeight}},
		{"weight not a number", map[string]string{"weight": "heavy"}, []string{FieldWeight}},
		{"weight NaN", map[string]string{"weight": "NaN"}, []string{FieldWeight}},
		{"weight Inf", map[string]string{"weight": "Inf"}, []string{FieldWeight}},
		{"declared value +Inf", map[string]string{"product_value": "+Inf"}, []string{FieldProductValue}},
		{"list price NaN", map[string]string{"product_list_price": "nan"}, []string{FieldProductListPrice}},
		{"bad weight unit", map[string]string{"weight_unit": "G"}, []string{FieldWeightUnit}},
		{"bad entry type", map[string]string{"entry_type": "02"}, []string{FieldEntryType}},
		{"bad transport mode", map[string]string{"transport_mode": "SEA"}, []string{FieldTransportMode}},
		{"unknown carrier", map[string]string{"carrier_id": "ACME"}, []string{FieldCarrierID}},
		{"unknown platform", map[string]string{"platform_id": "craigslist"}, []string{FieldPlatformID}},
		{"bad ship date", map[string]string{"ship_date": "05/01/2024"}, []string{FieldShipDate}},
		{"impossible ship date", map[string]string{"ship_date": "2024-02-31"}, []string{FieldShipDate}},
		{"fractional quantity", map[string]string{"product_quantity": "1.5"}, []string{FieldProductQuantity}},
		{"zero quantity", map[string]string{"product_quantity": "0"}, []string{FieldProductQuantity}},
		{"zero pieces", map[string]string{"product_pieces": "0"}, []string{FieldProductPieces}},
		{"zero declared value", map[string]string{"product_value": "0"}, []string{FieldProductValue}},
		{"short hs code", map[string]string{"product_hs_code": "84.71"}, []string{FieldProductHSCode}},
		{"long hs code", map[string]string{"product_hs_code": "12345678901"}, []string{FieldProductHSCode}},
		{"bad ean", map[string]string{"product_ean_upc": "12345"}, []string{FieldProductEANUPC}},
		{"bad email", map[string]string{"consignee_email": "not-an-email"}, []string{"consigneeEmail"}},
		{"long email", map[string]string{"shipper_email": "a.very.long.mailbox.name@example-company.com"}, []string{"shipperEmail"}},
		{"long state", map[string]string{"shipper_state": strings.Repeat("x", 31)}, []string{"shipperState"}},
		{"long postal code", map[string]string{"consignee_postal_code": "1234567890123"}, []string{"consigneePostalCode"}},
		{"long product name", map[string]string{"product_name": strings.Repeat("n", 301)}, []string{FieldProductName}},
		{"relative url", map[string]string{"product_url": "/dp/B0001"}, []string{FieldProductURL}},
		{"bad normalize flag", map[string]string{"product_normalize": "maybe"}, []string{FieldProductNormalize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateRaw(rowWith(tt.overrides), 3)
			if res.IsValid {
				t.Fatal("expected row to be invalid")
			}
			if res.SanitizedData != nil {
				t.Error("invalid rows must not carry sanitized data")
			}
			if res.RowNumber != 3 {
				t.Errorf("expected row number 3, got %d", res.RowNumber)
			}
			for _, field := range tt.wantFields {
				if !hasFieldError(res.Errors, field) {
					t.Errorf("expected error for %s, got %+v", field, res.Errors)
				}
			}
		})
	}
}

func TestValidateRaw_MissingRequiredFields(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	for _, rule := range schema {
		if !rule.Required {
			continue
		}
		t.Run(rule.Column, func(t *testing.T) {
			row := validRawRow()
			delete(row, rule.Column)
			res := v.ValidateRaw(row, 1)
			if res.IsValid {
				t.Fatalf("row without %s should be invalid", rule.Column)
			}
			if !hasFieldError(res.Errors, rule.Field) {
				t.Errorf("expected error naming %s, got %+v", rule.Field, res.Errors)
			}
		})
	}
}

func TestValidateRaw_CollectsAllErrors(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	res := v.ValidateRaw(rowWith(map[string]string{
		"external_id":      "",
		"weight":           "-1",
		"weight_unit":      "X",
		"product_hs_code":  "12",
		"shipper_country":  "US",
		"product_quantity": "abc",
	}), 7)

	want := []string{FieldExternalID, FieldWeight, FieldWeightUnit, FieldProductHSCode, "shipperCountry", FieldProductQuantity}
	if len(res.Errors) != len(want) {
		t.Errorf("expected %d errors, got %d: %+v", len(want), len(res.Errors), res.Errors)
	}
	for _, field := range want {
		if !hasFieldError(res.Errors, field) {
			t.Errorf("expected error for %s", field)
		}
	}
}

func TestValidateRaw_PlatformURLRule(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	tests := []struct {
		name      string
		platform  string
		url       string
		wantValid bool
	}{
		{"amazon on ebay", "amazon", "https://ebay.com/x", false},
		{"amazon on amazon", "amazon", "https://www.amazon.com/x", true},
		{"amazon japan", "amazon", "https://www.amazon.co.jp/x", true},
		{"amazon germany", "Amazon", "https://amazon.de/x", true},
		{"ebay uk", "EBAY", "https://www.ebay.co.uk/itm/1", true},
		{"ebay on amazon", "ebay", "https://www.amazon.com/x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateRaw(rowWith(map[string]string{"platform_id": tt.platform, "product_url": tt.url}), 1)
			if res.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (errors %+v)", res.IsValid, tt.wantValid, res.Errors)
			}
			if !tt.wantValid {
				if len(res.Errors) != 1 || res.Errors[0].Field != FieldProductURL {
					t.Fatalf("expected a single productUrl error, got %+v", res.Errors)
				}
				p, _ := v.catalog.Platform(tt.platform)
				if !strings.Contains(res.Errors[0].Message, p.Domain+".") {
					t.Errorf("message should name the expected domain, got %q", res.Errors[0].Message)
				}
			}
		})
	}
}

func TestValidateRaw_PlatformURLRuleSkippedForUnknownPlatform(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	res := v.ValidateRaw(rowWith(map[string]string{"platform_id": "craigslist", "product_url": "https://ebay.com/x"}), 1)
	if hasFieldError(res.Errors, FieldProductURL) {
		t.Errorf("cross-field rule should not run when the platform itself is invalid: %+v", res.Errors)
	}
}

func TestValidateRaw_InjectedCatalog(t *testing.T) {
	v := NewValidator(NewCatalog([]Platform{{ID: "localshop", Domain: "localshop"}}, []string{"POSTNL"}, false))

	res := v.ValidateRaw(rowWith(map[string]string{
		"platform_id": "LocalShop",
		"product_url": "https://shop.localshop.nl/p/1",
		"carrier_id":  "postnl",
	}), 1)
	if !res.IsValid {
		t.Fatalf("expected valid row with injected catalog, got %+v", res.Errors)
	}
	if res.SanitizedData.PlatformID != "localshop" || res.SanitizedData.CarrierID != "POSTNL" {
		t.Errorf("unexpected canonical ids: %q %q", res.SanitizedData.PlatformID, res.SanitizedData.CarrierID)
	}

	res = v.ValidateRaw(validRawRow(), 1)
	if !hasFieldError(res.Errors, FieldPlatformID) || !hasFieldError(res.Errors, FieldCarrierID) {
		t.Errorf("default platform and carrier should be rejected by the injected catalog: %+v", res.Errors)
	}
}

func TestValidateRow_TypedInput(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	row := Transform(validRawRow())
	row[FieldProductPieces] = 3
	row[FieldProductNormalize] = true
	row[FieldProductCategories] = []string{"a", "b", "c"}

	res := v.ValidateRow(row, 1)
	if !res.IsValid {
		t.Fatalf("expected valid row, got %+v", res.Errors)
	}
	p := res.SanitizedData.Products[0]
	if p.Pieces != 3 || !p.Normalize || len(p.Categories) != 3 {
		t.Errorf("typed values not carried through: %+v", p)
	}
}

func TestTransform(t *testing.T) {
	row := Transform(models.RawRow{
		" Product_Quantity ":  "4",
		"PRODUCT_VALUE":       "12.5",
		"product_normalize":   "yes",
		"product_categories":  "toys, games",
		"shipper_phone":       "(555) 010-0000",
		"product_hs_code":     "",
		"destination_country": " mex ",
	})

	if got, ok := row[FieldProductQuantity].(int64); !ok || got != 4 {
		t.Errorf("quantity = %#v", row[FieldProductQuantity])
	}
	if got, ok := row[FieldProductValue].(float64); !ok || got != 12.5 {
		t.Errorf("value = %#v", row[FieldProductValue])
	}
	if got, ok := row[FieldProductNormalize].(bool); !ok || !got {
		t.Errorf("normalize = %#v", row[FieldProductNormalize])
	}
	if got, ok := row[FieldProductCategories].([]string); !ok || len(got) != 2 || got[1] != "games" {
		t.Errorf("categories = %#v", row[FieldProductCategories])
	}
	if got := row["shipperPhone"]; got != "555010-0000" {
		t.Errorf("phone = %#v", got)
	}
	if row[FieldProductHSCode] != nil {
		t.Errorf("empty cell should be nil, got %#v", row[FieldProductHSCode])
	}
	if got := row[FieldDestinationCountry]; got != "MEX" {
		t.Errorf("country = %#v", got)
	}
	if row[FieldExternalID] != nil {
		t.Errorf("absent column should be nil, got %#v", row[FieldExternalID])
	}
}
