package validation

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/customs-screening-pipeline/internal/models"
)

// Validator turns transformed rows into package records. It never returns
// an error: every outcome is reported in the result.
type Validator struct {
	catalog *Catalog
}

// NewValidator creates a validator backed by the given allow-lists
func NewValidator(catalog *Catalog) *Validator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Validator{catalog: catalog}
}

// ValidateRaw transforms and validates a raw CSV row
func (v *Validator) ValidateRaw(raw models.RawRow, rowNumber int) models.RowValidationResult {
	return v.ValidateRow(Transform(raw), rowNumber)
}

// ValidateRow checks every field and the platform/URL rule, collecting all
// violations instead of stopping at the first one.
func (v *Validator) ValidateRow(row models.TransformedRow, rowNumber int) models.RowValidationResult {
	result := models.RowValidationResult{RowNumber: rowNumber, Errors: []models.FieldError{}}
	values := make(map[string]interface{}, len(schema))

	for _, rule := range schema {
		value := row[rule.Field]
		if value == nil {
			if rule.Default != nil {
				values[rule.Field] = rule.Default
			} else if rule.Required {
				result.Errors = append(result.Errors, models.FieldError{
					Field:   rule.Field,
					Message: fmt.Sprintf("%s is required", rule.Field),
				})
			}
			continue
		}

		normalized, fieldErrs := v.checkField(rule, value)
		if len(fieldErrs) > 0 {
			result.Errors = append(result.Errors, fieldErrs...)
			continue
		}
		values[rule.Field] = normalized
	}

	if err := v.checkPlatformURL(values); err != nil {
		result.Errors = append(result.Errors, *err)
		delete(values, FieldProductURL)
	}

	if len(result.Errors) == 0 {
		result.IsValid = true
		result.SanitizedData = buildRecord(values)
	}
	return result
}

func (v *Validator) checkField(rule fieldRule, value interface{}) (interface{}, []models.FieldError) {
	fail := func(msg string) []models.FieldError {
		return []models.FieldError{{Field: rule.Field, Message: msg, Value: value}}
	}

	switch rule.Kind {
	case kindNumber:
		f, ok := toFloat(value)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fail(fmt.Sprintf("%s must be a number", rule.Field))
		}
		if rule.Positive && f <= 0 {
			return nil, fail(fmt.Sprintf("%s must be greater than 0", rule.Field))
		}
		return f, nil

	case kindInteger:
		i, ok := toInt(value)
		if !ok {
			return nil, fail(fmt.Sprintf("%s must be an integer", rule.Field))
		}
		if rule.Positive && i <= 0 {
			return nil, fail(fmt.Sprintf("%s must be greater than 0", rule.Field))
		}
		return i, nil

	case kindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fail(fmt.Sprintf("%s must be true or false", rule.Field))
		}
		return b, nil

	case kindList:
		list, ok := value.([]string)
		if !ok {
			return nil, fail(fmt.Sprintf("%s must be a list", rule.Field))
		}
		return list, nil
	}

	s, ok := value.(string)
	if !ok {
		return nil, fail(fmt.Sprintf("%s must be text", rule.Field))
	}

	var errs []models.FieldError
	if rule.MaxLen > 0 && utf8.RuneCountInString(s) > rule.MaxLen {
		errs = append(errs, fail(fmt.Sprintf("%s must be at most %d characters", rule.Field, rule.MaxLen))...)
	}
	if rule.Pattern != nil && !rule.Pattern.MatchString(s) {
		errs = append(errs, fail(fmt.Sprintf("%s must be %s", rule.Field, rule.Format))...)
	} else if rule.Date {
		if _, err := time.Parse("2006-01-02", s); err != nil {
			errs = append(errs, fail(fmt.Sprintf("%s is not a valid date", rule.Field))...)
		}
	}
	if len(rule.Enum) > 0 && !contains(rule.Enum, s) {
		errs = append(errs, fail(fmt.Sprintf("%s must be one of: %s", rule.Field, strings.Join(rule.Enum, ", ")))...)
	}
	if rule.Email && !emailRegex.MatchString(s) {
		errs = append(errs, fail(fmt.Sprintf("%s must be a valid email address", rule.Field))...)
	}
	if rule.URL && !isHTTPURL(s) {
		errs = append(errs, fail(fmt.Sprintf("%s must be a valid http(s) URL", rule.Field))...)
	}

	switch rule.Field {
	case FieldPlatformID:
		p, known := v.catalog.Platform(s)
		if !known {
			errs = append(errs, fail(fmt.Sprintf("%s must be one of: %s",
				rule.Field, strings.Join(v.catalog.PlatformIDs(), ", ")))...)
		} else {
			s = p.ID
		}
	case FieldCarrierID:
		canonical, known := v.catalog.Carrier(s)
		if !known {
			errs = append(errs, fail(fmt.Sprintf("%s must be one of: %s",
				rule.Field, strings.Join(v.catalog.CarrierIDs(), ", ")))...)
		} else {
			s = canonical
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return s, nil
}

// checkPlatformURL applies the cross-field rule once both fields passed
// their own checks.
func (v *Validator) checkPlatformURL(values map[string]interface{}) *models.FieldError {
	platformID, ok := values[FieldPlatformID].(string)
	if !ok {
		return nil
	}
	productURL, ok := values[FieldProductURL].(string)
	if !ok {
		return nil
	}
	p, known := v.catalog.Platform(platformID)
	if !known || v.catalog.MatchesPlatformURL(p, productURL) {
		return nil
	}
	return &models.FieldError{
		Field:   FieldProductURL,
		Message: fmt.Sprintf("productUrl does not match platform %s: expected a domain containing %q", p.ID, p.Domain+"."),
		Value:   productURL,
	}
}

func buildRecord(values map[string]interface{}) *models.PackageRecord {
	str := func(field string) string {
		s, _ := values[field].(string)
		return s
	}
	num := func(field string) float64 {
		f, _ := values[field].(float64)
		return f
	}
	integer := func(field string) int {
		i, _ := values[field].(int64)
		return int(i)
	}
	address := func(party string) models.Address {
		return models.Address{
			Name:       str(party + "Name"),
			Line1:      str(party + "Line1"),
			Line2:      str(party + "Line2"),
			City:       str(party + "City"),
			State:      str(party + "State"),
			PostalCode: str(party + "PostalCode"),
			Country:    str(party + "Country"),
			Phone:      str(party + "Phone"),
			Email:      str(party + "Email"),
		}
	}

	normalize, _ := values[FieldProductNormalize].(bool)
	categories, _ := values[FieldProductCategories].([]string)

	var slots []string
	for _, field := range []string{FieldProductImage1, FieldProductImage2, FieldProductImage3} {
		if s := str(field); s != "" {
			slots = append(slots, s)
		}
	}

	return &models.PackageRecord{
		ExternalID:         str(FieldExternalID),
		HouseBillNumber:    str(FieldHouseBillNumber),
		Barcode:            str(FieldBarcode),
		PlatformID:         str(FieldPlatformID),
		SellerID:           str(FieldSellerID),
		ExportCountry:      str(FieldExportCountry),
		DestinationCountry: str(FieldDestinationCountry),
		Weight:             num(FieldWeight),
		WeightUnit:         str(FieldWeightUnit),
		EntryType:          str(FieldEntryType),
		TransportMode:      str(FieldTransportMode),
		CarrierID:          str(FieldCarrierID),
		ShipDate:           str(FieldShipDate),
		Shipper:            address("shipper"),
		Consignee:          address("consignee"),
		Products: []models.Product{{
			SKU:           str(FieldProductSKU),
			Name:          str(FieldProductName),
			Description:   str(FieldProductDescription),
			URL:           str(FieldProductURL),
			Quantity:      integer(FieldProductQuantity),
			DeclaredValue: num(FieldProductValue),
			ListPrice:     num(FieldProductListPrice),
			OriginCountry: str(FieldProductOrigin),
			HSCode:        str(FieldProductHSCode),
			EANUPC:        str(FieldProductEANUPC),
			Pieces:        integer(FieldProductPieces),
			Normalize:     normalize,
			Categories:    categories,
			ImageSource:   str(FieldProductImageURL),
			ImageSlots:    slots,
		}},
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toInt(value interface{}) (int64, bool) {
	switch n := value.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
