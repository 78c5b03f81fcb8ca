package validation

import (
	"strings"
	"testing"

	"github.com/customs-screening-pipeline/internal/models"
)

func headerFor(row models.RawRow) []string {
	header := make([]string, 0, len(row))
	for col := range row {
		header = append(header, col)
	}
	return header
}

func TestMissingColumns(t *testing.T) {
	full := headerFor(validRawRow())

	if missing := MissingColumns(full); len(missing) != 0 {
		t.Errorf("expected no missing columns, got %v", missing)
	}

	upper := make([]string, len(full))
	for i, h := range full {
		upper[i] = " " + strings.ToUpper(h) + " "
	}
	if missing := MissingColumns(upper); len(missing) != 0 {
		t.Errorf("header match should ignore case and spaces, got %v", missing)
	}

	missing := MissingColumns([]string{"external_id", "weight"})
	if len(missing) != len(RequiredColumns())-2 {
		t.Errorf("expected %d missing columns, got %d", len(RequiredColumns())-2, len(missing))
	}
	for _, col := range missing {
		if col == "external_id" || col == "weight" {
			t.Errorf("%s is present and should not be reported", col)
		}
	}

	if missing := MissingColumns(nil); missing == nil {
		t.Error("MissingColumns should never return nil")
	}
}

func TestValidateFile(t *testing.T) {
	v := NewValidator(DefaultCatalog())
	header := headerFor(validRawRow())

	rows := []models.RawRow{
		validRawRow(),
		rowWith(map[string]string{"weight": "0"}),
		rowWith(map[string]string{"external_id": "PKG-0003"}),
		rowWith(map[string]string{"platform_id": "amazon", "product_url": "https://ebay.com/x"}),
	}

	result := v.ValidateFile(header, rows, false)

	if result.TotalRows != 4 || result.ValidRows != 2 || result.InvalidRows != 2 {
		t.Errorf("unexpected counts: total=%d valid=%d invalid=%d", result.TotalRows, result.ValidRows, result.InvalidRows)
	}
	if result.ValidRows+result.InvalidRows != result.TotalRows {
		t.Error("valid + invalid must equal total")
	}
	if result.IsValid {
		t.Error("file with invalid rows should not be valid")
	}
	if len(result.Results) != 4 {
		t.Fatalf("expected 4 row results, got %d", len(result.Results))
	}
	for i, r := range result.Results {
		if r.RowNumber != i+1 {
			t.Errorf("result %d has row number %d", i, r.RowNumber)
		}
	}
	if result.Results[1].IsValid || result.Results[3].IsValid {
		t.Error("rows 2 and 4 should be invalid")
	}
	if result.RawRows != nil {
		t.Error("raw rows should not be kept when keepRaw is false")
	}
	if len(result.ValidRecords()) != 2 {
		t.Errorf("expected 2 valid records, got %d", len(result.ValidRecords()))
	}
}

func TestValidateFile_AllValid(t *testing.T) {
	v := NewValidator(nil)
	header := headerFor(validRawRow())

	result := v.ValidateFile(header, []models.RawRow{validRawRow(), validRawRow()}, true)
	if !result.IsValid || result.ValidRows != 2 || result.InvalidRows != 0 {
		t.Errorf("expected all rows valid, got %+v", result)
	}
	if len(result.RawRows) != 2 {
		t.Errorf("expected raw rows to be kept, got %d", len(result.RawRows))
	}
}

func TestValidateFile_MissingColumns(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	row := validRawRow()
	delete(row, "carrier_id")
	delete(row, "product_hs_code") // optional, must not be reported

	result := v.ValidateFile(headerFor(row), []models.RawRow{row, row, row}, false)

	if result.IsValid {
		t.Error("file with missing columns should be invalid")
	}
	if len(result.MissingColumns) != 1 || result.MissingColumns[0] != "carrier_id" {
		t.Errorf("expected only carrier_id to be missing, got %v", result.MissingColumns)
	}
	if result.TotalRows != 3 || result.ValidRows != 0 || result.InvalidRows != 3 {
		t.Errorf("every row should count as invalid: %+v", result)
	}
	if len(result.Results) != 0 {
		t.Errorf("no row should be validated, got %d results", len(result.Results))
	}
}

func TestValidateFile_Empty(t *testing.T) {
	v := NewValidator(DefaultCatalog())

	result := v.ValidateFile(headerFor(validRawRow()), nil, false)
	if result.TotalRows != 0 || result.ValidRows != 0 || result.InvalidRows != 0 {
		t.Errorf("unexpected counts for empty file: %+v", result)
	}
	if !result.IsValid {
		t.Error("a file with a complete header and no rows has nothing invalid")
	}
}

func TestRevalidate(t *testing.T) {
	v := NewValidator(DefaultCatalog())
	header := headerFor(validRawRow())

	rows := []models.RawRow{
		rowWith(map[string]string{"weight": "-3"}),
		validRawRow(),
		rowWith(map[string]string{"product_hs_code": "1"}),
	}
	first := v.ValidateFile(header, rows, true)
	if first.InvalidRows != 2 {
		t.Fatalf("expected 2 invalid rows before editing, got %d", first.InvalidRows)
	}

	edits := map[int]models.RawRow{
		1:  rowWith(map[string]string{"weight": "3"}),
		99: rowWith(map[string]string{"weight": "-1"}),
	}
	second := v.Revalidate(header, first.RawRows, edits)

	if second.TotalRows != 3 || second.ValidRows != 2 || second.InvalidRows != 1 {
		t.Errorf("unexpected counts after edit: total=%d valid=%d invalid=%d",
			second.TotalRows, second.ValidRows, second.InvalidRows)
	}
	if !second.Results[0].IsValid {
		t.Errorf("edited row should now be valid: %+v", second.Results[0].Errors)
	}
	if second.Results[2].IsValid {
		t.Error("unedited invalid row should stay invalid")
	}
	if first.RawRows[0]["weight"] != "-3" {
		t.Error("revalidation must not modify the original rows")
	}
	if second.RawRows[0]["weight"] != "3" {
		t.Error("revalidated result should carry the edited rows")
	}
}
