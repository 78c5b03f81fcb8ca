package validation

import (
	"github.com/customs-screening-pipeline/internal/models"
)

// MissingColumns returns the required columns absent from header,
// compared case-insensitively, in schema order.
func MissingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[normalizeColumn(h)] = true
	}
	missing := []string{}
	for _, col := range RequiredColumns() {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// ValidateFile validates every row of a parsed file. When a required column
// is missing no row is validated and every row counts as invalid. Rows are
// numbered from 1. keepRaw retains the raw rows for later editing.
func (v *Validator) ValidateFile(header []string, rows []models.RawRow, keepRaw bool) *models.FileValidationResult {
	result := &models.FileValidationResult{
		TotalRows:      len(rows),
		Results:        []models.RowValidationResult{},
		MissingColumns: MissingColumns(header),
	}
	if keepRaw {
		result.RawRows = rows
	}

	if len(result.MissingColumns) > 0 {
		result.InvalidRows = len(rows)
		return result
	}

	result.Results = make([]models.RowValidationResult, 0, len(rows))
	for i, raw := range rows {
		res := v.ValidateRaw(raw, i+1)
		if res.IsValid {
			result.ValidRows++
		} else {
			result.InvalidRows++
		}
		result.Results = append(result.Results, res)
	}
	result.IsValid = result.InvalidRows == 0
	return result
}

// Revalidate applies edits (keyed by 1-based row number) to a copy of rows
// and validates the whole file again. Counts are always recomputed from
// scratch. Edits for row numbers outside the file are ignored.
func (v *Validator) Revalidate(header []string, rows []models.RawRow, edits map[int]models.RawRow) *models.FileValidationResult {
	updated := make([]models.RawRow, len(rows))
	copy(updated, rows)
	for rowNumber, row := range edits {
		if rowNumber >= 1 && rowNumber <= len(updated) {
			updated[rowNumber-1] = row
		}
	}
	return v.ValidateFile(header, updated, true)
}
