package validation

import (
	"strconv"
	"strings"

	"github.com/customs-screening-pipeline/internal/models"
)

// Transform maps a raw CSV row onto canonical field names. Column names are
// matched case-insensitively, sanitizers run first, and values that do not
// parse as their declared kind are kept as strings so the validator can
// report them. Empty cells become nil.
func Transform(raw models.RawRow) models.TransformedRow {
	cells := make(map[string]string, len(raw))
	for k, v := range raw {
		key := normalizeColumn(k)
		if _, dup := cells[key]; !dup {
			cells[key] = v
		}
	}

	row := make(models.TransformedRow, len(schema))
	for _, rule := range schema {
		value := strings.TrimSpace(cells[rule.Column])
		if rule.Sanitize != nil {
			value = rule.Sanitize(value)
		}
		if rule.Upper {
			value = strings.ToUpper(value)
		}
		if value == "" {
			row[rule.Field] = nil
			continue
		}
		row[rule.Field] = convert(rule.Kind, value)
	}
	return row
}

func convert(kind fieldKind, value string) interface{} {
	switch kind {
	case kindNumber:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case kindInteger:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case kindBool:
		if b, ok := parseBool(value); ok {
			return b
		}
	case kindList:
		return splitList(value)
	}
	return value
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	}
	return false, false
}

// splitList splits on pipes, or on commas when the cell has no pipe.
func splitList(value string) []string {
	sep := "|"
	if !strings.Contains(value, sep) {
		sep = ","
	}
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
