package validation

import (
	"fmt"
	"testing"

	"github.com/customs-screening-pipeline/internal/models"
)

// BenchmarkValidateRaw benchmarks single row validation
func BenchmarkValidateRaw(b *testing.B) {
	validator := NewValidator(DefaultCatalog())
	row := validRawRow()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		validator.ValidateRaw(row, i)
	}
}

// BenchmarkValidateFile benchmarks validation of a 1000 row file
func BenchmarkValidateFile(b *testing.B) {
	validator := NewValidator(DefaultCatalog())
	base := validRawRow()
	header := headerFor(base)

	rows := make([]models.RawRow, 1000)
	for i := range rows {
		row := make(models.RawRow, len(base))
		for k, v := range base {
			row[k] = v
		}
		row["external_id"] = fmt.Sprintf("PKG-%06d", i)
		rows[i] = row
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		validator.ValidateFile(header, rows, false)
	}

	b.ReportMetric(float64(1000*b.N)/b.Elapsed().Seconds(), "rows/sec")
}
