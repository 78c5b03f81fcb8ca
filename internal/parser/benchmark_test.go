package parser

import (
	"bytes"
	"fmt"
	"testing"
)

// BenchmarkParse benchmarks CSV decoding and row mapping
func BenchmarkParse(b *testing.B) {
	var buf bytes.Buffer
	buf.WriteString("external_id,weight,consignee_name,product_name\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&buf, "PKG-%06d,1.5,\"Lopez, Maria\",Wireless Mouse\n", i)
	}
	data := buf.Bytes()

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		if _, err := Parse(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParse_Windows1252 benchmarks the legacy encoding fallback
func BenchmarkParse_Windows1252(b *testing.B) {
	var buf bytes.Buffer
	buf.WriteString("external_id,consignee_name\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&buf, "PKG-%06d,Jos\xe9 Pe\xf1a\n", i)
	}
	data := buf.Bytes()

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		if _, err := Parse(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
