package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/customs-screening-pipeline/internal/models"
)

// Encodings reported on a parsed file
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
)

var (
	// ErrEmptyFile is returned when the input has no header line
	ErrEmptyFile = errors.New("csv file is empty")

	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ParsedFile is an uploaded CSV split into its header and data rows
type ParsedFile struct {
	Header   []string
	Rows     []models.RawRow
	Encoding string
}

// Parse reads a whole CSV document. The header line is required; every later
// record becomes one RawRow keyed by header name. Short records are padded
// with empty values and cells beyond the header are dropped.
func Parse(r io.Reader) (*ParsedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	decoded, enc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s input: %w", enc, err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	parsed := &ParsedFile{Header: header, Rows: []models.RawRow{}, Encoding: enc}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		if blank(record) {
			continue
		}

		row := make(models.RawRow, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if _, dup := row[col]; dup {
				continue
			}
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		parsed.Rows = append(parsed.Rows, row)
	}

	return parsed, nil
}

// decode converts data to UTF-8. A BOM selects UTF-8 or UTF-16 and is
// stripped; input without a BOM that is not valid UTF-8 is read as
// Windows-1252.
func decode(data []byte) ([]byte, string, error) {
	var enc string
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		enc = EncodingUTF8BOM
	case bytes.HasPrefix(data, bomUTF16LE):
		enc = EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		enc = EncodingUTF16BE
	case utf8.Valid(data):
		return data, EncodingUTF8, nil
	default:
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		return out, EncodingWindows1252, err
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	return out, enc, err
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
