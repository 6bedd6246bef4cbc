package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records in the dashboard's legacy CSV layout:
// a field is quoted only when it contains a quote, comma or LF, embedded
// quotes are doubled, lines are joined with "\n" and there is no trailing
// newline. CR is ordinary field data. An empty value that is a row's only
// field is written as "" so the row is not a blank line.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writeRecord(buf, data.Headers)
	buf.WriteByte('\n')
	for i, row := range data.Rows {
		if i > 0 {
			buf.WriteByte('\n')
		}
		record := make([]string, len(data.Headers))
		for j, header := range data.Headers {
			record[j] = row[header]
		}
		writeRecord(buf, record)
	}
	return buf.Bytes(), nil
}

// Parse reads CSV produced by Render back into a dataset keyed by header.
func (e *CSVExporter) Parse(raw []byte) (Dataset, error) {
	records, err := readRecords(raw)
	if err != nil {
		return Dataset{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("csv has no header")
	}
	data := Dataset{Headers: records[0]}
	for n, record := range records[1:] {
		if len(record) != len(data.Headers) {
			return Dataset{}, fmt.Errorf("csv row %d has %d fields, want %d", n+1, len(record), len(data.Headers))
		}
		row := make(map[string]string, len(record))
		for i, header := range data.Headers {
			row[header] = record[i]
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

func writeRecord(buf *bytes.Buffer, fields []string) {
	if len(fields) == 1 && fields[0] == "" {
		buf.WriteString(`""`)
		return
	}
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(quoteField(field))
	}
}

func quoteField(field string) string {
	if !strings.ContainsAny(field, "\",\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

var errUnterminatedQuote = errors.New("unterminated quoted field")

// readRecords splits raw into records using the same rules as writeRecord.
// Carriage returns are kept as data. A trailing "\n" does not start a record.
func readRecords(raw []byte) ([][]string, error) {
	var (
		records [][]string
		record  []string
		field   strings.Builder
		line    = 1
	)
	endField := func() {
		record = append(record, field.String())
		field.Reset()
	}
	for i := 0; i < len(raw); {
		if raw[i] == '"' && field.Len() == 0 {
			i++
			for {
				if i >= len(raw) {
					return nil, fmt.Errorf("line %d: %w", line, errUnterminatedQuote)
				}
				c := raw[i]
				if c == '"' {
					if i+1 < len(raw) && raw[i+1] == '"' {
						field.WriteByte('"')
						i += 2
						continue
					}
					i++
					break
				}
				if c == '\n' {
					line++
				}
				field.WriteByte(c)
				i++
			}
			if i < len(raw) && raw[i] != ',' && raw[i] != '\n' {
				return nil, fmt.Errorf("line %d: unexpected %q after quoted field", line, raw[i])
			}
			continue
		}
		switch raw[i] {
		case ',':
			endField()
		case '\n':
			endField()
			records = append(records, record)
			record = nil
			line++
		default:
			field.WriteByte(raw[i])
		}
		i++
	}
	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		endField()
		records = append(records, record)
	}
	return records, nil
}
