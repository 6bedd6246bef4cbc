package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderLegacyLayout(t *testing.T) {
	exporter := NewCSVExporter()
	out, err := exporter.Render(Dataset{
		Headers: []string{"Report ID", "Description"},
		Rows: []map[string]string{
			{"Report ID": "REP-1", "Description": "Kitchen fire, smoke visible"},
			{"Report ID": "REP-2", "Description": `He said "help"`},
			{"Report ID": "REP-3", "Description": "line one\nline two"},
		},
	})
	require.NoError(t, err)

	expected := "Report ID,Description\n" +
		"REP-1,\"Kitchen fire, smoke visible\"\n" +
		"REP-2,\"He said \"\"help\"\"\"\n" +
		"REP-3,\"line one\nline two\""
	assert.Equal(t, expected, string(out))
}

func TestCSVRenderHeaderOnly(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{Headers: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, "A,B\n", string(out))
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	exporter := NewCSVExporter()
	original := Dataset{
		Headers: []string{"Description", "Street", "Notes"},
		Rows: []map[string]string{
			{"Description": `Fire "big", spreading`, "Street": "Block 3, Lot 5", "Notes": "first\nsecond"},
			{"Description": "Child with high fever", "Street": "Block 4, Lot 3", "Notes": ""},
		},
	}
	raw, err := exporter.Render(original)
	require.NoError(t, err)

	parsed, err := exporter.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, original.Headers, parsed.Headers)
	assert.Equal(t, original.Rows, parsed.Rows)
}

func TestCSVRoundTripKeepsCarriageReturns(t *testing.T) {
	exporter := NewCSVExporter()
	original := Dataset{
		Headers: []string{"Notes", "Street"},
		Rows: []map[string]string{
			{"Notes": "line1\r\nline2", "Street": "Purok 2\r"},
			{"Notes": "bare\rcarriage", "Street": ""},
		},
	}
	raw, err := exporter.Render(original)
	require.NoError(t, err)
	assert.Equal(t, "Notes,Street\n\"line1\r\nline2\",Purok 2\r\nbare\rcarriage,", string(raw))

	parsed, err := exporter.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, original.Rows, parsed.Rows)
}

func TestCSVRoundTripSingleColumnEmptyValue(t *testing.T) {
	exporter := NewCSVExporter()
	original := Dataset{
		Headers: []string{"Notes"},
		Rows: []map[string]string{
			{"Notes": "x"},
			{"Notes": ""},
			{"Notes": "y"},
		},
	}
	raw, err := exporter.Render(original)
	require.NoError(t, err)
	assert.Equal(t, "Notes\nx\n\"\"\ny", string(raw))

	parsed, err := exporter.Parse(raw)
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 3)
	assert.Equal(t, original.Rows, parsed.Rows)
}

func TestCSVParseHeaderOnly(t *testing.T) {
	parsed, err := NewCSVExporter().Parse([]byte("A,B\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, parsed.Headers)
	assert.Empty(t, parsed.Rows)
}

func TestCSVParseRejectsUnterminatedQuote(t *testing.T) {
	_, err := NewCSVExporter().Parse([]byte("A\n\"open"))
	assert.ErrorIs(t, err, errUnterminatedQuote)
}

func TestCSVParseRejectsRaggedRows(t *testing.T) {
	_, err := NewCSVExporter().Parse([]byte("A,B\n1,2,3"))
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Dataset{
		Headers: []string{"Status", "Count"},
		Rows:    []map[string]string{{"Status": "Pending", "Count": "3"}},
	}, "Dashboard summary", SummaryLine{Label: "Total reports", Value: "3"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFClip(t *testing.T) {
	e := &PDFExporter{maxCellChars: 8}
	assert.Equal(t, "short", e.clip("short"))
	assert.Equal(t, "a lon...", e.clip("a long description"))
	assert.Equal(t, "a b", e.clip("a\n  b"))
}
