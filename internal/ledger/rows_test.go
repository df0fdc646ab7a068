package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturabot/pkg/models"
)

func TestRowToValues(t *testing.T) {
	row := models.NewLedgerRow(models.InvoiceRequest{
		RequestID:   "req-123",
		IssueDate:   time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		PayerName:   "Juan Perez",
		DocCategory: models.DocDNI,
		DocNumber:   "12345678",
		Description: "Servicio de diseño",
		Total:       decimal.RequireFromString("5000.50"),
		SalesPoint:  3,
		InvoiceType: 11,
		Concept:     models.ConceptServices,
	})

	values := rowToValues(row)
	require.Len(t, values, len(headers))

	assert.Equal(t, "2026-08-29", values[0])
	assert.Equal(t, "Juan Perez", values[1])
	assert.Equal(t, "DNI", values[2])
	assert.Equal(t, "12345678", values[3])
	assert.Equal(t, 2, values[4])
	assert.Equal(t, "Servicio de diseño", values[5])
	assert.Equal(t, 5000.50, values[6])
	assert.Equal(t, 3, values[7])
	assert.Equal(t, 11, values[8])
	assert.Equal(t, "PENDING", values[9])
	assert.Equal(t, "req-123", values[15])
}

func TestMatchRequestID(t *testing.T) {
	mkRow := func(id string) []interface{} {
		row := make([]interface{}, len(headers))
		for i := range row {
			row[i] = ""
		}
		row[requestIDIndex] = id
		return row
	}

	values := [][]interface{}{
		{"Fecha", "Receptor"}, // header row, short
		mkRow("req-a"),
		mkRow("req-b"),
		mkRow("req-a"), // duplicate id: last one wins
	}

	assert.Equal(t, 3, matchRequestID(values, "req-a"))
	assert.Equal(t, 2, matchRequestID(values, "req-b"))
	assert.Equal(t, -1, matchRequestID(values, "req-c"))
	assert.Equal(t, -1, matchRequestID(values, ""))
	assert.Equal(t, -1, matchRequestID(nil, "req-a"))
}

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_EF23/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_EF23", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.Error(t, err)
}
