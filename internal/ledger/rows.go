package ledger

import (
	"errors"
	"fmt"

	"facturabot/pkg/models"
)

// ErrRowNotFound is returned when no row carries the wanted request id.
// The orchestrator treats this as a reconciliation failure, not a fatal
// pipeline error: the invoice itself was already authorized.
var ErrRowNotFound = errors.New("ledger row not found")

// rowToValues converts a LedgerRow to the A..P value tuple.
func rowToValues(row models.LedgerRow) []interface{} {
	return []interface{}{
		row.Date.Format(dateLayout),   // A
		row.PayerName,                 // B
		string(row.DocCategory),       // C
		row.DocNumber,                 // D
		int(row.Concept),              // E
		row.Description,               // F
		row.Total.InexactFloat64(),    // G
		row.SalesPoint,                // H
		row.InvoiceType,               // I
		string(row.Status),            // J
		row.CAE,                       // K
		"",                            // L: auth_expiry, empty until emitted
		"",                            // M: voucher_number
		row.ErrorMessage,              // N
		row.DocumentLink,              // O
		row.RequestID,                 // P
	}
}

// matchRequestID scans values from the last row backwards and returns the
// 0-based index of the row whose request-id column equals requestID, or
// -1. Matching on the correlation id (instead of "last PENDING row")
// keeps interleaved pipelines over one sheet from claiming each other's
// rows.
func matchRequestID(values [][]interface{}, requestID string) int {
	if requestID == "" {
		return -1
	}
	for i := len(values) - 1; i >= 0; i-- {
		if len(values[i]) <= requestIDIndex {
			continue
		}
		if fmt.Sprint(values[i][requestIDIndex]) == requestID {
			return i
		}
	}
	return -1
}
