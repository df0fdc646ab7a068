// Package ledger persists invoice requests as rows of a Google Sheet.
// The sheet is a dumb store: all lifecycle decisions (when a row is
// appended, when and how it is updated) belong to the orchestrator.
package ledger

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"facturabot/internal/googleauth"
	"facturabot/internal/logger"
	"facturabot/pkg/models"
)

// Columns A..P of one ledger row. Status is always PENDING on insert;
// J..O are rewritten exactly once on reconciliation or failure.
var headers = []interface{}{
	"Fecha",          // A: date
	"Receptor",       // B: payer_name
	"Tipo Doc",       // C: id_category
	"Nro Doc",        // D: id_value
	"Concepto",       // E: concept_code
	"Detalle",        // F: description
	"Total",          // G: total
	"Pto Vta",        // H: sales_point
	"Tipo Cbte",      // I: invoice_type
	"Estado",         // J: status
	"CAE",            // K: auth_code
	"Vto CAE",        // L: auth_expiry
	"Nro Cbte",       // M: voucher_number
	"Mensaje",        // N: error_message
	"Link",           // O: document_link
	"ID Solicitud",   // P: request_id
}

const (
	columnSpan     = "A:P"
	requestIDIndex = 15 // column P
	dateLayout     = "2006-01-02"
)

// Service handles Google Sheets operations for the invoice ledger.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger
}

// New creates a ledger service bound to one worksheet of the spreadsheet
// identified by sheetURL. Credentials come from the environment (see
// package googleauth).
func New(ctx context.Context, sheetURL, sheetName string) (*Service, error) {
	const op = "ledger.New"

	log := logger.WithComponent("ledger")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	client, err := googleauth.HTTPClient(ctx, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		log:           log,
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
func extractSpreadsheetID(url string) (string, error) {
	re := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	matches := re.FindStringSubmatch(url)

	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}

	return matches[1], nil
}

// AppendPending appends one PENDING row for a normalized request.
func (s *Service) AppendPending(ctx context.Context, row models.LedgerRow) error {
	const op = "AppendPending"

	if err := s.ensureSheetWithHeaders(ctx); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{rowToValues(row)},
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		s.sheetName+"!"+columnSpan,
		valueRange,
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()

	if err != nil {
		return fmt.Errorf("%s: failed to append row: %w", op, err)
	}

	s.log.Info().
		Str("request_id", row.RequestID).
		Str("receptor", row.PayerName).
		Msg("Appended pending ledger row")

	return nil
}

// MarkEmitted rewrites the result columns of the row matching requestID
// with status EMITTED plus the authorization outcome.
func (s *Service) MarkEmitted(ctx context.Context, requestID string, res models.AuthorizationResult, docLink string) error {
	const op = "MarkEmitted"

	values := []interface{}{
		string(models.StatusEmitted),
		res.CAE,
		res.CAEExpiry.Format(dateLayout),
		res.VoucherNumber,
		"", // no error message
		docLink,
	}

	if err := s.updateResultColumns(ctx, requestID, values); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("request_id", requestID).
		Str("cae", res.CAE).
		Int64("voucher", res.VoucherNumber).
		Msg("Ledger row marked EMITTED")

	return nil
}

// MarkError rewrites the result columns of the row matching requestID
// with status ERROR and the (already truncated) cause.
func (s *Service) MarkError(ctx context.Context, requestID, cause string) error {
	const op = "MarkError"

	values := []interface{}{
		string(models.StatusError),
		"", "", "", // no authorization result
		cause,
		"",
	}

	if err := s.updateResultColumns(ctx, requestID, values); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("request_id", requestID).
		Str("cause", cause).
		Msg("Ledger row marked ERROR")

	return nil
}

// updateResultColumns locates the row for requestID and rewrites J..O.
func (s *Service) updateResultColumns(ctx context.Context, requestID string, values []interface{}) error {
	rowNumber, err := s.findRow(ctx, requestID)
	if err != nil {
		return err
	}

	updateRange := fmt.Sprintf("%s!J%d:O%d", s.sheetName, rowNumber, rowNumber)
	valueRange := &sheets.ValueRange{Values: [][]interface{}{values}}

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		updateRange,
		valueRange,
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()

	if err != nil {
		return fmt.Errorf("failed to update range %s: %w", updateRange, err)
	}

	return nil
}

// findRow returns the 1-based sheet row number whose request-id column
// matches requestID, scanning from the bottom of the sheet.
func (s *Service) findRow(ctx context.Context, requestID string) (int, error) {
	resp, err := s.sheetsService.Spreadsheets.Values.Get(
		s.spreadsheetID,
		s.sheetName+"!"+columnSpan,
	).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet: %w", err)
	}

	idx := matchRequestID(resp.Values, requestID)
	if idx < 0 {
		return 0, fmt.Errorf("%w: request %s", ErrRowNotFound, requestID)
	}

	return idx + 1, nil
}
