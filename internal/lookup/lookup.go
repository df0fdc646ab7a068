// Package lookup enriches a request's receptor from a reference
// worksheet mapping identifier numbers to display names. It is an
// optional collaborator: a missing match or a read failure leaves the
// request as parsed.
package lookup

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"facturabot/internal/googleauth"
	"facturabot/internal/logger"
	"facturabot/internal/normalize"
)

// Service reads the reference table. Column A holds the identifier,
// column B the display name.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger
}

// New creates the lookup service against one worksheet of the
// spreadsheet identified by sheetURL.
func New(ctx context.Context, sheetURL, sheetName string) (*Service, error) {
	const op = "lookup.New"

	re := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	matches := re.FindStringSubmatch(sheetURL)
	if len(matches) < 2 {
		return nil, fmt.Errorf("%s: invalid Google Sheets URL format", op)
	}

	client, err := googleauth.HTTPClient(ctx, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: matches[1],
		sheetName:     sheetName,
		log:           logger.WithComponent("lookup"),
	}, nil
}

// Lookup returns the display name registered for an identifier value.
func (s *Service) Lookup(ctx context.Context, docNumber string) (string, bool, error) {
	const op = "Lookup"

	resp, err := s.sheetsService.Spreadsheets.Values.Get(
		s.spreadsheetID,
		s.sheetName+"!A:B",
	).Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("%s: failed to read reference sheet: %w", op, err)
	}

	name, found := match(resp.Values, docNumber)
	return name, found, nil
}

// match scans the reference rows for an identifier, comparing digits only
// so formatted entries ("20-40937847-2") still match.
func match(values [][]interface{}, docNumber string) (string, bool) {
	want := normalize.Digits(docNumber)
	if want == "" {
		return "", false
	}

	for _, row := range values {
		if len(row) < 2 {
			continue
		}
		if normalize.Digits(fmt.Sprint(row[0])) == want {
			return fmt.Sprint(row[1]), true
		}
	}
	return "", false
}
