// Package sheets is the append-only Google Sheets exporter. Each synced
// operation becomes one spreadsheet row; nothing is ever read back into the
// tracker from here.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kopilka/internal/core"
	"kopilka/internal/remote"
)

type Exporter struct {
	svc            *gsheet.Service
	spreadsheetID  string
	operationsBase string
}

var _ remote.OperationExporter = (*Exporter)(nil)

// NewFromEnv creates an exporter using environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Operations"); the current year is
// appended so each year lives on its own sheet.
func NewFromEnv(ctx context.Context) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	base := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if base == "" {
		base = "Operations"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:            svc,
		spreadsheetID:  spreadsheetID,
		operationsBase: base,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportOperation appends one operation row: date, kind, description, amount,
// wallet, category. Returns the written range as the remote reference.
func (e *Exporter) ExportOperation(ctx context.Context, o core.Operation) (string, error) {
	if err := o.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := e.sheetName(o.Date.Year())

	// Find the next empty row from the sheet's current height.
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", sheet, err)
	}
	nextRow := len(resp.Values) + 1

	row := []any{
		o.Date.Format("2006-01-02"),
		string(o.Kind),
		o.Description,
		o.Amount.Units(),
		o.Wallet.ID,
		o.Category.ID,
	}
	dataRange := fmt.Sprintf("%s!A%d:F%d", sheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row to sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Operation exported to sheet",
		"operation_id", o.ID,
		"remote_ref", dataRange)

	return dataRange, nil
}

// sheetName puts each year on its own sheet, e.g. "Operations 2026".
func (e *Exporter) sheetName(year int) string {
	return fmt.Sprintf("%s %d", e.operationsBase, year)
}
