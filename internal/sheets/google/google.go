package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"ecomstudio/internal/core"
	ports "ecomstudio/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// ReportWriter appends stats snapshots to a Google Sheets tab, one row per
// period and direction.
type ReportWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	now           func() time.Time
}

var _ ports.ReportWriter = (*ReportWriter)(nil)

// Options configures a ReportWriter. Credentials come from CredentialsJSON,
// then CredentialsFile, then GOOGLE_APPLICATION_CREDENTIALS.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func NewReportWriter(ctx context.Context, opts Options) (*ReportWriter, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Stats"
	}

	creds, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets report writer ready",
		"spreadsheet_id", spreadsheetID,
		"sheet", sheet)

	return &ReportWriter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheet,
		now:           time.Now,
	}, nil
}

func loadCredentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendSnapshot writes the report into "<year> <sheet>", where the year is
// taken from the report's generation time.
func (w *ReportWriter) AppendSnapshot(ctx context.Context, r core.StatsReport) (string, error) {
	if w.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	at := r.GeneratedAt
	if at.IsZero() {
		at = w.now()
	}
	sheet := yearPrefixedName(w.sheetBase, at.Year())
	rng := fmt.Sprintf("%s!A:F", sheet)

	resp, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, rng, &gsheet.ValueRange{Values: snapshotRows(r)}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append snapshot to %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// snapshotRows flattens a report into
// generated_at | period | direction | amount | change_percent | trend,
// with the trend cell reading "n/a" for defaulted combinations.
func snapshotRows(r core.StatsReport) [][]any {
	failed := make(map[core.StatKey]bool, len(r.Failed))
	for _, k := range r.Failed {
		failed[k] = true
	}
	stamp := r.GeneratedAt.Format(time.RFC3339)

	keys := core.AllStatKeys()
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		st := r.Get(k.Period, k.Direction)
		trend := string(st.Trend)
		if failed[k] {
			trend = "n/a"
		}
		rows = append(rows, []any{stamp, string(k.Period), string(k.Direction), st.Amount, st.ChangePercent, trend})
	}
	return rows
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
