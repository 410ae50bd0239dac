package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ecomstudio/internal/core"
)

func TestNewReportWriter_MissingSpreadsheetID(t *testing.T) {
	_, err := NewReportWriter(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewReportWriter_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := NewReportWriter(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNewReportWriter_UnreadableCredentialsFile(t *testing.T) {
	_, err := NewReportWriter(context.Background(), Options{
		SpreadsheetID:   "sheet",
		CredentialsFile: filepath.Join(t.TempDir(), "nope.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestAppendSnapshot_UninitializedService(t *testing.T) {
	w := &ReportWriter{spreadsheetID: "test", sheetBase: "Stats", now: time.Now}
	if _, err := w.AppendSnapshot(context.Background(), core.StatsReport{}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func sampleReport() core.StatsReport {
	return core.StatsReport{
		GeneratedAt: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		Stats: map[core.StatKey]core.PeriodStat{
			{Period: core.Daily, Direction: core.Spend}: {Amount: 30, ChangePercent: 50, Trend: core.TrendPositive},
		},
		Failed: []core.StatKey{{Period: core.Monthly, Direction: core.TopUp}},
	}
}

func TestSnapshotRows(t *testing.T) {
	rows := snapshotRows(sampleReport())
	if len(rows) != 10 {
		t.Fatalf("expected one row per combination, got %d", len(rows))
	}
	first := rows[0]
	if first[0] != "2024-06-15T12:00:00Z" || first[1] != "daily" || first[2] != "spend" ||
		first[3] != int64(30) || first[4] != int64(50) || first[5] != "positive" {
		t.Fatalf("unexpected first row: %v", first)
	}
	for _, row := range rows {
		if row[1] == "monthly" && row[2] == "topup" {
			if row[5] != "n/a" || row[3] != int64(0) {
				t.Fatalf("defaulted combination should be marked: %v", row)
			}
			return
		}
	}
	t.Fatal("monthly/topup row missing")
}

func TestAppendSnapshot_PostsRows(t *testing.T) {
	var (
		gotPath  string
		gotInput string
		gotRows  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInput = r.URL.Query().Get("valueInputOption")
		var body gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			gotRows = len(body.Values)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'2024 Stats'!A2:F11"}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	w := &ReportWriter{svc: svc, spreadsheetID: "sheet-1", sheetBase: "Stats", now: time.Now}

	ref, err := w.AppendSnapshot(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "'2024 Stats'!A2:F11" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if !strings.Contains(gotPath, "sheet-1") || !strings.Contains(gotPath, "2024 Stats!A:F:append") {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotInput != "USER_ENTERED" {
		t.Fatalf("expected USER_ENTERED, got %q", gotInput)
	}
	if gotRows != 10 {
		t.Fatalf("expected 10 rows posted, got %d", gotRows)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Stats", 2025, "2025 Stats"},
		{"", 2023, ""},
		{"Admin Report", 2022, "2022 Admin Report"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.baseName, tt.year); got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.baseName, tt.year, got, tt.expected)
		}
	}
}
