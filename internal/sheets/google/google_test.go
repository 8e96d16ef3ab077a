package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Report")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	clearCredentialEnv(t)
	_, err := New(context.Background(), "sheet-id", "Report")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Run("inline json wins", func(t *testing.T) {
		clearCredentialEnv(t)
		t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
		t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/does/not/exist")
		got, err := credentialsFromEnv()
		if err != nil || string(got) != `{"type":"service_account"}` {
			t.Fatalf("got %q, %v", got, err)
		}
	})

	t.Run("application credentials fallback", func(t *testing.T) {
		clearCredentialEnv(t)
		path := filepath.Join(t.TempDir(), "sa.json")
		if err := os.WriteFile(path, []byte(`{"k":1}`), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
		got, err := credentialsFromEnv()
		if err != nil || string(got) != `{"k":1}` {
			t.Fatalf("got %q, %v", got, err)
		}
	})

	t.Run("unreadable file", func(t *testing.T) {
		clearCredentialEnv(t)
		t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", filepath.Join(t.TempDir(), "missing.json"))
		if _, err := credentialsFromEnv(); err == nil {
			t.Fatal("expected read error")
		}
	})
}

func TestExportWithoutService(t *testing.T) {
	e := &Exporter{spreadsheetID: "x", sheetBase: "Report"}
	if err := e.ExportOverview(context.Background(), analytics.Overview{}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestTabName(t *testing.T) {
	p := core.Period{Month: 7, Year: 2024}
	if got := TabName("Report", analytics.Overview{Period: p}); got != "Report 2024-07" {
		t.Fatalf("TabName = %q", got)
	}
	if got := TabName(" Report ", analytics.Overview{Period: p, Owner: "alice"}); got != "Report 2024-07 alice" {
		t.Fatalf("TabName = %q", got)
	}
	if got := quoteSheet("Bob's 2024-07"); got != "'Bob''s 2024-07'" {
		t.Fatalf("quoteSheet = %q", got)
	}
}

func TestOverviewRows(t *testing.T) {
	ov := analytics.Overview{
		Owner:  "alice",
		Period: core.Period{Month: 7, Year: 2024},
		Report: analytics.Report{
			TotalIncome:   core.Cents(500000),
			TotalExpenses: core.Cents(29000),
			NetIncome:     core.Cents(471000),
			CategoryExpenses: map[string]core.Money{
				"Gas":       core.Cents(4000),
				"Groceries": core.Cents(25000),
			},
		},
		Budgets: []analytics.BudgetRollup{
			{Category: "Groceries", Allocated: core.Cents(20000), Spent: core.Cents(25000), Remaining: core.Cents(-5000)},
			{Category: "Gas", Allocated: core.Cents(10000), Spent: core.Cents(4000), Remaining: core.Cents(6000)},
		},
	}

	rows := OverviewRows(ov)
	want := [][]any{
		{"Period", "2024-07"},
		{"Owner", "alice"},
		{},
		{"Total income", "5000.00"},
		{"Total expenses", "290.00"},
		{"Net income", "4710.00"},
		{},
		{"Category", "Expenses"},
		{"Groceries", "250.00"},
		{"Gas", "40.00"},
		{},
		{"Budget", "Allocated", "Spent", "Remaining", "Used %", "Status"},
		{"Groceries", "200.00", "250.00", "-50.00", int64(125), "over"},
		{"Gas", "100.00", "40.00", "60.00", int64(40), "ok"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %v", len(rows), len(want), rows)
	}
	for i := range want {
		if len(rows[i]) != len(want[i]) {
			t.Fatalf("row %d = %v, want %v", i, rows[i], want[i])
		}
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Fatalf("row %d col %d = %v, want %v", i, j, rows[i][j], want[i][j])
			}
		}
	}
}
