package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("MEMORY_DATA_DIR", t.TempDir())
	t.Setenv("SEED_SAMPLE_DATA", "true")
	t.Setenv("DEFAULT_OWNER", "alice")
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")
}

func runArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunReport(t *testing.T) {
	memoryEnv(t)
	code, out, errOut := runArgs(t, "report", "-period", "2024-07")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var got struct {
		TotalIncome   core.Money `json:"totalIncome"`
		TotalExpenses core.Money `json:"totalExpenses"`
		NetIncome     core.Money `json:"netIncome"`
		Categories    []struct {
			Name string `json:"name"`
		} `json:"categories"`
		Months []struct {
			Month string `json:"month"`
		} `json:"months"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.TotalIncome.Cents != 500000 || got.TotalExpenses.Cents != 37500 || got.NetIncome.Cents != 462500 {
		t.Fatalf("unexpected totals %+v", got)
	}
	if len(got.Categories) == 0 || got.Categories[0].Name != "Groceries" {
		t.Fatalf("expected groceries ranked first, got %+v", got.Categories)
	}
	if len(got.Months) != 1 || got.Months[0].Month != "2024-07" {
		t.Fatalf("unexpected months %+v", got.Months)
	}
}

func TestRunBudgets(t *testing.T) {
	memoryEnv(t)
	code, out, errOut := runArgs(t, "budgets", "-period", "2024-07")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var rows []struct {
		Category  string     `json:"category"`
		Spent     core.Money `json:"spent"`
		Overspent bool       `json:"overspent"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 budget rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Overspent {
			t.Fatalf("sample ledger should be within budget, got %+v", r)
		}
	}
}

func TestRunAdd(t *testing.T) {
	memoryEnv(t)
	code, out, errOut := runArgs(t, "add", "-date", "2024-07-09", "-desc", "Cinema", "-amount", "-12.50", "-category", "Entertainment")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var tx struct {
		ID       int64      `json:"id"`
		Owner    string     `json:"owner"`
		Amount   core.Money `json:"amount"`
		Category string     `json:"category"`
		Type     string     `json:"type"`
	}
	if err := json.Unmarshal([]byte(out), &tx); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if tx.ID == 0 || tx.Owner != "alice" || tx.Amount.Cents != -1250 || tx.Type != "expense" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestRunPersistsWithSQLite(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "fintrack.db"))
	t.Setenv("DEFAULT_OWNER", "bob")
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	if code, _, errOut := runArgs(t, "add", "-date", "2024-08-01", "-desc", "Pay", "-amount", "2500", "-category", "Income"); code != 0 {
		t.Fatalf("add exit %d: %s", code, errOut)
	}
	code, out, errOut := runArgs(t, "list")
	if code != 0 {
		t.Fatalf("list exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, `"Pay"`) {
		t.Fatalf("expected the added transaction in %s", out)
	}
}

func TestRunErrors(t *testing.T) {
	memoryEnv(t)
	tests := []struct {
		args []string
		code int
		want string
	}{
		{[]string{}, 1, "Usage"},
		{[]string{"bogus"}, 1, "Unknown command: bogus"},
		{[]string{"add", "-desc", "x", "-amount", "abc", "-category", "Gas"}, 1, "invalid input:"},
		{[]string{"add", "-desc", "", "-amount", "-5", "-category", "Gas"}, 1, "description"},
		{[]string{"report", "-period", "2024-13"}, 1, "period"},
		{[]string{"set-budget", "-category", "Gas", "-amount", "10", "-period", "2019-01"}, 1, "invalid input:"},
		{[]string{"delete", "-id", "9999"}, 1, "error:"},
		{[]string{"update"}, 1, "id is required"},
		{[]string{"list", "-page", "0"}, 1, "page"},
		{[]string{"list", "-limit", "0", "-page", "2"}, 1, "positive -limit"},
	}
	for i, tc := range tests {
		code, _, errOut := runArgs(t, tc.args...)
		if code != tc.code {
			t.Fatalf("case %d: exit %d, want %d (%s)", i, code, tc.code, errOut)
		}
		if !strings.Contains(errOut, tc.want) {
			t.Fatalf("case %d: stderr %q does not mention %q", i, errOut, tc.want)
		}
	}
}

func TestRunHelp(t *testing.T) {
	code, out, _ := runArgs(t, "help")
	if code != 0 || !strings.Contains(out, "overview") {
		t.Fatalf("help exit %d: %s", code, out)
	}
}

func TestRunListPages(t *testing.T) {
	memoryEnv(t)
	code, out, errOut := runArgs(t, "list", "-limit", "2", "-page", "3")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var rows []struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rows) != 1 || rows[0].Description != "Salary" {
		t.Fatalf("expected the oldest record alone on page 3, got %+v", rows)
	}
}
