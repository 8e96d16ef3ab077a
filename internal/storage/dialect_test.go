package storage

import (
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func TestRebind(t *testing.T) {
	cases := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{SQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{Postgres, "SELECT 1", "SELECT 1"},
	}
	for i, tc := range cases {
		if got := tc.dialect.Rebind(tc.in); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestListTransactionsQuery(t *testing.T) {
	q, args := listTransactionsQuery(ledger.Filter{
		Owner:    "alice",
		From:     core.NewDate(2024, 7, 1),
		To:       core.NewDate(2024, 7, 31),
		Category: "Gas",
		Kind:     core.Expense,
		Limit:    10,
		Offset:   20,
	})
	want := "SELECT id, owner, type, category, amount_cents, description, date FROM transactions" +
		" WHERE owner = ? AND date >= ? AND date <= ? AND category = ?" +
		" AND (type = ? OR (type IS NULL AND amount_cents < 0))" +
		" ORDER BY date DESC, id DESC LIMIT ? OFFSET ?"
	if q != want {
		t.Fatalf("query:\n got %s\nwant %s", q, want)
	}
	if len(args) != 7 || args[1] != "2024-07-01" || args[5] != 10 || args[6] != 20 {
		t.Fatalf("unexpected args %v", args)
	}

	// an offset without a limit is ignored
	q, args = listTransactionsQuery(ledger.Filter{Offset: 5})
	if len(args) != 0 || strings.Contains(q, "OFFSET") {
		t.Fatalf("unexpected offset-only query %q %v", q, args)
	}

	q, args = listTransactionsQuery(ledger.Filter{})
	if len(args) != 0 || q != "SELECT id, owner, type, category, amount_cents, description, date FROM transactions ORDER BY date DESC, id DESC" {
		t.Fatalf("unexpected unfiltered query %q %v", q, args)
	}
}

func TestScanDate(t *testing.T) {
	for _, v := range []any{"2024-07-02", []byte("2024-07-02"), "2024-07-02T00:00:00Z"} {
		d, err := scanDate(v)
		if err != nil || d.String() != "2024-07-02" {
			t.Fatalf("%v: got %s err=%v", v, d, err)
		}
	}
	if _, err := scanDate(42); err == nil {
		t.Fatalf("expected error for int")
	}
}
