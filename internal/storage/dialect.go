package storage

import (
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour of a repository.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// Rebind rewrites ? placeholders to $1..$n for Postgres. Queries must not
// contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) sizeQuery() string {
	if d == Postgres {
		return "SELECT pg_database_size(current_database())"
	}
	return "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
}

func (d Dialect) tablesQuery() string {
	if d == Postgres {
		return `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = current_schema() AND table_name IN ('transactions', 'budgets', 'categories')`
	}
	return `SELECT COUNT(*) FROM sqlite_master
WHERE type = 'table' AND name IN ('transactions', 'budgets', 'categories')`
}
