package memory

import (
	"context"
	"sync"

	"fintrack/internal/analytics"
	ports "fintrack/internal/sheets"
)

// Exporter keeps the latest exported overview per owner and period. The
// worker falls back to it when no spreadsheet is configured.
type Exporter struct {
	mu    sync.Mutex
	items map[key]analytics.Overview
	count int
}

type key struct {
	owner  string
	period string
}

var _ ports.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{items: map[key]analytics.Overview{}}
}

func (e *Exporter) ExportOverview(_ context.Context, ov analytics.Overview) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items[key{ov.Owner, ov.Period.String()}] = ov
	e.count++
	return nil
}

// Latest returns the last overview exported for owner and period (YYYY-MM).
func (e *Exporter) Latest(owner, period string) (analytics.Overview, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ov, ok := e.items[key{owner, period}]
	return ov, ok
}

// Exports returns how many exports were performed.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
