package sheets

import (
	"context"

	"fintrack/internal/analytics"
)

// Ports for outbound adapters.
type (
	// Exporter publishes a period overview to an external spreadsheet.
	Exporter interface {
		ExportOverview(ctx context.Context, ov analytics.Overview) error
	}
)
