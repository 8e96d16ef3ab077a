package log

import (
	"errors"
	"sort"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldOwner         = "owner"
	FieldPeriod        = "period"
	FieldCategory      = "category"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldAmountCents   = "amount_cents"
	FieldScopeKey      = "scope_key"
	FieldMessageID     = "message_id"
	FieldEntity        = "entity"
	FieldAction        = "action"
	FieldDuration      = "duration_ms"
	FieldCount         = "count"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentCLI     = "cli"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
	ComponentReport  = "report"
	ComponentAlerts  = "alerts"
	ComponentMetrics = "metrics"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpReport   = "report"
	OpRollup   = "rollup"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpExport   = "export"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeIntegrity     = "data_integrity_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// ErrorType classifies err for the error_type field.
func ErrorType(err error) string {
	var (
		verr *core.ValidationError
		cerr *core.ConfigurationError
		ierr *core.DataIntegrityError
	)
	switch {
	case errors.As(err, &verr):
		return ErrorTypeValidation
	case errors.As(err, &cerr):
		return ErrorTypeConfiguration
	case errors.As(err, &ierr):
		return ErrorTypeIntegrity
	case errors.Is(err, ledger.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ledger.ErrCategoryExists):
		return ErrorTypeConflict
	}
	return ErrorTypeInternal
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error message and its classification
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the identifying fields of a transaction
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	if t.ID != 0 {
		f[FieldTransactionID] = t.ID
	}
	f[FieldAmountCents] = t.Amount.Cents
	f[FieldCategory] = t.Category
	f[FieldOwner] = t.Owner
	return f
}

// WithBudget adds the identifying fields of a budget allocation
func (f LogFields) WithBudget(b core.BudgetAllocation) LogFields {
	if b.ID != 0 {
		f[FieldBudgetID] = b.ID
	}
	f[FieldCategory] = b.Category
	f[FieldOwner] = b.Owner
	f[FieldPeriod] = b.Period.String()
	return f
}

// WithPeriod adds owner and period fields
func (f LogFields) WithPeriod(owner string, p core.Period) LogFields {
	f[FieldOwner] = owner
	f[FieldPeriod] = p.String()
	return f
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to a slice for slog, keys sorted
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
