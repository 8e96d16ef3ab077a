package core

import (
	"fmt"
	"sort"
	"strings"
)

// DataIntegrityError reports a record that contradicts the ledger's sign
// convention or lacks a required field. Index is the position of the record
// in the input sequence.
type DataIntegrityError struct {
	Index  int
	ID     int64
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: record %d (id=%d) field %s: %s", e.Index, e.ID, e.Field, e.Reason)
}

// ConfigurationError reports a budget allocation that cannot be rolled up,
// such as a period outside the accepted range or a duplicate allocation.
type ConfigurationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: allocation %d field %s: %s", e.Index, e.Field, e.Reason)
}

// ValidationError carries per-field messages for rejected user input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
