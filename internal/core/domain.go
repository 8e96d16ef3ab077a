package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
	// Both is only valid on category definitions.
	Both Kind = "both"
)

const (
	MaxDescriptionLen = 200
	MaxCategoryLen    = 100
	// MaxAmountCents bounds a single transaction to +-999,999.99.
	MaxAmountCents = 99999999
	// MinBudgetYear is the earliest year a budget period may reference.
	MinBudgetYear = 2020
)

type (
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a ledger record. Amount is either signed (negative for
	// expenses) or a magnitude paired with an explicit Kind; see Normalize.
	Transaction struct {
		ID          int64
		Owner       string
		Date        Date
		Description string
		Amount      Money
		Category    string
		Kind        Kind // empty when the direction is carried by the sign
	}

	// Period is a reporting month.
	Period struct {
		Month int `json:"month"` // 1-12
		Year  int `json:"year"`
	}

	BudgetAllocation struct {
		ID        int64
		Owner     string
		Category  string
		Allocated Money
		Period    Period
	}

	Category struct {
		ID          int64
		Name        string
		Kind        Kind
		Description string
		Color       string
	}
)

var (
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyCategory     = errors.New("empty category")
	ErrInvalidKind       = errors.New("invalid kind")
	ErrDescriptionLength = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLen)
	ErrCategoryLength    = fmt.Errorf("category too long (max %d characters)", MaxCategoryLen)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// MonthKey returns the YYYY-MM prefix of the ISO date.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// Period returns the reporting month the date falls in.
func (d Date) Period() Period {
	return Period{Month: d.Month(), Year: d.Year()}
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (k Kind) IsValid() bool {
	return k == Income || k == Expense
}

// ParseKind accepts income/expense case-insensitively. Empty input is
// returned as the empty Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "income":
		return Income, nil
	case "expense", "expenses":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (p Period) Validate(minYear int) error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < minYear {
		return fmt.Errorf("invalid year %d: must be at least %d", p.Year, minYear)
	}
	return nil
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// Start returns the first day of the period.
func (p Period) Start() Date {
	return NewDate(p.Year, p.Month, 1)
}

// End returns the last day of the period.
func (p Period) End() Date {
	return Date{Time: p.Start().AddDate(0, 1, -1)}
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ParsePeriod parses a YYYY-MM string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", s, err)
	}
	return Period{Month: int(t.Month()), Year: t.Year()}, nil
}

// Validate checks user input for a new or updated transaction. It reports
// every offending field at once.
func (t Transaction) Validate() error {
	fields := map[string]string{}
	if err := t.Date.Validate(); err != nil {
		fields["date"] = err.Error()
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		fields["description"] = ErrEmptyDescription.Error()
	} else if utf8.RuneCountInString(desc) > MaxDescriptionLen {
		fields["description"] = ErrDescriptionLength.Error()
	}
	if err := validateCategoryName(t.Category); err != nil {
		fields["category"] = err.Error()
	}
	switch {
	case t.Amount.IsZero():
		fields["amount"] = "amount cannot be zero"
	case t.Amount.Cents > MaxAmountCents || t.Amount.Cents < -MaxAmountCents:
		fields["amount"] = "amount out of range (max 999999.99)"
	}
	if t.Kind != "" && !t.Kind.IsValid() {
		fields["type"] = ErrInvalidKind.Error()
	}
	if _, err := Normalize(t, ConventionAuto); err != nil {
		if _, ok := fields["amount"]; !ok {
			fields["amount"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (b BudgetAllocation) Validate(minYear int) error {
	fields := map[string]string{}
	if err := validateCategoryName(b.Category); err != nil {
		fields["category"] = err.Error()
	}
	if b.Allocated.Cents <= 0 || b.Allocated.Cents > MaxAmountCents {
		fields["budget"] = "budget must be between 0.01 and 999999.99"
	}
	if err := b.Period.Validate(minYear); err != nil {
		fields["period"] = err.Error()
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (c Category) Validate() error {
	fields := map[string]string{}
	if err := validateCategoryName(c.Name); err != nil {
		fields["name"] = err.Error()
	}
	switch c.Kind {
	case Income, Expense, Both:
	default:
		fields["type"] = "type must be income, expense or both"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(name) > MaxCategoryLen {
		return ErrCategoryLength
	}
	return nil
}
