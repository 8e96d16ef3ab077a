package core

import (
	"fmt"
	"strings"
)

// SignConvention tells Normalize how a stored amount encodes direction.
type SignConvention string

const (
	// ConventionAuto decides per record: a stored Kind makes a non-negative
	// amount a magnitude, a negative amount must be an expense, and a
	// missing Kind is derived from the sign.
	ConventionAuto SignConvention = "auto"
	// ConventionSigned requires the sign to carry direction; a stored Kind
	// must agree with it.
	ConventionSigned SignConvention = "signed"
	// ConventionMagnitude requires a Kind and a non-negative amount.
	ConventionMagnitude SignConvention = "magnitude"
)

// Entry is the single internal representation of a transaction amount.
// Magnitude is never negative.
type Entry struct {
	Kind      Kind
	Magnitude Money
}

func ParseSignConvention(s string) (SignConvention, error) {
	switch c := SignConvention(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ConventionAuto, nil
	case ConventionAuto, ConventionSigned, ConventionMagnitude:
		return c, nil
	}
	return "", fmt.Errorf("unknown sign convention %q: must be auto, signed or magnitude", s)
}

// Normalize converts a stored transaction amount into an Entry. It is the
// only place that interprets amount signs.
func Normalize(t Transaction, conv SignConvention) (Entry, error) {
	if t.Kind != "" && !t.Kind.IsValid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	switch conv {
	case ConventionSigned:
		return normalizeSigned(t)
	case ConventionMagnitude:
		if t.Kind == "" {
			return Entry{}, fmt.Errorf("type is required with magnitude amounts")
		}
		if t.Amount.IsNegative() {
			return Entry{}, fmt.Errorf("negative amount %s with magnitude convention", t.Amount)
		}
		return Entry{Kind: t.Kind, Magnitude: t.Amount}, nil
	case ConventionAuto, "":
		if t.Kind == "" {
			return normalizeSigned(t)
		}
		if t.Amount.IsNegative() && t.Kind == Income {
			return Entry{}, fmt.Errorf("income with negative amount %s", t.Amount)
		}
		return Entry{Kind: t.Kind, Magnitude: t.Amount.Abs()}, nil
	}
	return Entry{}, fmt.Errorf("unknown sign convention %q", conv)
}

func normalizeSigned(t Transaction) (Entry, error) {
	var derived Kind
	switch {
	case t.Amount.Cents > 0:
		derived = Income
	case t.Amount.Cents < 0:
		derived = Expense
	default:
		if t.Kind == "" {
			return Entry{}, fmt.Errorf("cannot derive type from a zero amount")
		}
		derived = t.Kind
	}
	if t.Kind != "" && t.Kind != derived {
		return Entry{}, fmt.Errorf("type %s contradicts amount %s", t.Kind, t.Amount)
	}
	return Entry{Kind: derived, Magnitude: t.Amount.Abs()}, nil
}

// KindFromAmount derives the direction of a signed amount: positive is
// income, anything else an expense.
func KindFromAmount(m Money) Kind {
	if m.Cents > 0 {
		return Income
	}
	return Expense
}
