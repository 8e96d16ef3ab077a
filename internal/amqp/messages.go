package amqp

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// Entities and actions carried by a LedgerChangedMessage.
const (
	EntityTransaction = "transaction"
	EntityBudget      = "budget"
	EntityCategory    = "category"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LedgerChangedMessage announces a write to the ledger. It carries only the
// scope of the change; consumers reload whatever they need from the store.
type LedgerChangedMessage struct {
	ID         string      `json:"id"`
	Entity     string      `json:"entity"`
	Action     string      `json:"action"`
	Owner      string      `json:"owner"`
	Dates      []core.Date `json:"dates,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewLedgerChangedMessage creates a message with a fresh ID.
func NewLedgerChangedMessage(entity, action, owner string, dates []core.Date, categories []string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		ID:         uuid.NewString(),
		Entity:     entity,
		Action:     action,
		Owner:      owner,
		Dates:      dates,
		Categories: categories,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *LedgerChangedMessage) Validate() error {
	if _, err := uuid.Parse(m.ID); err != nil {
		return fmt.Errorf("invalid message id %q: %w", m.ID, err)
	}
	switch m.Entity {
	case EntityTransaction, EntityBudget, EntityCategory:
	default:
		return fmt.Errorf("unknown entity %q", m.Entity)
	}
	switch m.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	return nil
}

// Periods returns the distinct months touched by the change, oldest first.
func (m *LedgerChangedMessage) Periods() []core.Period {
	seen := make(map[core.Period]bool, len(m.Dates))
	var out []core.Period
	for _, d := range m.Dates {
		if d.IsEmpty() {
			continue
		}
		p := d.Period()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes and validates a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
