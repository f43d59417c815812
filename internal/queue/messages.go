package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Mutation operations. The worker replays these against the ledger in the
// order they were queued.
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
)

// AddPayload carries a full movement for a queued add.
type AddPayload struct {
	Amount          float64 `json:"amount"`
	Type            string  `json:"type,omitempty"`
	RawCategory     string  `json:"raw_category,omitempty"`
	Date            string  `json:"date,omitempty"`
	AccountingMonth string  `json:"accounting_month,omitempty"`
	Note            string  `json:"note,omitempty"`
}

// PatchPayload carries the changed fields for a queued update. Nil fields
// are left untouched on replay.
type PatchPayload struct {
	Date            *string  `json:"date,omitempty"`
	AccountingMonth *string  `json:"accounting_month,omitempty"`
	Type            *string  `json:"type,omitempty"`
	RawCategory     *string  `json:"raw_category,omitempty"`
	Amount          *float64 `json:"amount,omitempty"`
	Note            *string  `json:"note,omitempty"`
}

// Mutation is one queued write against the movements table.
type Mutation struct {
	Op       string        `json:"op"`
	ID       string        `json:"id,omitempty"`
	Movement *AddPayload   `json:"movement,omitempty"`
	Patch    *PatchPayload `json:"patch,omitempty"`
	QueuedAt time.Time     `json:"queuedAt"`
}

// NewAddMutation queues an add.
func NewAddMutation(m AddPayload) *Mutation {
	return &Mutation{Op: OpAdd, Movement: &m, QueuedAt: time.Now()}
}

// NewUpdateMutation queues a partial update of one movement.
func NewUpdateMutation(id string, p PatchPayload) *Mutation {
	return &Mutation{Op: OpUpdate, ID: id, Patch: &p, QueuedAt: time.Now()}
}

// NewDeleteMutation queues a delete.
func NewDeleteMutation(id string) *Mutation {
	return &Mutation{Op: OpDelete, ID: id, QueuedAt: time.Now()}
}

// Validate checks the mutation is structurally replayable. Semantic checks
// (writes gate, negative amounts) happen in the ledger on replay.
func (m *Mutation) Validate() error {
	switch m.Op {
	case OpAdd:
		if m.Movement == nil {
			return fmt.Errorf("add mutation without movement payload")
		}
	case OpUpdate:
		if m.ID == "" {
			return fmt.Errorf("update mutation without id")
		}
		if m.Patch == nil {
			return fmt.Errorf("update mutation without patch payload")
		}
	case OpDelete:
		if m.ID == "" {
			return fmt.Errorf("delete mutation without id")
		}
	default:
		return fmt.Errorf("unknown mutation op %q", m.Op)
	}
	return nil
}

// ToJSON converts the mutation to JSON bytes.
func (m *Mutation) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationFromJSON parses a mutation from JSON bytes and validates it.
func MutationFromJSON(data []byte) (*Mutation, error) {
	var m Mutation
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
