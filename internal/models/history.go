package models

import (
	"time"

	"github.com/google/uuid"
)

// History actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// History is one immutable ledger row: a lifecycle event or a single field
// change on a stakeholder. Update rows carry the field name and the
// display-formatted old/new values; create and delete rows carry neither.
type History struct {
	ID            int64     `json:"id"`
	StakeholderID uuid.UUID `json:"stakeholder_id"`
	UserID        uuid.UUID `json:"user_id"`
	Action        string    `json:"action"`
	FieldName     string    `json:"field_name,omitempty"`
	OldValue      string    `json:"old_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *History) IsUpdate() bool { return h.Action == ActionUpdate }
func (h *History) IsCreate() bool { return h.Action == ActionCreate }
func (h *History) IsDelete() bool { return h.Action == ActionDelete }

// FieldChange is one (field, old, new) delta produced by an update, in the
// order fields were applied. Values are raw; the ledger formats them at
// write time.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}
