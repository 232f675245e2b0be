package models

import (
	"time"

	"github.com/kilupskalvis/folio/internal/resources"
)

// ChangeRecord is one applied action in the ledger, the unit of undo.
// It is immutable except for Reverted and RevertedAt.
type ChangeRecord struct {
	ID           string                 `json:"id"`
	PlanID       string                 `json:"plan_id"`
	Seq          int                    `json:"seq"`
	ActionKind   ActionKind             `json:"action_kind"`
	Resource     resources.ResourceName `json:"resource"`
	RecordID     string                 `json:"record_id"`
	Description  string                 `json:"description,omitempty"`
	PreviousData Document               `json:"previous_data"`
	NewData      Document               `json:"new_data"`
	Reverted     bool                   `json:"reverted"`
	RevertedAt   *time.Time             `json:"reverted_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ShortID returns a shortened change ID (first 8 characters)
func (c *ChangeRecord) ShortID() string {
	if len(c.ID) > 8 {
		return c.ID[:8]
	}
	return c.ID
}
