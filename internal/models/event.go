package models

import (
	"time"

	"github.com/kilupskalvis/folio/internal/resources"
)

// ChangeReason says which engine operation produced a ContentChanged event.
type ChangeReason string

const (
	ReasonExecuted ChangeReason = "executed"
	ReasonReverted ChangeReason = "reverted"
)

// ChangedRecord names one record touched by a batch.
type ChangedRecord struct {
	Resource resources.ResourceName `json:"resource"`
	RecordID string                 `json:"record_id"`
	Kind     ActionKind             `json:"kind"`
}

// ContentChanged is published once after every execute or revert batch.
type ContentChanged struct {
	PlanID   string          `json:"plan_id,omitempty"`
	ChangeID string          `json:"change_id,omitempty"`
	Reason   ChangeReason    `json:"reason"`
	Changes  []ChangedRecord `json:"changes"`
	At       time.Time       `json:"at"`
}

// Resources returns the distinct resources touched by the event, in order
// of first appearance.
func (e *ContentChanged) Resources() []resources.ResourceName {
	seen := make(map[resources.ResourceName]bool)
	var out []resources.ResourceName
	for _, c := range e.Changes {
		if !seen[c.Resource] {
			seen[c.Resource] = true
			out = append(out, c.Resource)
		}
	}
	return out
}
