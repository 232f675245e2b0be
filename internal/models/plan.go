package models

import "time"

// PlanStatus is the lifecycle state of a content plan.
type PlanStatus string

const (
	PlanDraft    PlanStatus = "draft"
	PlanSaved    PlanStatus = "saved"
	PlanExecuted PlanStatus = "executed"
	PlanReverted PlanStatus = "reverted"
	// PlanPartiallyReverted means a revert ran but some change records
	// could not be reversed and remain pending.
	PlanPartiallyReverted PlanStatus = "partially_reverted"
)

// ContentPlan is a named, ordered batch of proposed actions.
type ContentPlan struct {
	ID             string     `json:"id" yaml:"id,omitempty"`
	Title          string     `json:"title" yaml:"title"`
	Summary        string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	Actions        []Action   `json:"actions" yaml:"actions"`
	Status         PlanStatus `json:"status" yaml:"status,omitempty"`
	ConversationID string     `json:"conversationId,omitempty" yaml:"conversationId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"-"`
	ExecutedAt     *time.Time `json:"executedAt,omitempty" yaml:"-"`
}

// ShortID returns a shortened plan ID (first 8 characters)
func (p *ContentPlan) ShortID() string {
	if len(p.ID) > 8 {
		return p.ID[:8]
	}
	return p.ID
}
