package models

import (
	"fmt"

	"github.com/kilupskalvis/folio/internal/resources"
)

// ActionKind is the kind of mutation an action performs.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
)

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Action is one proposed mutation inside a plan.
type Action struct {
	Kind        ActionKind             `json:"kind" yaml:"kind"`
	Resource    resources.ResourceName `json:"resource" yaml:"resource"`
	RecordID    string                 `json:"recordId,omitempty" yaml:"recordId,omitempty"`
	Payload     Document               `json:"payload,omitempty" yaml:"payload,omitempty"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks the shape of the action. It does not consult the
// resource allow-list; that is the registry's job.
func (a *Action) Validate() error {
	switch a.Kind {
	case ActionCreate:
		if len(a.Payload) == 0 {
			return fmt.Errorf("create on %s requires a payload", a.Resource)
		}
	case ActionUpdate:
		if a.RecordID == "" {
			return fmt.Errorf("update on %s requires a record id", a.Resource)
		}
		if len(a.Payload) == 0 {
			return fmt.Errorf("update on %s/%s requires a payload", a.Resource, a.RecordID)
		}
	case ActionDelete:
		if a.RecordID == "" {
			return fmt.Errorf("delete on %s requires a record id", a.Resource)
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}
