package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/metrics"
	"github.com/kilupskalvis/folio/internal/models"
)

// ExecuteResult summarizes one plan execution.
type ExecuteResult struct {
	Success bool
	PlanID  string
	// Applied counts actions that mutated content and were recorded.
	Applied int
	// Failed counts every action that did not apply, Rejected included.
	Failed int
	// Rejected counts actions naming a resource outside the allow-list.
	Rejected int
	Changes  []*models.ChangeRecord
}

// ExecutePlan persists plan as executed, then applies its actions in order.
// Per-action failures are logged and counted; only an empty plan, a plan
// that has already run, or a failure to persist the plan is returned as an
// error.
func (e *Engine) ExecutePlan(ctx context.Context, plan *models.ContentPlan) (*ExecuteResult, error) {
	if plan == nil || len(plan.Actions) == 0 {
		return nil, ErrEmptyPlan
	}
	if err := e.checkRunnable(plan); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	plan.Status = models.PlanExecuted
	plan.ExecutedAt = &now
	if err := e.store.SavePlan(plan); err != nil {
		plan.ExecutedAt = nil
		return nil, fmt.Errorf("%w: %w", ErrPlanPersistence, err)
	}
	metrics.ObservePlan(string(models.PlanExecuted))

	log := e.log.With("plan_id", plan.ID)
	result := &ExecuteResult{PlanID: plan.ID}
	var changed []models.ChangedRecord

	for i := range plan.Actions {
		action := &plan.Actions[i]
		rec, mutated, err := e.applyAction(ctx, plan.ID, action)
		if mutated != nil {
			changed = append(changed, *mutated)
		}
		if err != nil {
			result.Failed++
			outcome := metrics.OutcomeFailed
			switch {
			case errors.Is(err, collection.ErrRejectedResource):
				result.Rejected++
				outcome = metrics.OutcomeRejected
			case errors.Is(err, ErrInvalidAction):
				outcome = metrics.OutcomeInvalid
			}
			metrics.ObserveAction(string(action.Resource), string(action.Kind), outcome)
			log.Warn("action failed",
				"index", i,
				"kind", action.Kind,
				"resource", action.Resource,
				"record_id", action.RecordID,
				"error", err,
			)
			continue
		}
		result.Applied++
		result.Changes = append(result.Changes, rec)
		metrics.ObserveAction(string(action.Resource), string(action.Kind), metrics.OutcomeApplied)
	}

	e.notifier.Publish(ctx, models.ContentChanged{
		PlanID:  plan.ID,
		Reason:  models.ReasonExecuted,
		Changes: changed,
		At:      e.now().UTC(),
	})

	result.Success = result.Failed == 0
	log.Info("plan executed", "applied", result.Applied, "failed", result.Failed, "rejected", result.Rejected)
	return result, nil
}

// SavePlanForLater stores plan with status saved and runs nothing. Plans
// without actions are allowed here.
func (e *Engine) SavePlanForLater(ctx context.Context, plan *models.ContentPlan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("%w: nil plan", ErrPlanPersistence)
	}
	if err := e.checkRunnable(plan); err != nil {
		return "", err
	}
	plan.Status = models.PlanSaved
	plan.ExecutedAt = nil
	if err := e.store.SavePlan(plan); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlanPersistence, err)
	}
	metrics.ObservePlan(string(models.PlanSaved))
	e.log.Info("plan saved", "plan_id", plan.ID, "actions", len(plan.Actions))
	return plan.ID, nil
}

// applyAction runs one action and appends its change record. The returned
// ChangedRecord is non-nil whenever content was mutated, even if recording
// the change then failed.
func (e *Engine) applyAction(ctx context.Context, planID string, action *models.Action) (*models.ChangeRecord, *models.ChangedRecord, error) {
	h, err := e.collections.Collection(action.Resource)
	if err != nil {
		return nil, nil, err
	}
	if err := action.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	rec := &models.ChangeRecord{
		PlanID:      planID,
		ActionKind:  action.Kind,
		Resource:    action.Resource,
		RecordID:    action.RecordID,
		Description: action.Description,
	}

	switch action.Kind {
	case models.ActionCreate:
		inserted, err := h.Insert(ctx, action.Payload.Clone())
		if err != nil {
			return nil, nil, fmt.Errorf("insert: %w", err)
		}
		rec.RecordID = inserted.ID()
		rec.NewData = inserted

	case models.ActionUpdate:
		rec.PreviousData = e.preRead(ctx, h, action.RecordID)
		updated, err := h.Update(ctx, action.RecordID, action.Payload.WithoutID())
		if err != nil {
			return nil, nil, fmt.Errorf("update: %w", err)
		}
		rec.NewData = updated

	case models.ActionDelete:
		rec.PreviousData = e.preRead(ctx, h, action.RecordID)
		if err := h.Delete(ctx, action.RecordID); err != nil {
			return nil, nil, fmt.Errorf("delete: %w", err)
		}
		rec.NewData = models.DeletionMarker()
	}

	mutated := &models.ChangedRecord{Resource: rec.Resource, RecordID: rec.RecordID, Kind: rec.ActionKind}
	if err := e.store.AppendChange(rec); err != nil {
		return nil, mutated, fmt.Errorf("record change: %w", err)
	}
	return rec, mutated, nil
}

// preRead snapshots a record before it is mutated. A missing record or a
// read error yields nil and the action proceeds.
func (e *Engine) preRead(ctx context.Context, h *collection.Handle, id string) models.Document {
	doc, err := h.SelectOne(ctx, id)
	if err != nil {
		e.log.Warn("pre-read failed, recording nil snapshot", "resource", h.Name(), "record_id", id, "error", err)
		return nil
	}
	return doc
}
