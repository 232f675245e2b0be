package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/metrics"
	"github.com/kilupskalvis/folio/internal/models"
)

// RevertResult summarizes a revert of a plan or a single change.
type RevertResult struct {
	PlanID   string
	ChangeID string
	// Status is the plan status after a plan revert. Empty for RevertChange.
	Status   models.PlanStatus
	Reverted int
	Failed   int
	Rejected int
	// AlreadyReverted is set when RevertChange targets a reverted record.
	AlreadyReverted bool
}

// Success reports whether every attempted record was reverted.
func (r *RevertResult) Success() bool {
	return r.Failed == 0
}

// RevertPlan reverses every pending change of a plan, most recent first.
// The plan becomes reverted once no pending changes remain, and
// partially_reverted otherwise. Per-record failures are logged and left
// pending so a later call can retry them. Draft and saved plans have nothing
// to undo and are refused.
func (e *Engine) RevertPlan(ctx context.Context, planRef string) (*RevertResult, error) {
	plan, err := ResolvePlan(e.store, planRef)
	if err != nil {
		return nil, err
	}
	switch plan.Status {
	case models.PlanDraft, models.PlanSaved:
		return nil, fmt.Errorf("%w: %s is %s", ErrPlanNotExecuted, plan.ShortID(), plan.Status)
	}
	pending, err := e.store.GetPendingChanges(plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load pending changes: %w", err)
	}

	log := e.log.With("plan_id", plan.ID)
	result := &RevertResult{PlanID: plan.ID}
	var changed []models.ChangedRecord

	for _, rec := range pending {
		mutated, err := e.revertRecord(ctx, rec)
		if mutated != nil {
			changed = append(changed, *mutated)
		}
		if err != nil {
			e.countRevertFailure(result, rec, err)
			log.Warn("revert failed",
				"change_id", rec.ID,
				"kind", rec.ActionKind,
				"resource", rec.Resource,
				"record_id", rec.RecordID,
				"error", err,
			)
			continue
		}
		result.Reverted++
		metrics.ObserveRevert(string(rec.Resource), string(rec.ActionKind), metrics.OutcomeReverted)
	}

	result.Status = models.PlanReverted
	if result.Failed > 0 {
		result.Status = models.PlanPartiallyReverted
	}

	e.notifier.Publish(ctx, models.ContentChanged{
		PlanID:  plan.ID,
		Reason:  models.ReasonReverted,
		Changes: changed,
		At:      e.now().UTC(),
	})

	if err := e.store.UpdatePlanStatus(plan.ID, result.Status); err != nil {
		return result, fmt.Errorf("%w: %w", ErrPlanPersistence, err)
	}
	metrics.ObservePlan(string(result.Status))

	log.Info("plan reverted", "status", result.Status, "reverted", result.Reverted, "failed", result.Failed)
	return result, nil
}

// RevertChange reverses a single change record. It never changes the
// owning plan's status. Reverting an already reverted record does nothing.
func (e *Engine) RevertChange(ctx context.Context, changeRef string) (*RevertResult, error) {
	rec, err := ResolveChange(e.store, changeRef)
	if err != nil {
		return nil, err
	}
	result := &RevertResult{PlanID: rec.PlanID, ChangeID: rec.ID}
	if rec.Reverted {
		result.AlreadyReverted = true
		return result, nil
	}

	mutated, err := e.revertRecord(ctx, rec)
	var changed []models.ChangedRecord
	if mutated != nil {
		changed = append(changed, *mutated)
	}
	if err != nil {
		e.countRevertFailure(result, rec, err)
		e.log.Warn("revert failed",
			"change_id", rec.ID,
			"kind", rec.ActionKind,
			"resource", rec.Resource,
			"record_id", rec.RecordID,
			"error", err,
		)
	} else {
		result.Reverted++
		metrics.ObserveRevert(string(rec.Resource), string(rec.ActionKind), metrics.OutcomeReverted)
	}

	e.notifier.Publish(ctx, models.ContentChanged{
		PlanID:   rec.PlanID,
		ChangeID: rec.ID,
		Reason:   models.ReasonReverted,
		Changes:  changed,
		At:       e.now().UTC(),
	})
	return result, nil
}

func (e *Engine) countRevertFailure(result *RevertResult, rec *models.ChangeRecord, err error) {
	result.Failed++
	outcome := metrics.OutcomeFailed
	if errors.Is(err, collection.ErrRejectedResource) {
		result.Rejected++
		outcome = metrics.OutcomeRejected
	}
	metrics.ObserveRevert(string(rec.Resource), string(rec.ActionKind), outcome)
}

// revertRecord applies the inverse of rec and marks it reverted:
//
//	create -> delete by record id
//	update -> update back to previous data, id excluded
//	delete -> re-insert previous data with its original id
//
// Missing previous data makes update and delete inverses a no-op. The
// returned ChangedRecord is non-nil whenever content was mutated.
func (e *Engine) revertRecord(ctx context.Context, rec *models.ChangeRecord) (*models.ChangedRecord, error) {
	h, err := e.collections.Collection(rec.Resource)
	if err != nil {
		return nil, err
	}

	var mutated *models.ChangedRecord
	switch rec.ActionKind {
	case models.ActionCreate:
		err := h.Delete(ctx, rec.RecordID)
		switch {
		case errors.Is(err, collection.ErrNotFound):
			// Already gone
		case err != nil:
			return nil, fmt.Errorf("delete: %w", err)
		default:
			mutated = &models.ChangedRecord{Resource: rec.Resource, RecordID: rec.RecordID, Kind: models.ActionDelete}
		}

	case models.ActionUpdate:
		if rec.PreviousData != nil {
			if _, err := h.Update(ctx, rec.RecordID, rec.PreviousData.WithoutID()); err != nil {
				return nil, fmt.Errorf("update: %w", err)
			}
			mutated = &models.ChangedRecord{Resource: rec.Resource, RecordID: rec.RecordID, Kind: models.ActionUpdate}
		}

	case models.ActionDelete:
		if rec.PreviousData != nil {
			restored := rec.PreviousData.Clone()
			if restored.ID() == "" && rec.RecordID != "" {
				restored[models.IDField] = rec.RecordID
			}
			if _, err := h.Insert(ctx, restored); err != nil {
				return nil, fmt.Errorf("re-insert: %w", err)
			}
			mutated = &models.ChangedRecord{Resource: rec.Resource, RecordID: rec.RecordID, Kind: models.ActionCreate}
		}

	default:
		return nil, fmt.Errorf("unknown action kind %q", rec.ActionKind)
	}

	if err := e.store.MarkChangeReverted(rec.ID, e.now().UTC()); err != nil {
		return mutated, fmt.Errorf("mark reverted: %w", err)
	}
	return mutated, nil
}
