// Package core implements the content mutation and undo engine: plan
// execution, revert, and the context snapshot used to brief a planner.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/logger"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/store"
)

var (
	// ErrEmptyPlan is returned when executing a plan with no actions.
	ErrEmptyPlan = errors.New("plan has no actions")
	// ErrPlanPersistence wraps failures to save a plan. Nothing is mutated
	// when it is returned from ExecutePlan.
	ErrPlanPersistence = errors.New("plan persistence failed")
	// ErrPlanNotFound is returned when a plan reference matches nothing.
	ErrPlanNotFound = store.ErrPlanNotFound
	// ErrInvalidAction marks an action whose shape is wrong for its kind.
	ErrInvalidAction = errors.New("invalid action")
	// ErrPlanAlreadyRun is returned when executing or re-saving a plan that
	// has already been executed or reverted.
	ErrPlanAlreadyRun = errors.New("plan already run")
	// ErrPlanNotExecuted is returned when reverting a plan that never ran.
	ErrPlanNotExecuted = errors.New("plan not executed")
)

// Notifier receives one ContentChanged event per execute or revert batch.
type Notifier interface {
	Publish(ctx context.Context, ev models.ContentChanged)
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, models.ContentChanged) {}

// Options tune the snapshot reporter.
type Options struct {
	// StaleAfter is the age past which a record counts as stale.
	StaleAfter time.Duration
	// RecentLimit is the page size of recent records per collection.
	RecentLimit int
	// SnapshotConcurrency bounds parallel collection reads.
	SnapshotConcurrency int
}

// DefaultOptions returns the standard snapshot settings.
func DefaultOptions() Options {
	return Options{
		StaleAfter:          90 * 24 * time.Hour,
		RecentLimit:         10,
		SnapshotConcurrency: 4,
	}
}

// Engine applies plans to content collections and reverses them.
type Engine struct {
	store       *store.Store
	collections *collection.Registry
	notifier    Notifier
	log         *logger.Logger
	opts        Options
	now         func() time.Time
}

// NewEngine wires an engine. A nil notifier or logger is replaced with a
// no-op; zero option fields take their defaults.
func NewEngine(st *store.Store, collections *collection.Registry, notifier Notifier, log *logger.Logger, opts Options) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultOptions()
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = def.StaleAfter
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = def.RecentLimit
	}
	if opts.SnapshotConcurrency <= 0 {
		opts.SnapshotConcurrency = def.SnapshotConcurrency
	}
	return &Engine{
		store:       st,
		collections: collections,
		notifier:    notifier,
		log:         log,
		opts:        opts,
		now:         time.Now,
	}
}

// checkRunnable refuses to overwrite a stored plan that has already run.
// Only draft and saved plans may be (re)persisted before execution.
func (e *Engine) checkRunnable(plan *models.ContentPlan) error {
	if plan.ID == "" {
		return nil
	}
	stored, err := e.store.GetPlan(plan.ID)
	if errors.Is(err, store.ErrPlanNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlanPersistence, err)
	}
	switch stored.Status {
	case models.PlanDraft, models.PlanSaved, "":
		return nil
	}
	return fmt.Errorf("%w: %w: %s is %s", ErrPlanPersistence, ErrPlanAlreadyRun, stored.ShortID(), stored.Status)
}

// ResolvePlan finds a plan by full ID or unique ID prefix.
func ResolvePlan(st *store.Store, ref string) (*models.ContentPlan, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrPlanNotFound)
	}
	plan, err := st.GetPlan(ref)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, store.ErrPlanNotFound) {
		return nil, err
	}
	return st.GetPlanByShortID(ref)
}

// ResolveChange finds a change record by full ID or unique ID prefix.
func ResolveChange(st *store.Store, ref string) (*models.ChangeRecord, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", store.ErrChangeNotFound)
	}
	rec, err := st.GetChange(ref)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrChangeNotFound) {
		return nil, err
	}
	return st.GetChangeByShortID(ref)
}
