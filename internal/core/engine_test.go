package core

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/metrics"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"
	"github.com/kilupskalvis/folio/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a new bbolt store in a temp directory for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	st, err := store.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ContentChanged
}

func (n *recordingNotifier) Publish(ctx context.Context, ev models.ContentChanged) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type testEnv struct {
	engine   *Engine
	backend  *collection.MockBackend
	store    *store.Store
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newTestStore(t)
	backend := collection.NewMockBackend()
	notifier := &recordingNotifier{}
	engine := NewEngine(st, collection.NewRegistry(backend), notifier, nil, Options{})
	return &testEnv{engine: engine, backend: backend, store: st, notifier: notifier}
}

func createAction(resource resources.ResourceName, payload models.Document) models.Action {
	return models.Action{Kind: models.ActionCreate, Resource: resource, Payload: payload}
}

func updateAction(resource resources.ResourceName, id string, payload models.Document) models.Action {
	return models.Action{Kind: models.ActionUpdate, Resource: resource, RecordID: id, Payload: payload}
}

func deleteAction(resource resources.ResourceName, id string) models.Action {
	return models.Action{Kind: models.ActionDelete, Resource: resource, RecordID: id}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(newTestStore(t), collection.NewRegistry(collection.NewMockBackend()), nil, nil, Options{})

	assert.Equal(t, 90*24*time.Hour, e.opts.StaleAfter)
	assert.Equal(t, 10, e.opts.RecentLimit)
	assert.Equal(t, 4, e.opts.SnapshotConcurrency)
	assert.NotNil(t, e.notifier)
	assert.NotNil(t, e.log)
}

func TestExecutePlan_EmptyPlan(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.ExecutePlan(context.Background(), &models.ContentPlan{Title: "nothing"})
	assert.ErrorIs(t, err, ErrEmptyPlan)

	_, err = env.engine.ExecutePlan(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyPlan)

	plans, err := env.store.ListPlans(0)
	require.NoError(t, err)
	assert.Empty(t, plans, "empty plans are never persisted")
	assert.Empty(t, env.notifier.events)
}

func TestExecutePlan_PersistenceFailureAttemptsNothing(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	plan := &models.ContentPlan{
		Title:   "doomed",
		Actions: []models.Action{createAction(resources.Articles, models.Document{"title": "A"})},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)

	assert.ErrorIs(t, err, ErrPlanPersistence)
	assert.Nil(t, result)
	assert.Nil(t, plan.ExecutedAt)
	assert.Empty(t, env.backend.Calls, "no action may run before the plan is persisted")
	assert.Empty(t, env.notifier.events)
}

func TestExecutePlan_PersistsExecutedPlan(t *testing.T) {
	env := newTestEnv(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.engine.now = func() time.Time { return fixed }

	plan := &models.ContentPlan{
		Title:          "Add article",
		ConversationID: "conv-1",
		Actions:        []models.Action{createAction(resources.Articles, models.Document{"title": "A"})},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.PlanID)

	stored, err := env.store.GetPlan(result.PlanID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanExecuted, stored.Status)
	require.NotNil(t, stored.ExecutedAt)
	assert.True(t, fixed.Equal(*stored.ExecutedAt))
	assert.Equal(t, "conv-1", stored.ConversationID)
}

// Allow-list enforcement: a rejected action never reaches the backend.
func TestExecutePlan_RejectedResourceNeverTouchesBackend(t *testing.T) {
	env := newTestEnv(t)

	plan := &models.ContentPlan{
		Title: "bad table",
		Actions: []models.Action{
			createAction("not_a_real_table", models.Document{"title": "x"}),
			deleteAction("users", "u-1"),
		},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, result.PlanID, plan.ID)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, result.Rejected)
	assert.Empty(t, env.backend.Calls)

	changes, err := env.store.GetChangesByPlan(result.PlanID)
	require.NoError(t, err)
	assert.Empty(t, changes)

	stored, err := env.store.GetPlan(result.PlanID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanExecuted, stored.Status)
}

// One record per attempted action: N actions, M rejected -> N-M records.
func TestExecutePlan_OneRecordPerAttemptedAction(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddRecord(resources.Projects, models.Document{"id": "p-1", "title": "Old"})
	env.backend.AddRecord(resources.FAQs, models.Document{"id": "f-1", "question": "Q?"})

	plan := &models.ContentPlan{
		Title: "mixed",
		Actions: []models.Action{
			createAction(resources.Articles, models.Document{"title": "A"}),
			createAction("secrets", models.Document{"k": "v"}),
			updateAction(resources.Projects, "p-1", models.Document{"title": "New"}),
			updateAction("content_plans", "x", models.Document{"status": "hacked"}),
			deleteAction(resources.FAQs, "f-1"),
		},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	changes, err := env.store.GetChangesByPlan(result.PlanID)
	require.NoError(t, err)
	assert.Len(t, changes, 3)
	assert.Equal(t, 3, result.Applied)
	assert.Equal(t, 2, result.Rejected)
	assert.False(t, result.Success)
}

func TestExecutePlan_RecordsSnapshots(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddRecord(resources.Articles, models.Document{"id": "a-1", "title": "Old", "slug": "old"})
	env.backend.AddRecord(resources.Articles, models.Document{"id": "a-2", "title": "Doomed"})

	plan := &models.ContentPlan{
		Title: "snapshots",
		Actions: []models.Action{
			createAction(resources.Articles, models.Document{"title": "Fresh"}),
			updateAction(resources.Articles, "a-1", models.Document{"title": "New"}),
			deleteAction(resources.Articles, "a-2"),
		},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	require.True(t, result.Success)

	changes, err := env.store.GetChangesByPlan(result.PlanID)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	created := changes[0]
	assert.Equal(t, models.ActionCreate, created.ActionKind)
	assert.Nil(t, created.PreviousData)
	assert.NotEmpty(t, created.RecordID)
	assert.Equal(t, created.RecordID, created.NewData.ID())
	assert.Equal(t, "Fresh", created.NewData["title"])

	updated := changes[1]
	assert.Equal(t, "Old", updated.PreviousData["title"])
	assert.Equal(t, "New", updated.NewData["title"])
	assert.Equal(t, "old", updated.NewData["slug"], "updates are partial")

	deleted := changes[2]
	assert.Equal(t, "Doomed", deleted.PreviousData["title"])
	assert.True(t, deleted.NewData.IsDeletionMarker())
	assert.Nil(t, env.backend.Record(resources.Articles, "a-2"))
}

func TestExecutePlan_InvalidActionsSkipped(t *testing.T) {
	env := newTestEnv(t)

	plan := &models.ContentPlan{
		Title: "invalid",
		Actions: []models.Action{
			{Kind: models.ActionUpdate, Resource: resources.Articles, Payload: models.Document{"title": "x"}},
			{Kind: models.ActionDelete, Resource: resources.Articles},
			{Kind: models.ActionCreate, Resource: resources.Articles},
			{Kind: "upsert", Resource: resources.Articles, RecordID: "a-1"},
		},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.Failed)
	assert.Zero(t, result.Rejected)
	assert.Empty(t, env.backend.Calls, "invalid actions are never coerced into a call")
}

func TestExecutePlan_UpdateIgnoresPayloadID(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddRecord(resources.Skills, models.Document{"id": "s-1", "name": "Go"})

	plan := &models.ContentPlan{
		Title:   "rename",
		Actions: []models.Action{updateAction(resources.Skills, "s-1", models.Document{"id": "s-999", "name": "Golang"})},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, "Golang", env.backend.Record(resources.Skills, "s-1")["name"])
	assert.Nil(t, env.backend.Record(resources.Skills, "s-999"))
}

func TestExecutePlan_PreReadFailureTolerated(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddRecord(resources.Articles, models.Document{"id": "a-1", "title": "Old"})
	env.backend.FailOn["select articles/a-1"] = errors.New("read timeout")

	plan := &models.ContentPlan{
		Title:   "update",
		Actions: []models.Action{updateAction(resources.Articles, "a-1", models.Document{"title": "New"})},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, result.Changes, 1)
	assert.Nil(t, result.Changes[0].PreviousData)
	assert.Equal(t, "New", result.Changes[0].NewData["title"])
}

// Partial failure does not block the ledger.
func TestExecutePlan_PartialFailureContinues(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddRecord(resources.Articles, models.Document{"id": "a-1", "title": "One"})
	env.backend.FailOn["update articles/a-1"] = errors.New("constraint violation")

	plan := &models.ContentPlan{
		Title: "three",
		Actions: []models.Action{
			createAction(resources.Articles, models.Document{"title": "First"}),
			updateAction(resources.Articles, "a-1", models.Document{"title": "Two"}),
			createAction(resources.Articles, models.Document{"title": "Third"}),
		},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.PlanID)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Failed)

	changes, err := env.store.GetChangesByPlan(result.PlanID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "First", changes[0].NewData["title"])
	assert.Equal(t, "Third", changes[1].NewData["title"])
}

func TestExecutePlan_PublishesOneEvent(t *testing.T) {
	env := newTestEnv(t)
	env.backend.FailOn["insert projects"] = errors.New("boom")

	plan := &models.ContentPlan{
		Title: "events",
		Actions: []models.Action{
			createAction(resources.Articles, models.Document{"id": "a-1", "title": "A"}),
			createAction(resources.Projects, models.Document{"title": "P"}),
			createAction("bogus", models.Document{"title": "B"}),
		},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, env.notifier.events, 1)
	ev := env.notifier.events[0]
	assert.Equal(t, result.PlanID, ev.PlanID)
	assert.Equal(t, models.ReasonExecuted, ev.Reason)
	assert.Equal(t, []models.ChangedRecord{
		{Resource: resources.Articles, RecordID: "a-1", Kind: models.ActionCreate},
	}, ev.Changes)
}

func TestExecutePlan_AllFailedStillPublishes(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Err = errors.New("backend down")

	plan := &models.ContentPlan{
		Title:   "fails",
		Actions: []models.Action{createAction(resources.Articles, models.Document{"title": "A"})},
	}
	result, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, env.notifier.events, 1)
	assert.Empty(t, env.notifier.events[0].Changes)
}

func TestExecutePlan_CountsMetrics(t *testing.T) {
	env := newTestEnv(t)
	rejected := metrics.ActionsTotal.WithLabelValues("nope", "create", metrics.OutcomeRejected)
	applied := metrics.ActionsTotal.WithLabelValues("testimonials", "create", metrics.OutcomeApplied)
	beforeRejected := testutil.ToFloat64(rejected)
	beforeApplied := testutil.ToFloat64(applied)

	plan := &models.ContentPlan{
		Title: "metrics",
		Actions: []models.Action{
			createAction("nope", models.Document{"x": 1}),
			createAction(resources.Testimonials, models.Document{"author": "Ann", "quote": "Great"}),
		},
	}
	_, err := env.engine.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, beforeRejected+1, testutil.ToFloat64(rejected))
	assert.Equal(t, beforeApplied+1, testutil.ToFloat64(applied))
}

func TestSavePlanForLater(t *testing.T) {
	env := newTestEnv(t)

	plan := &models.ContentPlan{
		Title:   "later",
		Actions: []models.Action{createAction(resources.Articles, models.Document{"title": "A"})},
	}
	id, err := env.engine.SavePlanForLater(context.Background(), plan)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stored, err := env.store.GetPlan(id)
	require.NoError(t, err)
	assert.Equal(t, models.PlanSaved, stored.Status)
	assert.Nil(t, stored.ExecutedAt)
	assert.Len(t, stored.Actions, 1)

	changes, err := env.store.GetChangesByPlan(id)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Empty(t, env.backend.Calls)
	assert.Empty(t, env.notifier.events)
}

func TestSavePlanForLater_EmptyPlanAllowed(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.engine.SavePlanForLater(context.Background(), &models.ContentPlan{Title: "draft idea"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestSavePlanForLater_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	_, err := env.engine.SavePlanForLater(context.Background(), &models.ContentPlan{Title: "x"})
	assert.ErrorIs(t, err, ErrPlanPersistence)

	_, err = env.engine.SavePlanForLater(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPlanPersistence)
}

func TestResolvePlan_ShortID(t *testing.T) {
	env := newTestEnv(t)
	plan := &models.ContentPlan{Title: "short"}
	_, err := env.engine.SavePlanForLater(context.Background(), plan)
	require.NoError(t, err)

	found, err := ResolvePlan(env.store, plan.ShortID())
	require.NoError(t, err)
	assert.Equal(t, plan.ID, found.ID)

	_, err = ResolvePlan(env.store, "zzzzzzzz")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = ResolvePlan(env.store, "")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestExecutePlan_RefusesPlanThatAlreadyRan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := &models.ContentPlan{
		Title:   "first",
		Actions: []models.Action{createAction(resources.Articles, models.Document{"id": "a-1", "title": "A"})},
	}
	_, err := env.engine.ExecutePlan(ctx, plan)
	require.NoError(t, err)
	env.backend.Calls = nil
	env.notifier.events = nil

	again := &models.ContentPlan{
		ID:      plan.ID,
		Title:   "second",
		Actions: []models.Action{createAction(resources.Articles, models.Document{"id": "a-2", "title": "B"})},
	}
	result, err := env.engine.ExecutePlan(ctx, again)
	assert.ErrorIs(t, err, ErrPlanAlreadyRun)
	assert.ErrorIs(t, err, ErrPlanPersistence)
	assert.Nil(t, result)
	assert.Empty(t, env.backend.Calls)
	assert.Empty(t, env.notifier.events)

	stored, err := env.store.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Title)
	assert.Equal(t, models.PlanExecuted, stored.Status)

	changes, err := env.store.GetChangesByPlan(plan.ID)
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	// Re-saving an executed plan would make it runnable again
	_, err = env.engine.SavePlanForLater(ctx, again)
	assert.ErrorIs(t, err, ErrPlanAlreadyRun)

	// Reverted plans stay closed too
	_, err = env.engine.RevertPlan(ctx, plan.ID)
	require.NoError(t, err)
	_, err = env.engine.ExecutePlan(ctx, again)
	assert.ErrorIs(t, err, ErrPlanAlreadyRun)
}

func TestExecutePlan_RunsSavedPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := &models.ContentPlan{
		Title:   "later",
		Actions: []models.Action{createAction(resources.Articles, models.Document{"id": "a-1", "title": "A"})},
	}
	id, err := env.engine.SavePlanForLater(ctx, plan)
	require.NoError(t, err)

	stored, err := env.store.GetPlan(id)
	require.NoError(t, err)
	result, err := env.engine.ExecutePlan(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, id, result.PlanID)
	assert.Equal(t, 1, result.Applied)

	stored, err = env.store.GetPlan(id)
	require.NoError(t, err)
	assert.Equal(t, models.PlanExecuted, stored.Status)
}
