package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/metrics"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"
	"golang.org/x/sync/errgroup"
)

const (
	previewRunes    = 80
	publishedField  = "published"
	previewEllipsis = "..."
)

// Snapshot summarizes every allow-listed collection for an upstream
// planner. Collections are read concurrently; one that cannot be read is
// logged and reported as a zero-state summary.
func (e *Engine) Snapshot(ctx context.Context) (map[resources.ResourceName]*models.CollectionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := resources.All()
	out := make(map[resources.ResourceName]*models.CollectionSummary, len(names))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.opts.SnapshotConcurrency)
	for _, name := range names {
		g.Go(func() error {
			summary, err := e.summarize(ctx, name)
			if err != nil {
				e.log.Warn("snapshot degraded to zero-state", "resource", name, "error", err)
				metrics.ObserveSnapshotFailure(string(name))
				summary = &models.CollectionSummary{Recent: []models.RecordPreview{}}
			}
			mu.Lock()
			out[name] = summary
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

func (e *Engine) summarize(ctx context.Context, name resources.ResourceName) (*models.CollectionSummary, error) {
	traits, _ := resources.Lookup(name)
	h, err := e.collections.Collection(name)
	if err != nil {
		return nil, err
	}

	total, err := h.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	recent, err := h.Recent(ctx, e.opts.RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}

	staleBefore := e.now().Add(-e.opts.StaleAfter)
	summary := &models.CollectionSummary{
		Total:  total,
		Recent: make([]models.RecordPreview, 0, len(recent)),
	}
	for _, doc := range recent {
		summary.Recent = append(summary.Recent, models.RecordPreview{
			ID:      doc.ID(),
			Preview: Preview(doc[traits.DescriptionField]),
		})
		if traits.Publishable {
			if isTruthy(doc[publishedField]) {
				summary.Published++
			} else {
				summary.Drafts++
			}
		}
		if traits.Stales {
			if updated, ok := documentTime(doc[collection.UpdatedAtField]); ok && updated.Before(staleBefore) {
				summary.Stale++
			}
		}
		if missingRequired(doc, traits.Required) {
			summary.MissingFields++
		}
	}
	return summary, nil
}

// Preview renders a field value on one line, truncated to 80 runes.
func Preview(v interface{}) string {
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewRunes-len(previewEllipsis)]) + previewEllipsis
}

func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		return strings.EqualFold(t, "true") || t == "1"
	}
	return false
}

func documentTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		parsed := collection.ParseTimestamp(t)
		return parsed, !parsed.IsZero()
	}
	return time.Time{}, false
}

// missingRequired reports whether any required field is absent or blank.
func missingRequired(doc models.Document, required []string) bool {
	for _, field := range required {
		v, ok := doc[field]
		if !ok || v == nil {
			return true
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return true
		}
	}
	return false
}
