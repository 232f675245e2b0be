package collection

import (
	"context"
	"testing"

	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CollectionRejectsUnknown(t *testing.T) {
	backend := NewMockBackend()
	reg := NewRegistry(backend)

	h, err := reg.Collection("not_a_real_table")
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrRejectedResource)
	assert.Empty(t, backend.Calls, "rejection happens before any backend call")
}

func TestRegistry_HandleRoutesToResource(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	reg := NewRegistry(backend)

	h, err := reg.Collection(resources.Projects)
	require.NoError(t, err)
	assert.Equal(t, resources.Projects, h.Name())

	doc, err := h.Insert(ctx, models.Document{"title": "Site"})
	require.NoError(t, err)

	got, err := h.SelectOne(ctx, doc.ID())
	require.NoError(t, err)
	assert.Equal(t, "Site", got["title"])

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Nil(t, backend.Record(resources.Articles, doc.ID()), "other collections untouched")
}

func TestMockBackend_FailOn(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	backend.AddRecord(resources.Articles, models.Document{"id": "a-1", "title": "A"})
	backend.FailOn["update articles/a-1"] = assert.AnError

	_, err := backend.Update(ctx, resources.Articles, "a-1", models.Document{"title": "B"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "A", backend.Record(resources.Articles, "a-1")["title"])
	assert.Equal(t, []string{"update articles/a-1"}, backend.Mutations())
}

func TestMockBackend_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	for _, id := range []string{"1", "2", "3"} {
		_, err := backend.Insert(ctx, resources.Skills, models.Document{"id": id})
		require.NoError(t, err)
	}
	require.NoError(t, backend.Delete(ctx, resources.Skills, "2"))

	docs, err := backend.Recent(ctx, resources.Skills, 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "3", docs[0].ID())
	assert.Equal(t, "1", docs[1].ID())
}
