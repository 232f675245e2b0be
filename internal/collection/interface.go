// Package collection is the collection-access primitive: a narrow document
// store contract, typed per-resource handles, and the backends behind them.
package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrRejectedResource is returned for collections outside the allow-list.
	ErrRejectedResource = errors.New("resource not allowed")
)

// Backend defines the contract for document store operations. Each call is
// assumed atomic for a single record.
type Backend interface {
	// Insert stores doc and returns the stored record including its id.
	Insert(ctx context.Context, resource resources.ResourceName, doc models.Document) (models.Document, error)
	// SelectOne returns the record, or nil with no error when it does not exist.
	SelectOne(ctx context.Context, resource resources.ResourceName, id string) (models.Document, error)
	// Update merges patch into the record and returns the result.
	Update(ctx context.Context, resource resources.ResourceName, id string, patch models.Document) (models.Document, error)
	Delete(ctx context.Context, resource resources.ResourceName, id string) error

	// Recent returns up to limit records, most recently updated first.
	Recent(ctx context.Context, resource resources.ResourceName, limit int) ([]models.Document, error)
	Count(ctx context.Context, resource resources.ResourceName) (int, error)
}

// Registry maps allow-listed resource names to typed collection handles.
type Registry struct {
	backend Backend
}

// NewRegistry creates a registry over a backend.
func NewRegistry(backend Backend) *Registry {
	return &Registry{backend: backend}
}

// Collection returns the handle for name, or ErrRejectedResource.
func (r *Registry) Collection(name resources.ResourceName) (*Handle, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrRejectedResource, name)
	}
	return &Handle{name: name, backend: r.backend}, nil
}

// Handle is access to one allow-listed collection.
type Handle struct {
	name    resources.ResourceName
	backend Backend
}

// Name returns the collection's resource name.
func (h *Handle) Name() resources.ResourceName {
	return h.name
}

func (h *Handle) Insert(ctx context.Context, doc models.Document) (models.Document, error) {
	return h.backend.Insert(ctx, h.name, doc)
}

func (h *Handle) SelectOne(ctx context.Context, id string) (models.Document, error) {
	return h.backend.SelectOne(ctx, h.name, id)
}

func (h *Handle) Update(ctx context.Context, id string, patch models.Document) (models.Document, error) {
	return h.backend.Update(ctx, h.name, id, patch)
}

func (h *Handle) Delete(ctx context.Context, id string) error {
	return h.backend.Delete(ctx, h.name, id)
}

func (h *Handle) Recent(ctx context.Context, limit int) ([]models.Document, error) {
	return h.backend.Recent(ctx, h.name, limit)
}

func (h *Handle) Count(ctx context.Context) (int, error) {
	return h.backend.Count(ctx, h.name)
}
