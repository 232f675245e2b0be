package weaviate

import (
	"context"

	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// Object is a Weaviate data object reduced to what folio stores.
type Object struct {
	ID                 string
	Class              string
	Properties         map[string]interface{}
	CreationTimeUnix   int64
	LastUpdateTimeUnix int64
}

// ClientInterface defines the contract for Weaviate client operations.
// This interface enables mocking for testing the backend.
type ClientInterface interface {
	// Schema operations
	GetClasses(ctx context.Context) ([]string, error)
	CreateClass(ctx context.Context, class *weaviatemodels.Class) error

	// Object operations. Missing objects are reported as (nil, nil) by
	// GetObject and as collection.ErrNotFound by MergeObject and DeleteObject.
	GetObject(ctx context.Context, className, objectID string) (*Object, error)
	ListRecent(ctx context.Context, className string, limit int) ([]*Object, error)
	CreateObject(ctx context.Context, obj *Object) error
	MergeObject(ctx context.Context, obj *Object) error
	DeleteObject(ctx context.Context, className, objectID string) error

	// Query operations
	GetClassCount(ctx context.Context, className string) (int, error)
}

// Verify that *Client implements ClientInterface at compile time
var _ ClientInterface = (*Client)(nil)
