package weaviate

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilupskalvis/folio/internal/collection"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// MockClient is a mock implementation of ClientInterface for testing.
type MockClient struct {
	mu sync.Mutex

	// Objects stores objects by "ClassName/ObjectID" key
	Objects map[string]*Object
	// Classes is the current mock schema
	Classes []*weaviatemodels.Class
	// Err can be set to make methods return an error
	Err error

	clock int64
}

// NewMockClient creates a new MockClient for testing.
func NewMockClient() *MockClient {
	return &MockClient{
		Objects: make(map[string]*Object),
	}
}

func objectKey(className, objectID string) string {
	return className + "/" + objectID
}

func copyObject(obj *Object) *Object {
	props := make(map[string]interface{}, len(obj.Properties))
	for k, v := range obj.Properties {
		props[k] = v
	}
	out := *obj
	out.Properties = props
	return &out
}

// tick returns a strictly increasing fake unix-millis timestamp.
func (m *MockClient) tick() int64 {
	m.clock++
	return 1_700_000_000_000 + m.clock
}

func (m *MockClient) GetClasses(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var names []string
	for _, c := range m.Classes {
		names = append(names, c.Class)
	}
	return names, nil
}

func (m *MockClient) CreateClass(ctx context.Context, class *weaviatemodels.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, c := range m.Classes {
		if c.Class == class.Class {
			return fmt.Errorf("class %s already exists", class.Class)
		}
	}
	m.Classes = append(m.Classes, class)
	return nil
}

func (m *MockClient) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	obj, ok := m.Objects[objectKey(className, objectID)]
	if !ok {
		return nil, nil
	}
	return copyObject(obj), nil
}

// ListRecent returns objects of a class, most recently updated first.
func (m *MockClient) ListRecent(ctx context.Context, className string, limit int) ([]*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*Object
	for _, obj := range m.Objects {
		if obj.Class == className {
			out = append(out, copyObject(obj))
		}
	}
	sortByLastUpdate(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockClient) CreateObject(ctx context.Context, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := objectKey(obj.Class, obj.ID)
	if _, exists := m.Objects[key]; exists {
		return fmt.Errorf("id '%s' already exists", obj.ID)
	}
	stored := copyObject(obj)
	stored.CreationTimeUnix = m.tick()
	stored.LastUpdateTimeUnix = stored.CreationTimeUnix
	m.Objects[key] = stored
	return nil
}

func (m *MockClient) MergeObject(ctx context.Context, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	stored, ok := m.Objects[objectKey(obj.Class, obj.ID)]
	if !ok {
		return fmt.Errorf("%w: %s/%s", collection.ErrNotFound, obj.Class, obj.ID)
	}
	for k, v := range obj.Properties {
		stored.Properties[k] = v
	}
	stored.LastUpdateTimeUnix = m.tick()
	return nil
}

func (m *MockClient) DeleteObject(ctx context.Context, className, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := objectKey(className, objectID)
	if _, ok := m.Objects[key]; !ok {
		return fmt.Errorf("%w: %s", collection.ErrNotFound, key)
	}
	delete(m.Objects, key)
	return nil
}

func (m *MockClient) GetClassCount(ctx context.Context, className string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	count := 0
	for _, obj := range m.Objects {
		if obj.Class == className {
			count++
		}
	}
	return count, nil
}

// Verify MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)
