package collection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"
)

// MockBackend is an in-memory Backend for testing.
type MockBackend struct {
	mu sync.Mutex

	// Records stores documents by "resource/id" key
	Records map[string]models.Document
	// order keeps insertion order per resource, oldest first
	order map[resources.ResourceName][]string
	// Err can be set to make every method return an error
	Err error
	// FailOn makes a single call fail; keys are "op resource/id" for
	// id-addressed calls (e.g. "update articles/a-1") and "op resource"
	// for insert, recent and count.
	FailOn map[string]error
	// Calls records every call in the same "op resource[/id]" form
	Calls []string

	nextID int
}

// NewMockBackend creates an empty MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Records: make(map[string]models.Document),
		order:   make(map[resources.ResourceName][]string),
		FailOn:  make(map[string]error),
	}
}

func mockKey(resource resources.ResourceName, id string) string {
	return string(resource) + "/" + id
}

// AddRecord seeds a record without recording a call.
func (m *MockBackend) AddRecord(resource resources.ResourceName, doc models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := doc.ID()
	key := mockKey(resource, id)
	if _, exists := m.Records[key]; !exists {
		m.order[resource] = append(m.order[resource], id)
	}
	m.Records[key] = doc.Clone()
}

// Record returns a copy of a stored record, or nil.
func (m *MockBackend) Record(resource resources.ResourceName, id string) models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Records[mockKey(resource, id)].Clone()
}

// Mutations returns the recorded insert, update and delete calls.
func (m *MockBackend) Mutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, c := range m.Calls {
		op, _, _ := strings.Cut(c, " ")
		switch op {
		case "insert", "update", "delete":
			out = append(out, c)
		}
	}
	return out
}

func (m *MockBackend) call(call string) error {
	m.Calls = append(m.Calls, call)
	if m.Err != nil {
		return m.Err
	}
	if err, ok := m.FailOn[call]; ok {
		return err
	}
	return nil
}

func (m *MockBackend) Insert(ctx context.Context, resource resources.ResourceName, doc models.Document) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.call("insert " + string(resource)); err != nil {
		return nil, err
	}
	stored := doc.Clone()
	id := stored.ID()
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("rec-%d", m.nextID)
		stored[models.IDField] = id
	}
	key := mockKey(resource, id)
	if _, exists := m.Records[key]; exists {
		return nil, fmt.Errorf("duplicate key %s", key)
	}
	m.Records[key] = stored
	m.order[resource] = append(m.order[resource], id)
	return stored.Clone(), nil
}

func (m *MockBackend) SelectOne(ctx context.Context, resource resources.ResourceName, id string) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.call("select " + mockKey(resource, id)); err != nil {
		return nil, err
	}
	doc, ok := m.Records[mockKey(resource, id)]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (m *MockBackend) Update(ctx context.Context, resource resources.ResourceName, id string, patch models.Document) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.call("update " + mockKey(resource, id)); err != nil {
		return nil, err
	}
	key := mockKey(resource, id)
	doc, ok := m.Records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	merged := doc.Clone()
	for k, v := range patch {
		if k == models.IDField {
			continue
		}
		merged[k] = v
	}
	m.Records[key] = merged
	return merged.Clone(), nil
}

func (m *MockBackend) Delete(ctx context.Context, resource resources.ResourceName, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.call("delete " + mockKey(resource, id)); err != nil {
		return err
	}
	key := mockKey(resource, id)
	if _, ok := m.Records[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(m.Records, key)
	ids := m.order[resource]
	for i, existing := range ids {
		if existing == id {
			m.order[resource] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Recent returns records newest-inserted first.
func (m *MockBackend) Recent(ctx context.Context, resource resources.ResourceName, limit int) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.call("recent " + string(resource)); err != nil {
		return nil, err
	}
	ids := m.order[resource]
	var out []models.Document
	for i := len(ids) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.Records[mockKey(resource, ids[i])].Clone())
	}
	return out, nil
}

func (m *MockBackend) Count(ctx context.Context, resource resources.ResourceName) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.call("count " + string(resource)); err != nil {
		return 0, err
	}
	return len(m.order[resource]), nil
}

// Verify MockBackend implements Backend
var _ Backend = (*MockBackend)(nil)
