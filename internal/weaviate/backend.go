package weaviate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// FolioIDProperty holds a record's folio id; Weaviate reserves "id".
const FolioIDProperty = "folio_id"

// recordNamespace seeds the UUIDs derived from non-UUID record ids.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://folio.dev/records"))

// Backend stores content records as Weaviate objects.
type Backend struct {
	client ClientInterface
	now    func() time.Time
}

// NewBackend creates a collection backend over a Weaviate client.
func NewBackend(client ClientInterface) *Backend {
	return &Backend{client: client, now: time.Now}
}

// ClassName maps a resource to its Weaviate class, e.g. social_links to
// SocialLinks.
func ClassName(resource resources.ResourceName) string {
	var b strings.Builder
	for _, part := range strings.Split(string(resource), "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// ObjectID maps a record id to a Weaviate object UUID. UUIDs are used as
// is; any other id is hashed into a stable UUID scoped to the resource.
func ObjectID(resource resources.ResourceName, recordID string) string {
	if parsed, err := uuid.Parse(recordID); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(recordNamespace, []byte(string(resource)+"/"+recordID)).String()
}

// EnsureClasses creates a class for every allow-listed resource that does
// not have one yet.
func (b *Backend) EnsureClasses(ctx context.Context) ([]string, error) {
	existing, err := b.client.GetClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}

	var created []string
	for _, r := range resources.All() {
		name := ClassName(r)
		if have[name] {
			continue
		}
		class := &weaviatemodels.Class{
			Class:       name,
			Description: fmt.Sprintf("folio %s records", r),
			Vectorizer:  "none",
			Properties: []*weaviatemodels.Property{
				{Name: FolioIDProperty, DataType: []string{"text"}},
				{Name: collection.CreatedAtField, DataType: []string{"text"}},
				{Name: collection.UpdatedAtField, DataType: []string{"text"}},
			},
		}
		if err := b.client.CreateClass(ctx, class); err != nil {
			return created, fmt.Errorf("create class %s: %w", name, err)
		}
		created = append(created, name)
	}
	return created, nil
}

func (b *Backend) Insert(ctx context.Context, resource resources.ResourceName, doc models.Document) (models.Document, error) {
	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
	}
	props := doc.WithoutID()
	if props == nil {
		props = models.Document{}
	}
	stamp := b.timestamp()
	if _, ok := props[collection.CreatedAtField]; !ok {
		props[collection.CreatedAtField] = stamp
	}
	if _, ok := props[collection.UpdatedAtField]; !ok {
		props[collection.UpdatedAtField] = stamp
	}
	props[FolioIDProperty] = id

	obj := &Object{
		ID:         ObjectID(resource, id),
		Class:      ClassName(resource),
		Properties: props,
	}
	if err := b.client.CreateObject(ctx, obj); err != nil {
		return nil, fmt.Errorf("create %s/%s: %w", resource, id, err)
	}
	return toDocument(obj), nil
}

func (b *Backend) SelectOne(ctx context.Context, resource resources.ResourceName, id string) (models.Document, error) {
	obj, err := b.client.GetObject(ctx, ClassName(resource), ObjectID(resource, id))
	if err != nil || obj == nil {
		return nil, err
	}
	return toDocument(obj), nil
}

func (b *Backend) Update(ctx context.Context, resource resources.ResourceName, id string, patch models.Document) (models.Document, error) {
	class := ClassName(resource)
	objectID := ObjectID(resource, id)
	current, err := b.client.GetObject(ctx, class, objectID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s/%s", collection.ErrNotFound, resource, id)
	}

	props := patch.WithoutID()
	if props == nil {
		props = models.Document{}
	}
	delete(props, FolioIDProperty)
	if _, ok := props[collection.UpdatedAtField]; !ok {
		props[collection.UpdatedAtField] = b.timestamp()
	}
	if err := b.client.MergeObject(ctx, &Object{ID: objectID, Class: class, Properties: props}); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", resource, id, err)
	}

	merged := make(map[string]interface{}, len(current.Properties)+len(props))
	for k, v := range current.Properties {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	current.Properties = merged
	return toDocument(current), nil
}

func (b *Backend) Delete(ctx context.Context, resource resources.ResourceName, id string) error {
	return b.client.DeleteObject(ctx, ClassName(resource), ObjectID(resource, id))
}

func (b *Backend) Recent(ctx context.Context, resource resources.ResourceName, limit int) ([]models.Document, error) {
	objs, err := b.client.ListRecent(ctx, ClassName(resource), limit)
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(objs))
	for _, obj := range objs {
		docs = append(docs, toDocument(obj))
	}
	return docs, nil
}

func (b *Backend) Count(ctx context.Context, resource resources.ResourceName) (int, error) {
	return b.client.GetClassCount(ctx, ClassName(resource))
}

func (b *Backend) timestamp() string {
	return b.now().UTC().Format(time.RFC3339Nano)
}

// toDocument converts an object back to a folio document. The record id
// comes from the folio_id property, falling back to the object UUID.
func toDocument(obj *Object) models.Document {
	doc := make(models.Document, len(obj.Properties)+1)
	for k, v := range obj.Properties {
		doc[k] = v
	}
	id, _ := doc[FolioIDProperty].(string)
	if id == "" {
		id = obj.ID
	}
	delete(doc, FolioIDProperty)
	doc[models.IDField] = id

	if _, ok := doc[collection.UpdatedAtField]; !ok && obj.LastUpdateTimeUnix > 0 {
		doc[collection.UpdatedAtField] = time.UnixMilli(obj.LastUpdateTimeUnix).UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// Verify Backend implements collection.Backend
var _ collection.Backend = (*Backend)(nil)
