// Package weaviate stores folio content in Weaviate, one class per
// resource. It wraps the Weaviate client with support for multiple server
// versions.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// ServerVersion holds parsed Weaviate version info
type ServerVersion struct {
	Version string // e.g., "1.25.0"
	Major   int
	Minor   int
	Patch   int
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// parseVersion parses a version string like "1.25.0" into ServerVersion
func parseVersion(version string) (*ServerVersion, error) {
	matches := versionPattern.FindStringSubmatch(version)
	if len(matches) < 4 {
		return nil, fmt.Errorf("invalid version format: %s", version)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])

	return &ServerVersion{
		Version: version,
		Major:   major,
		Minor:   minor,
		Patch:   patch,
	}, nil
}

// SupportsFeature checks if the server supports a specific feature
func (v *ServerVersion) SupportsFeature(feature string) bool {
	switch feature {
	case "sorting":
		return v.Major > 1 || (v.Major == 1 && v.Minor >= 13)
	case "cursor_pagination":
		return v.Major > 1 || (v.Major == 1 && v.Minor >= 18)
	default:
		return true
	}
}

// Client wraps the Weaviate client with folio-specific functionality
type Client struct {
	client   *weaviate.Client
	url      string
	sortable bool
}

// NewClient creates a new Weaviate client. sortable selects server-side
// sorting for recent-record queries; older servers page and sort locally.
func NewClient(url string, sortable bool) (*Client, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}

	// Handle URL parsing
	if len(url) > 7 && url[:7] == "http://" {
		cfg.Host = url[7:]
		cfg.Scheme = "http"
	} else if len(url) > 8 && url[:8] == "https://" {
		cfg.Host = url[8:]
		cfg.Scheme = "https"
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	return &Client{
		client:   client,
		url:      url,
		sortable: sortable,
	}, nil
}

// Ping checks if Weaviate is reachable
func (c *Client) Ping(ctx context.Context) error {
	live, err := c.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Weaviate: %w", err)
	}
	if !live {
		return fmt.Errorf("weaviate is not live")
	}
	return nil
}

// GetServerVersion fetches and parses the Weaviate server version
func (c *Client) GetServerVersion(ctx context.Context) (*ServerVersion, error) {
	meta, err := c.client.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server metadata: %w", err)
	}
	return parseVersion(meta.Version)
}

// GetClasses returns all class names in the schema
func (c *Client) GetClasses(ctx context.Context) ([]string, error) {
	schema, err := c.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, err
	}

	var classes []string
	for _, class := range schema.Classes {
		classes = append(classes, class.Class)
	}
	return classes, nil
}

// CreateClass creates a new class in Weaviate
func (c *Client) CreateClass(ctx context.Context, class *weaviatemodels.Class) error {
	return c.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

// GetObject fetches a single object by class and ID
func (c *Client) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	objs, err := c.client.Data().ObjectsGetter().
		WithClassName(className).
		WithID(objectID).
		Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", className, objectID, err)
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return fromAPIObject(objs[0]), nil
}

// ListRecent returns up to limit objects, most recently updated first
func (c *Client) ListRecent(ctx context.Context, className string, limit int) ([]*Object, error) {
	if c.sortable {
		return c.listRecentSorted(ctx, className, limit)
	}
	return c.listRecentOffset(ctx, className, limit)
}

// listRecentSorted asks the server for the newest IDs, then loads each object
func (c *Client) listRecentSorted(ctx context.Context, className string, limit int) ([]*Object, error) {
	additional := graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "id"}},
	}

	result, err := c.client.GraphQL().Get().
		WithClassName(className).
		WithFields(additional).
		WithSort(graphql.Sort{Path: []string{"_lastUpdateTimeUnix"}, Order: graphql.Desc}).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent %s: %w", className, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("failed to query recent %s: %s", className, result.Errors[0].Message)
	}

	var objects []*Object
	for _, id := range parseGetIDs(result.Data, className) {
		obj, err := c.GetObject(ctx, className, id)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

// listRecentOffset pages through the class with offset/limit (older Weaviate
// versions) and sorts locally
func (c *Client) listRecentOffset(ctx context.Context, className string, limit int) ([]*Object, error) {
	var all []*Object
	pageSize := 100
	offset := 0

	for {
		objs, err := c.client.Data().ObjectsGetter().
			WithClassName(className).
			WithLimit(pageSize).
			WithOffset(offset).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch objects from %s: %w", className, err)
		}

		for _, obj := range objs {
			all = append(all, fromAPIObject(obj))
		}

		if len(objs) < pageSize {
			break
		}
		offset += pageSize
	}

	sortByLastUpdate(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CreateObject creates a new object
func (c *Client) CreateObject(ctx context.Context, obj *Object) error {
	_, err := c.client.Data().Creator().
		WithClassName(obj.Class).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		Do(ctx)
	return err
}

// MergeObject merges obj's properties into the stored object
func (c *Client) MergeObject(ctx context.Context, obj *Object) error {
	err := c.client.Data().Updater().
		WithClassName(obj.Class).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		WithMerge().
		Do(ctx)
	if isNotFound(err) {
		return fmt.Errorf("%w: %s/%s", collection.ErrNotFound, obj.Class, obj.ID)
	}
	return err
}

// DeleteObject deletes an object by class and ID
func (c *Client) DeleteObject(ctx context.Context, className, objectID string) error {
	err := c.client.Data().Deleter().
		WithClassName(className).
		WithID(objectID).
		Do(ctx)
	if isNotFound(err) {
		return fmt.Errorf("%w: %s/%s", collection.ErrNotFound, className, objectID)
	}
	return err
}

// GetClassCount returns the number of objects in a class using aggregate query
func (c *Client) GetClassCount(ctx context.Context, className string) (int, error) {
	metaField := graphql.Field{
		Name: "meta",
		Fields: []graphql.Field{
			{Name: "count"},
		},
	}

	result, err := c.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(metaField).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get count for %s: %w", className, err)
	}
	return parseAggregateCount(result.Data, className)
}

func isNotFound(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound
}

// fromAPIObject converts a Weaviate API object to our internal model
func fromAPIObject(obj *weaviatemodels.Object) *Object {
	props, _ := obj.Properties.(map[string]interface{})
	if props == nil {
		props = make(map[string]interface{})
	}
	return &Object{
		ID:                 obj.ID.String(),
		Class:              obj.Class,
		Properties:         props,
		CreationTimeUnix:   obj.CreationTimeUnix,
		LastUpdateTimeUnix: obj.LastUpdateTimeUnix,
	}
}

func sortByLastUpdate(objs []*Object) {
	sort.SliceStable(objs, func(i, j int) bool {
		return objs[i].LastUpdateTimeUnix > objs[j].LastUpdateTimeUnix
	})
}

// parseGetIDs extracts _additional.id values from a GraphQL Get response
func parseGetIDs(data map[string]weaviatemodels.JSONObject, className string) []string {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	var ids []string
	for _, row := range rows {
		fields, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		additional, ok := fields["_additional"].(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := additional["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// parseAggregateCount extracts meta.count from a GraphQL Aggregate response
func parseAggregateCount(data map[string]weaviatemodels.JSONObject, className string) (int, error) {
	agg, ok := data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate response format")
	}

	classData, ok := agg[className].([]interface{})
	if !ok || len(classData) == 0 {
		return 0, nil
	}

	first, ok := classData[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}

	meta, ok := first["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}

	count, ok := meta["count"].(float64)
	if !ok {
		return 0, nil
	}

	return int(count), nil
}
