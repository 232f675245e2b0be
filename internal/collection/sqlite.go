package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"

	_ "modernc.org/sqlite"
)

// Timestamp fields maintained by the SQLite backend.
const (
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteBackend stores every collection as JSON documents in one table.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the content database at dbPath.
func NewSQLite(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &SQLiteBackend{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// Initialize creates the documents table.
func (s *SQLiteBackend) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		resource TEXT NOT NULL,
		id TEXT NOT NULL,
		data JSON NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (resource, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_recent ON documents(resource, updated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Insert stores doc. A caller-supplied id and timestamps are kept, so a
// re-inserted snapshot comes back unchanged.
func (s *SQLiteBackend) Insert(ctx context.Context, resource resources.ResourceName, doc models.Document) (models.Document, error) {
	stored := doc.Clone()
	if stored == nil {
		stored = models.Document{}
	}
	if stored.ID() == "" {
		stored[models.IDField] = uuid.NewString()
	}
	now := s.now().UTC().Format(timeLayout)
	if _, ok := stored[CreatedAtField]; !ok {
		stored[CreatedAtField] = now
	}
	if _, ok := stored[UpdatedAtField]; !ok {
		stored[UpdatedAtField] = now
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal %s document: %w", resource, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (resource, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(resource), stored.ID(), string(data),
		sortableTime(stored[CreatedAtField], now), sortableTime(stored[UpdatedAtField], now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s/%s: %w", resource, stored.ID(), err)
	}
	return decodeDocument(data)
}

func (s *SQLiteBackend) SelectOne(ctx context.Context, resource resources.ResourceName, id string) (models.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE resource = ? AND id = ?",
		string(resource), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", resource, id, err)
	}
	return decodeDocument([]byte(data))
}

// Update merges patch into the stored record. updated_at is refreshed
// unless the patch carries its own value.
func (s *SQLiteBackend) Update(ctx context.Context, resource resources.ResourceName, id string, patch models.Document) (models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE resource = ? AND id = ?",
		string(resource), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, resource, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", resource, id, err)
	}

	merged, err := decodeDocument([]byte(data))
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if k == models.IDField {
			continue
		}
		merged[k] = v
	}
	now := s.now().UTC().Format(timeLayout)
	if _, ok := patch[UpdatedAtField]; !ok {
		merged[UpdatedAtField] = now
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal %s document: %w", resource, err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE documents SET data = ?, updated_at = ? WHERE resource = ? AND id = ?",
		string(encoded), sortableTime(merged[UpdatedAtField], now), string(resource), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", resource, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return decodeDocument(encoded)
}

func (s *SQLiteBackend) Delete(ctx context.Context, resource resources.ResourceName, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE resource = ? AND id = ?",
		string(resource), id,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", resource, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, resource, id)
	}
	return nil
}

func (s *SQLiteBackend) Recent(ctx context.Context, resource resources.ResourceName, limit int) ([]models.Document, error) {
	query := "SELECT data FROM documents WHERE resource = ? ORDER BY updated_at DESC, id"
	args := []interface{}{string(resource)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		doc, err := decodeDocument([]byte(data))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteBackend) Count(ctx context.Context, resource resources.ResourceName) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE resource = ?", string(resource),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", resource, err)
	}
	return n, nil
}

func decodeDocument(data []byte) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// sortableTime normalizes a document timestamp for the index column,
// falling back when the value is missing or unparseable.
func sortableTime(v interface{}, fallback string) string {
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	t := ParseTimestamp(s)
	if t.IsZero() {
		return fallback
	}
	return t.UTC().Format(timeLayout)
}

// ParseTimestamp parses a document timestamp in the formats content is
// commonly stored with. It returns the zero time when nothing matches.
func ParseTimestamp(s string) time.Time {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Verify SQLiteBackend implements Backend
var _ Backend = (*SQLiteBackend)(nil)
