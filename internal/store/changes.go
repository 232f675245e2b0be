package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/resources"
	bolt "go.etcd.io/bbolt"
)

// ErrChangeNotFound is returned when no change record matches an id.
var ErrChangeNotFound = errors.New("change not found")

// indexTimeLayout is fixed-width so record index keys sort chronologically.
const indexTimeLayout = "20060102T150405.000000000"

// seqWidth is the width of a zero-padded sequence key.
const seqWidth = 8

// Change records live in a nested bucket per plan (changes/{plan_id}/{seq}).
// The change and record indexes point at them with a ref of the form
// "{seq:08d}{plan_id}", so no id needs escaping.

func seqKey(seq int) []byte {
	return []byte(fmt.Sprintf("%0*d", seqWidth, seq))
}

func changeRef(planID string, seq int) []byte {
	return append(seqKey(seq), planID...)
}

func parseChangeRef(ref []byte) (string, []byte, error) {
	if len(ref) <= seqWidth {
		return "", nil, fmt.Errorf("%w: malformed ref %q", ErrChangeNotFound, ref)
	}
	key := make([]byte, seqWidth)
	copy(key, ref[:seqWidth])
	return string(ref[seqWidth:]), key, nil
}

func recordIndexKey(rec *models.ChangeRecord) []byte {
	return []byte(rec.CreatedAt.UTC().Format(indexTimeLayout) + "/" + rec.ID)
}

// AppendChange appends a change record to its plan's ledger, assigning ID,
// Seq and CreatedAt (when unset).
func (s *Store) AppendChange(rec *models.ChangeRecord) error {
	if rec.PlanID == "" {
		return fmt.Errorf("append change: missing plan id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketPlans).Get([]byte(rec.PlanID)) == nil {
			return fmt.Errorf("append change: %w: %s", ErrPlanNotFound, rec.PlanID)
		}

		changes, err := tx.Bucket(bucketChanges).CreateBucketIfNotExists([]byte(rec.PlanID))
		if err != nil {
			return err
		}
		rec.Seq = nextSeq(changes)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal change: %w", err)
		}

		if err := changes.Put(seqKey(rec.Seq), data); err != nil {
			return err
		}
		ref := changeRef(rec.PlanID, rec.Seq)
		if err := tx.Bucket(bucketChangeIndex).Put([]byte(rec.ID), ref); err != nil {
			return err
		}
		if rec.RecordID == "" {
			return nil
		}
		records, err := recordBucket(tx, rec.Resource, rec.RecordID, true)
		if err != nil {
			return err
		}
		return records.Put(recordIndexKey(rec), ref)
	})
}

// recordBucket returns record_index/{resource}/{record_id}, creating it when
// create is set. It returns nil when the bucket does not exist.
func recordBucket(tx *bolt.Tx, resource resources.ResourceName, recordID string, create bool) (*bolt.Bucket, error) {
	root := tx.Bucket(bucketRecordIndex)
	if !create {
		byResource := root.Bucket([]byte(resource))
		if byResource == nil {
			return nil, nil
		}
		return byResource.Bucket([]byte(recordID)), nil
	}
	byResource, err := root.CreateBucketIfNotExists([]byte(resource))
	if err != nil {
		return nil, err
	}
	return byResource.CreateBucketIfNotExists([]byte(recordID))
}

// nextSeq returns the sequence after the highest one in a plan bucket.
func nextSeq(b *bolt.Bucket) int {
	k, _ := b.Cursor().Last()
	if k == nil {
		return 0
	}
	var seq int
	if _, err := fmt.Sscanf(string(k), "%d", &seq); err != nil {
		return 0
	}
	return seq + 1
}

// GetChange retrieves a change record by ID.
func (s *Store) GetChange(id string) (*models.ChangeRecord, error) {
	var rec *models.ChangeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketChangeIndex).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrChangeNotFound, id)
		}
		var err error
		rec, err = loadChange(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetChangeByShortID retrieves a change record by a unique ID prefix.
func (s *Store) GetChangeByShortID(prefix string) (*models.ChangeRecord, error) {
	var rec *models.ChangeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		k, key, err := uniquePrefix(tx.Bucket(bucketChangeIndex), prefix)
		if err != nil {
			return err
		}
		if k == nil {
			return fmt.Errorf("%w: %s", ErrChangeNotFound, prefix)
		}
		rec, err = loadChange(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func loadChange(tx *bolt.Tx, ref []byte) (*models.ChangeRecord, error) {
	changes, key, err := locateChange(tx, ref)
	if err != nil {
		return nil, err
	}
	v := changes.Get(key)
	if v == nil {
		return nil, fmt.Errorf("%w: dangling index ref %q", ErrChangeNotFound, ref)
	}
	var rec models.ChangeRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal change: %w", err)
	}
	return &rec, nil
}

// locateChange resolves an index ref to its plan bucket and sequence key.
func locateChange(tx *bolt.Tx, ref []byte) (*bolt.Bucket, []byte, error) {
	planID, key, err := parseChangeRef(ref)
	if err != nil {
		return nil, nil, err
	}
	changes := tx.Bucket(bucketChanges).Bucket([]byte(planID))
	if changes == nil {
		return nil, nil, fmt.Errorf("%w: dangling index ref %q", ErrChangeNotFound, ref)
	}
	return changes, key, nil
}

// GetChangesByPlan returns every change record of a plan in append order.
func (s *Store) GetChangesByPlan(planID string) ([]*models.ChangeRecord, error) {
	var recs []*models.ChangeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		changes := tx.Bucket(bucketChanges).Bucket([]byte(planID))
		if changes == nil {
			return nil
		}
		c := changes.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec models.ChangeRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal change: %w", err)
			}
			recs = append(recs, &rec)
		}
		return nil
	})
	return recs, err
}

// GetPendingChanges returns a plan's non-reverted change records, most
// recent first. Records created at the same instant fall back to reverse
// append order.
func (s *Store) GetPendingChanges(planID string) ([]*models.ChangeRecord, error) {
	all, err := s.GetChangesByPlan(planID)
	if err != nil {
		return nil, err
	}
	var pending []*models.ChangeRecord
	for _, rec := range all {
		if !rec.Reverted {
			pending = append(pending, rec)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.After(pending[j].CreatedAt)
		}
		return pending[i].Seq > pending[j].Seq
	})
	return pending, nil
}

// GetChangesByRecord returns the change history of one record across all
// plans, oldest first.
func (s *Store) GetChangesByRecord(resource resources.ResourceName, recordID string) ([]*models.ChangeRecord, error) {
	var recs []*models.ChangeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		records, err := recordBucket(tx, resource, recordID, false)
		if err != nil || records == nil {
			return err
		}
		c := records.Cursor()
		for k, ref := c.First(); k != nil; k, ref = c.Next() {
			rec, err := loadChange(tx, ref)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// MarkChangeReverted flips a change record's reverted flag. Marking an
// already reverted record is a no-op.
func (s *Store) MarkChangeReverted(id string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		ref := tx.Bucket(bucketChangeIndex).Get([]byte(id))
		if ref == nil {
			return fmt.Errorf("%w: %s", ErrChangeNotFound, id)
		}
		rec, err := loadChange(tx, ref)
		if err != nil {
			return err
		}
		if rec.Reverted {
			return nil
		}
		rec.Reverted = true
		revertedAt := at.UTC()
		rec.RevertedAt = &revertedAt

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal change: %w", err)
		}
		changes, key, err := locateChange(tx, ref)
		if err != nil {
			return err
		}
		return changes.Put(key, data)
	})
}
