package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kilupskalvis/folio/internal/models"
	bolt "go.etcd.io/bbolt"
)

// ErrPlanNotFound is returned when no plan matches an id or prefix.
var ErrPlanNotFound = errors.New("plan not found")

// SavePlan inserts or replaces a plan. A missing ID and CreatedAt are
// assigned on first persistence.
func (s *Store) SavePlan(plan *models.ContentPlan) error {
	if plan == nil {
		return fmt.Errorf("save plan: nil plan")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlans).Put([]byte(plan.ID), data)
	})
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(id string) (*models.ContentPlan, error) {
	var plan *models.ContentPlan
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPlans).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		plan = &models.ContentPlan{}
		return json.Unmarshal(v, plan)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlanByShortID retrieves a plan by a unique ID prefix.
func (s *Store) GetPlanByShortID(prefix string) (*models.ContentPlan, error) {
	var plan *models.ContentPlan
	err := s.db.View(func(tx *bolt.Tx) error {
		k, v, err := uniquePrefix(tx.Bucket(bucketPlans), prefix)
		if err != nil {
			return err
		}
		if k == nil {
			return fmt.Errorf("%w: %s", ErrPlanNotFound, prefix)
		}
		plan = &models.ContentPlan{}
		return json.Unmarshal(v, plan)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlanStatus sets a plan's status.
func (s *Store) UpdatePlanStatus(id string, status models.PlanStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlans)
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		var plan models.ContentPlan
		if err := json.Unmarshal(v, &plan); err != nil {
			return fmt.Errorf("unmarshal plan: %w", err)
		}
		plan.Status = status
		data, err := json.Marshal(&plan)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		return b.Put([]byte(id), data)
	})
}

// ListPlans returns plans newest first. A limit <= 0 returns all plans.
func (s *Store) ListPlans(limit int) ([]*models.ContentPlan, error) {
	var plans []*models.ContentPlan
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlans).ForEach(func(k, v []byte) error {
			var plan models.ContentPlan
			if err := json.Unmarshal(v, &plan); err != nil {
				return fmt.Errorf("unmarshal plan: %w", err)
			}
			plans = append(plans, &plan)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})
	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}
	return plans, nil
}

// uniquePrefix finds the single key starting with prefix. It returns a nil
// key when nothing matches and an error when more than one key does.
func uniquePrefix(b *bolt.Bucket, prefix string) ([]byte, []byte, error) {
	p := []byte(prefix)
	c := b.Cursor()
	k, v := c.Seek(p)
	if k == nil || !bytes.HasPrefix(k, p) {
		return nil, nil, nil
	}
	if next, _ := c.Next(); next != nil && bytes.HasPrefix(next, p) {
		return nil, nil, fmt.Errorf("ambiguous id prefix: %s", prefix)
	}
	return k, v, nil
}
