// Package memory provides in-memory storage backends, used in tests and
// when a daemon runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TxRecord // keyed by record ID
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		data: make(map[string]*domain.TxRecord),
	}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Append adds a new record. Returns ErrDuplicateKey if the record ID exists.
func (s *ActivityStore) Append(_ context.Context, r *domain.TxRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ID] = &copy
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *ActivityStore) GetByID(_ context.Context, id string) (*domain.TxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByAccount retrieves all records for an account, ordered by created_at ASC.
func (s *ActivityStore) GetByAccount(_ context.Context, account ethereum.Address) ([]*domain.TxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TxRecord
	for _, r := range s.data {
		if r.Account.Equal(account) {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortByCreatedAt(result)
	return result, nil
}

// GetByKind retrieves all records of a given kind, ordered by created_at ASC.
func (s *ActivityStore) GetByKind(_ context.Context, kind domain.TxKind) ([]*domain.TxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TxRecord
	for _, r := range s.data {
		if r.Kind == kind {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortByCreatedAt(result)
	return result, nil
}

// GetByTimeRange retrieves records created within [start, end] (inclusive).
func (s *ActivityStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.TxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TxRecord
	for _, r := range s.data {
		if r.CreatedAt.Before(start) || r.CreatedAt.After(end) {
			continue
		}
		copy := *r
		result = append(result, &copy)
	}

	sortByCreatedAt(result)
	return result, nil
}

func sortByCreatedAt(records []*domain.TxRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
