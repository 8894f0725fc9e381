package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/storage"
)

// BalanceTimeseriesStore is an in-memory implementation of
// storage.BalanceTimeseriesStore.
type BalanceTimeseriesStore struct {
	mu   sync.RWMutex
	data map[sampleKey]*domain.BalanceSample
}

type sampleKey struct {
	account     ethereum.Address
	timestampMs int64
}

// NewBalanceTimeseriesStore creates a new in-memory balance timeseries store.
func NewBalanceTimeseriesStore() *BalanceTimeseriesStore {
	return &BalanceTimeseriesStore{
		data: make(map[sampleKey]*domain.BalanceSample),
	}
}

// Compile-time interface check.
var _ storage.BalanceTimeseriesStore = (*BalanceTimeseriesStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate
// (account, timestamp_ms).
func (s *BalanceTimeseriesStore) InsertBulk(_ context.Context, samples []*domain.BalanceSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch).
	batchKeys := make(map[sampleKey]struct{}, len(samples))
	for _, sample := range samples {
		if sample == nil || sample.Account == "" || sample.Balance == nil {
			return storage.ErrInvalidInput
		}

		k := sampleKey{ethereum.NormalizeAddress(sample.Account), sample.TimestampMs}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all.
	for _, sample := range samples {
		k := sampleKey{ethereum.NormalizeAddress(sample.Account), sample.TimestampMs}
		copy := *sample
		copy.Balance = new(big.Int).Set(sample.Balance)
		s.data[k] = &copy
	}

	return nil
}

// GetByAccount retrieves all samples for an account, ordered by timestamp ASC.
func (s *BalanceTimeseriesStore) GetByAccount(_ context.Context, account ethereum.Address) ([]*domain.BalanceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BalanceSample
	for _, sample := range s.data {
		if sample.Account.Equal(account) {
			result = append(result, copySample(sample))
		}
	}

	sortByTimestamp(result)
	return result, nil
}

// GetByTimeRange retrieves samples for an account within [start, end]
// (inclusive, unix milliseconds).
func (s *BalanceTimeseriesStore) GetByTimeRange(_ context.Context, account ethereum.Address, start, end int64) ([]*domain.BalanceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BalanceSample
	for _, sample := range s.data {
		if !sample.Account.Equal(account) {
			continue
		}
		if sample.TimestampMs < start || sample.TimestampMs > end {
			continue
		}
		result = append(result, copySample(sample))
	}

	sortByTimestamp(result)
	return result, nil
}

func copySample(sample *domain.BalanceSample) *domain.BalanceSample {
	copy := *sample
	copy.Balance = new(big.Int).Set(sample.Balance)
	return &copy
}

func sortByTimestamp(samples []*domain.BalanceSample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].TimestampMs < samples[j].TimestampMs
	})
}
