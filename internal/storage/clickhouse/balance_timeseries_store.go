package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/storage"
)

// BalanceTimeseriesStore implements storage.BalanceTimeseriesStore using
// ClickHouse. Balances are stored as decimal strings so raw token units
// survive uint64 overflow. Accounts are stored lowercase.
type BalanceTimeseriesStore struct {
	conn *Conn
}

// NewBalanceTimeseriesStore creates a new BalanceTimeseriesStore.
func NewBalanceTimeseriesStore(conn *Conn) *BalanceTimeseriesStore {
	return &BalanceTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BalanceTimeseriesStore = (*BalanceTimeseriesStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate
// (account, timestamp_ms).
func (s *BalanceTimeseriesStore) InsertBulk(ctx context.Context, samples []*domain.BalanceSample) error {
	if len(samples) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		account     ethereum.Address
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, sample := range samples {
		if sample == nil || sample.Account == "" || sample.Balance == nil {
			return storage.ErrInvalidInput
		}
		k := key{ethereum.NormalizeAddress(sample.Account), sample.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows. MergeTree does not
	// enforce uniqueness at insert time.
	for _, sample := range samples {
		exists, err := s.exists(ctx, ethereum.NormalizeAddress(sample.Account), sample.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO balance_timeseries (
			account, timestamp_ms, block_number, balance
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sample := range samples {
		err = batch.Append(
			string(ethereum.NormalizeAddress(sample.Account)),
			uint64(sample.TimestampMs), sample.BlockNumber,
			sample.Balance.String(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAccount retrieves all samples for an account, ordered by timestamp ASC.
func (s *BalanceTimeseriesStore) GetByAccount(ctx context.Context, account ethereum.Address) ([]*domain.BalanceSample, error) {
	query := `
		SELECT account, timestamp_ms, block_number, balance
		FROM balance_timeseries
		WHERE account = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, string(ethereum.NormalizeAddress(account)))
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanBalanceTimeseries(rows)
}

// GetByTimeRange retrieves samples for an account within [start, end]
// (inclusive, unix milliseconds).
func (s *BalanceTimeseriesStore) GetByTimeRange(ctx context.Context, account ethereum.Address, start, end int64) ([]*domain.BalanceSample, error) {
	query := `
		SELECT account, timestamp_ms, block_number, balance
		FROM balance_timeseries
		WHERE account = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query,
		string(ethereum.NormalizeAddress(account)), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBalanceTimeseries(rows)
}

// exists checks if a sample with the given key exists.
func (s *BalanceTimeseriesStore) exists(ctx context.Context, account ethereum.Address, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM balance_timeseries
		WHERE account = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, string(account), uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanBalanceTimeseries scans multiple rows.
func scanBalanceTimeseries(rows chRows) ([]*domain.BalanceSample, error) {
	var samples []*domain.BalanceSample

	for rows.Next() {
		var sample domain.BalanceSample
		var account, balance string
		var timestampMs uint64

		err := rows.Scan(&account, &timestampMs, &sample.BlockNumber, &balance)
		if err != nil {
			return nil, fmt.Errorf("scan balance timeseries row: %w", err)
		}

		sample.Account = ethereum.Address(account)
		sample.TimestampMs = int64(timestampMs)

		bal, ok := new(big.Int).SetString(balance, 10)
		if !ok {
			return nil, fmt.Errorf("parse stored balance %q", balance)
		}
		sample.Balance = bal

		samples = append(samples, &sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance timeseries rows: %w", err)
	}

	return samples, nil
}
