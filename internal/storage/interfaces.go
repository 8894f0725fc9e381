package storage

import (
	"context"
	"time"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
)

// ActivityStore provides access to the transaction activity journal.
// The journal is append-only: every settled submission produces exactly
// one record and records are never updated afterwards.
type ActivityStore interface {
	// Append adds a new record. Returns ErrDuplicateKey if the record ID exists.
	Append(ctx context.Context, r *domain.TxRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TxRecord, error)

	// GetByAccount retrieves all records for an account, ordered by created_at ASC.
	GetByAccount(ctx context.Context, account ethereum.Address) ([]*domain.TxRecord, error)

	// GetByKind retrieves all records of a given kind, ordered by created_at ASC.
	GetByKind(ctx context.Context, kind domain.TxKind) ([]*domain.TxRecord, error)

	// GetByTimeRange retrieves records created within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.TxRecord, error)
}

// BalanceTimeseriesStore provides access to balance_timeseries storage.
type BalanceTimeseriesStore interface {
	// InsertBulk adds multiple samples. Fails entire batch on duplicate
	// (account, timestamp_ms).
	InsertBulk(ctx context.Context, samples []*domain.BalanceSample) error

	// GetByAccount retrieves all samples for an account, ordered by timestamp ASC.
	GetByAccount(ctx context.Context, account ethereum.Address) ([]*domain.BalanceSample, error)

	// GetByTimeRange retrieves samples for an account within [start, end]
	// (inclusive, unix milliseconds).
	GetByTimeRange(ctx context.Context, account ethereum.Address, start, end int64) ([]*domain.BalanceSample, error)
}
