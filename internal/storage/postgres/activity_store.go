package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/storage"
)

// ActivityStore implements storage.ActivityStore using PostgreSQL.
// Accounts are stored normalized to lowercase so lookups are
// case-insensitive.
type ActivityStore struct {
	pool *Pool
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(pool *Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Append adds a new record. Returns ErrDuplicateKey if the record ID exists.
func (s *ActivityStore) Append(ctx context.Context, r *domain.TxRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tx_activity (
			id, tx_hash, kind, status, account, error, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID, string(r.Hash), string(r.Kind), string(r.Status),
		string(ethereum.NormalizeAddress(r.Account)), r.Error,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert activity record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *ActivityStore) GetByID(ctx context.Context, id string) (*domain.TxRecord, error) {
	query := `
		SELECT id, tx_hash, kind, status, account, error, created_at, updated_at
		FROM tx_activity
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	r, err := scanTxRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get activity record by id: %w", err)
	}
	return r, nil
}

// GetByAccount retrieves all records for an account, ordered by created_at ASC.
func (s *ActivityStore) GetByAccount(ctx context.Context, account ethereum.Address) ([]*domain.TxRecord, error) {
	query := `
		SELECT id, tx_hash, kind, status, account, error, created_at, updated_at
		FROM tx_activity
		WHERE account = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(ethereum.NormalizeAddress(account)))
	if err != nil {
		return nil, fmt.Errorf("get activity records by account: %w", err)
	}
	defer rows.Close()

	return scanTxRecords(rows)
}

// GetByKind retrieves all records of a given kind, ordered by created_at ASC.
func (s *ActivityStore) GetByKind(ctx context.Context, kind domain.TxKind) ([]*domain.TxRecord, error) {
	query := `
		SELECT id, tx_hash, kind, status, account, error, created_at, updated_at
		FROM tx_activity
		WHERE kind = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("get activity records by kind: %w", err)
	}
	defer rows.Close()

	return scanTxRecords(rows)
}

// GetByTimeRange retrieves records created within [start, end] (inclusive).
func (s *ActivityStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.TxRecord, error) {
	query := `
		SELECT id, tx_hash, kind, status, account, error, created_at, updated_at
		FROM tx_activity
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get activity records by time range: %w", err)
	}
	defer rows.Close()

	return scanTxRecords(rows)
}

// scanTxRecord scans a single row into a TxRecord.
func scanTxRecord(row pgx.Row) (*domain.TxRecord, error) {
	var r domain.TxRecord
	var hash, kind, status, account string

	err := row.Scan(&r.ID, &hash, &kind, &status, &account, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Hash = ethereum.Hash(hash)
	r.Kind = domain.TxKind(kind)
	r.Status = domain.TxStatus(status)
	r.Account = ethereum.Address(account)
	return &r, nil
}

// scanTxRecords scans multiple rows into a slice of TxRecord.
func scanTxRecords(rows pgx.Rows) ([]*domain.TxRecord, error) {
	var records []*domain.TxRecord

	for rows.Next() {
		r, err := scanTxRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity record rows: %w", err)
	}

	return records, nil
}
