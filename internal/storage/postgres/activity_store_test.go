package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/storage"
	pgstore "walletzone/internal/storage/postgres"
)

const (
	alice = ethereum.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	bob   = ethereum.Address("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

func testRecord(id string, kind domain.TxKind, account ethereum.Address, createdAt time.Time) *domain.TxRecord {
	return &domain.TxRecord{
		ID:        id,
		Hash:      "0x1111111111111111111111111111111111111111111111111111111111111111",
		Kind:      kind,
		Status:    domain.TxStatusConfirmed,
		Account:   account,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestActivityStore_AppendAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActivityStore(pool)
	ctx := context.Background()

	r := testRecord("r1", domain.TxKindTransfer, alice, time.Now().UTC().Truncate(time.Microsecond))
	r.Error = "transaction failed"
	r.Status = domain.TxStatusFailed
	require.NoError(t, store.Append(ctx, r))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Hash, got.Hash)
	assert.Equal(t, r.Kind, got.Kind)
	assert.Equal(t, r.Status, got.Status)
	assert.Equal(t, r.Error, got.Error)
	assert.True(t, got.Account.Equal(alice))
}

func TestActivityStore_DuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActivityStore(pool)
	ctx := context.Background()

	r := testRecord("r1", domain.TxKindApprove, alice, time.Now())
	require.NoError(t, store.Append(ctx, r))

	err := store.Append(ctx, r)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestActivityStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActivityStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActivityStore_GetByAccount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActivityStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Append(ctx, testRecord("r2", domain.TxKindBuyItem, alice, base.Add(2*time.Second))))
	require.NoError(t, store.Append(ctx, testRecord("r1", domain.TxKindApprove, alice, base)))
	require.NoError(t, store.Append(ctx, testRecord("r3", domain.TxKindMintNFT, bob, base.Add(time.Second))))

	// Checksummed query address still matches the stored lowercase rows.
	result, err := store.GetByAccount(ctx, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, "r1", result[0].ID)
	assert.Equal(t, "r2", result[1].ID)
}

func TestActivityStore_GetByKind(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActivityStore(pool)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Append(ctx, testRecord("r1", domain.TxKindApprove, alice, now)))
	require.NoError(t, store.Append(ctx, testRecord("r2", domain.TxKindBuyTokens, alice, now)))
	require.NoError(t, store.Append(ctx, testRecord("r3", domain.TxKindApprove, bob, now)))

	result, err := store.GetByKind(ctx, domain.TxKindApprove)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestActivityStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActivityStore(pool)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, testRecord("r1", domain.TxKindTransfer, alice, base)))
	require.NoError(t, store.Append(ctx, testRecord("r2", domain.TxKindTransfer, alice, base.Add(10*time.Second))))
	require.NoError(t, store.Append(ctx, testRecord("r3", domain.TxKindTransfer, alice, base.Add(20*time.Second))))

	// Inclusive on both ends.
	result, err := store.GetByTimeRange(ctx, base, base.Add(10*time.Second))
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestActivityStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActivityStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Append(ctx, &domain.TxRecord{}), storage.ErrInvalidInput)
}
