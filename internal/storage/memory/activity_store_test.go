package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/storage"
)

const (
	alice = ethereum.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	bob   = ethereum.Address("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

func record(id string, kind domain.TxKind, account ethereum.Address, createdAt time.Time) *domain.TxRecord {
	return &domain.TxRecord{
		ID:        id,
		Hash:      "0xabc",
		Kind:      kind,
		Status:    domain.TxStatusConfirmed,
		Account:   account,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestActivityStore_AppendAndGet(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	r := record("r1", domain.TxKindTransfer, alice, time.Now())
	if err := store.Append(ctx, r); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Kind != domain.TxKindTransfer || !got.Account.Equal(alice) {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestActivityStore_DuplicateID(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	r := record("r1", domain.TxKindApprove, alice, time.Now())
	if err := store.Append(ctx, r); err != nil {
		t.Fatalf("First append failed: %v", err)
	}

	err := store.Append(ctx, r)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestActivityStore_InvalidInput(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	if err := store.Append(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil record, got %v", err)
	}
	if err := store.Append(ctx, &domain.TxRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}

func TestActivityStore_NotFound(t *testing.T) {
	store := NewActivityStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestActivityStore_GetByAccountOrdered(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	base := time.Now()
	// Inserted out of order; queries return created_at ASC.
	must(t, store.Append(ctx, record("r2", domain.TxKindBuyItem, alice, base.Add(2*time.Second))))
	must(t, store.Append(ctx, record("r1", domain.TxKindApprove, alice, base)))
	must(t, store.Append(ctx, record("r3", domain.TxKindMintNFT, bob, base.Add(time.Second))))

	result, err := store.GetByAccount(ctx, alice)
	if err != nil {
		t.Fatalf("GetByAccount failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(result))
	}
	if result[0].ID != "r1" || result[1].ID != "r2" {
		t.Errorf("wrong order: %s, %s", result[0].ID, result[1].ID)
	}
}

func TestActivityStore_GetByAccountCaseInsensitive(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	must(t, store.Append(ctx, record("r1", domain.TxKindTransfer, alice, time.Now())))

	result, err := store.GetByAccount(ctx, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if err != nil {
		t.Fatalf("GetByAccount failed: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("Expected 1 record for checksummed address, got %d", len(result))
	}
}

func TestActivityStore_GetByKind(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	must(t, store.Append(ctx, record("r1", domain.TxKindApprove, alice, time.Now())))
	must(t, store.Append(ctx, record("r2", domain.TxKindBuyItem, alice, time.Now())))
	must(t, store.Append(ctx, record("r3", domain.TxKindApprove, bob, time.Now())))

	result, err := store.GetByKind(ctx, domain.TxKindApprove)
	if err != nil {
		t.Fatalf("GetByKind failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 approve records, got %d", len(result))
	}
}

func TestActivityStore_GetByTimeRange(t *testing.T) {
	store := NewActivityStore()
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	must(t, store.Append(ctx, record("r1", domain.TxKindTransfer, alice, base)))
	must(t, store.Append(ctx, record("r2", domain.TxKindTransfer, alice, base.Add(10*time.Second))))
	must(t, store.Append(ctx, record("r3", domain.TxKindTransfer, alice, base.Add(20*time.Second))))

	// Inclusive on both ends.
	result, err := store.GetByTimeRange(ctx, base, base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 records, got %d", len(result))
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
