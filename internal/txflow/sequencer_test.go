package txflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/ethereum/stub"
	"walletzone/internal/txflow"
)

const alice = ethereum.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")

func successReceipt(hash ethereum.Hash) *ethereum.Receipt {
	return &ethereum.Receipt{TxHash: hash, BlockNumber: 1, Status: ethereum.ReceiptStatusSucceeded}
}

func failedReceipt(hash ethereum.Hash) *ethereum.Receipt {
	return &ethereum.Receipt{TxHash: hash, BlockNumber: 1, Status: ethereum.ReceiptStatusFailed}
}

func TestRun_PendingSetImmediatelyAndCleared(t *testing.T) {
	provider := stub.NewProvider()
	const hash = ethereum.Hash("0xabc123")
	provider.SendHandler = func(ethereum.TxRequest) (ethereum.Hash, error) {
		return hash, nil
	}

	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(20*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := seq.Run(context.Background(), domain.TxKindTransfer, alice, func(ctx context.Context) (ethereum.Hash, error) {
			return provider.SendTransaction(ctx, ethereum.TxRequest{From: alice})
		})
		done <- err
	}()

	// The pending slot must carry the hash while the receipt is awaited.
	deadline := time.After(2 * time.Second)
	for {
		if p := seq.Pending(); p != nil && p.Hash != "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pending slot never carried the hash")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if p := seq.Pending(); p.Hash != hash || p.Kind != domain.TxKindTransfer {
		t.Errorf("pending = %+v", p)
	}

	provider.AddReceipt(successReceipt(hash))

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seq.Pending() != nil {
		t.Error("pending slot must be cleared after settlement")
	}
	if seq.LastError() != "" {
		t.Errorf("successful run must not set the error slot, got %q", seq.LastError())
	}
}

func TestRun_MinedWithStatusZeroIsFailure(t *testing.T) {
	provider := stub.NewProvider()
	const hash = ethereum.Hash("0xdead")
	provider.SendHandler = func(ethereum.TxRequest) (ethereum.Hash, error) {
		return hash, nil
	}
	provider.AddReceipt(failedReceipt(hash))

	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(10*time.Millisecond))

	receipt, err := seq.Run(context.Background(), domain.TxKindBuyItem, alice, func(ctx context.Context) (ethereum.Hash, error) {
		return provider.SendTransaction(ctx, ethereum.TxRequest{From: alice})
	})

	if !errors.Is(err, txflow.ErrTxFailed) {
		t.Fatalf("expected ErrTxFailed, got %v", err)
	}
	if receipt == nil || receipt.Succeeded() {
		t.Errorf("failed run must surface the reverted receipt, got %+v", receipt)
	}
	if seq.LastError() != txflow.ErrTxFailed.Error() {
		t.Errorf("error slot = %q", seq.LastError())
	}
	if seq.Pending() != nil {
		t.Error("pending slot must be cleared on failure")
	}
}

func TestRun_UserRejectionIsSilent(t *testing.T) {
	provider := stub.NewProvider()
	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(10*time.Millisecond))

	_, err := seq.Run(context.Background(), domain.TxKindTransfer, alice, func(context.Context) (ethereum.Hash, error) {
		return "", &ethereum.RPCError{Code: 4001, Message: "User rejected the request."}
	})

	if !errors.Is(err, txflow.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if seq.LastError() != "" {
		t.Errorf("rejection must not populate the error slot, got %q", seq.LastError())
	}
	if seq.Pending() != nil {
		t.Error("pending slot must stay clear after rejection")
	}
}

func TestRun_SubmitFailureStoresReason(t *testing.T) {
	provider := stub.NewProvider()
	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(10*time.Millisecond))

	_, err := seq.Run(context.Background(), domain.TxKindTransfer, alice, func(context.Context) (ethereum.Hash, error) {
		return "", &ethereum.RPCError{
			Code:    -32603,
			Message: "Internal JSON-RPC error.",
			Data:    &ethereum.RPCErrorData{Message: "Not enough tokens"},
		}
	})

	if err == nil {
		t.Fatal("expected error")
	}
	// The slot holds the human-readable reason, not the outer message.
	if seq.LastError() != "Not enough tokens" {
		t.Errorf("error slot = %q", seq.LastError())
	}
}

func TestRun_NewRunDismissesPreviousError(t *testing.T) {
	provider := stub.NewProvider()
	const hash = ethereum.Hash("0xaa")
	provider.AddReceipt(successReceipt(hash))

	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(10*time.Millisecond))
	ctx := context.Background()

	_, _ = seq.Run(ctx, domain.TxKindTransfer, alice, func(context.Context) (ethereum.Hash, error) {
		return "", errors.New("boom")
	})
	if seq.LastError() == "" {
		t.Fatal("expected error slot to be set")
	}

	_, err := seq.Run(ctx, domain.TxKindTransfer, alice, func(context.Context) (ethereum.Hash, error) {
		return hash, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seq.LastError() != "" {
		t.Errorf("new run must clear the previous error, got %q", seq.LastError())
	}
}

func TestRun_SingleInFlight(t *testing.T) {
	provider := stub.NewProvider()
	const hash = ethereum.Hash("0xbb")
	provider.SendHandler = func(ethereum.TxRequest) (ethereum.Hash, error) {
		return hash, nil
	}

	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(20*time.Millisecond))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		seq.Run(ctx, domain.TxKindTransfer, alice, func(ctx context.Context) (ethereum.Hash, error) {
			return provider.SendTransaction(ctx, ethereum.TxRequest{From: alice})
		})
	}()

	deadline := time.After(2 * time.Second)
	for seq.Pending() == nil {
		select {
		case <-deadline:
			t.Fatal("pending slot never set")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := seq.Run(ctx, domain.TxKindBuyItem, alice, func(context.Context) (ethereum.Hash, error) {
		t.Error("second submission must never reach the wallet")
		return "", nil
	})
	if !errors.Is(err, txflow.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	provider.AddReceipt(successReceipt(hash))
	wg.Wait()
}

func TestRun_BusyWhileSigning(t *testing.T) {
	provider := stub.NewProvider()
	const hash = ethereum.Hash("0xdd")
	provider.AddReceipt(successReceipt(hash))

	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(10*time.Millisecond))
	ctx := context.Background()

	signing := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := seq.Run(ctx, domain.TxKindTransfer, alice, func(context.Context) (ethereum.Hash, error) {
			close(signing)
			<-release
			return hash, nil
		})
		done <- err
	}()

	// The first submission is still inside the wallet prompt; the
	// sequencer must already be busy.
	<-signing
	_, err := seq.Run(ctx, domain.TxKindBuyItem, alice, func(context.Context) (ethereum.Hash, error) {
		t.Error("second submission must never reach the wallet")
		return "", nil
	})
	if !errors.Is(err, txflow.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seq.Pending() != nil {
		t.Error("pending slot must be cleared after settlement")
	}
	if seq.LastError() != "" {
		t.Errorf("rejected second run must not touch the error slot, got %q", seq.LastError())
	}
}

func TestWaitMined_SurvivesTransientPollErrors(t *testing.T) {
	provider := stub.NewProvider()
	const hash = ethereum.Hash("0xcc")
	provider.FailWith("eth_getTransactionReceipt", errors.New("flaky provider"))

	seq := txflow.NewSequencer(provider, txflow.WithPollInterval(10*time.Millisecond))

	done := make(chan struct{})
	go func() {
		defer close(done)
		receipt, err := seq.WaitMined(context.Background(), hash)
		if err != nil {
			t.Errorf("WaitMined: %v", err)
			return
		}
		if receipt.TxHash != hash {
			t.Errorf("receipt hash = %s", receipt.TxHash)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	provider.FailWith("eth_getTransactionReceipt", nil)
	provider.AddReceipt(successReceipt(hash))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitMined never recovered")
	}
}

type memJournal struct {
	mu      sync.Mutex
	records []domain.TxRecord
}

func (j *memJournal) Append(_ context.Context, rec *domain.TxRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, *rec)
	return nil
}

func TestRun_JournalsOutcomes(t *testing.T) {
	provider := stub.NewProvider()
	journal := &memJournal{}
	seq := txflow.NewSequencer(provider,
		txflow.WithPollInterval(10*time.Millisecond),
		txflow.WithJournal(journal),
	)
	ctx := context.Background()

	// Confirmed.
	okHash := ethereum.Hash("0x01")
	provider.AddReceipt(successReceipt(okHash))
	if _, err := seq.Run(ctx, domain.TxKindTransfer, alice, func(context.Context) (ethereum.Hash, error) {
		return okHash, nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Rejected.
	seq.Run(ctx, domain.TxKindBuyItem, alice, func(context.Context) (ethereum.Hash, error) {
		return "", &ethereum.RPCError{Code: 4001, Message: "User rejected the request."}
	})

	// Reverted.
	badHash := ethereum.Hash("0x02")
	provider.AddReceipt(failedReceipt(badHash))
	seq.Run(ctx, domain.TxKindSellTokens, alice, func(context.Context) (ethereum.Hash, error) {
		return badHash, nil
	})

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.records) != 3 {
		t.Fatalf("expected 3 journal records, got %d", len(journal.records))
	}

	byStatus := map[domain.TxStatus]domain.TxRecord{}
	for _, r := range journal.records {
		if r.ID == "" {
			t.Error("journal record without ID")
		}
		byStatus[r.Status] = r
	}

	if r := byStatus[domain.TxStatusConfirmed]; r.Hash != okHash || r.Kind != domain.TxKindTransfer {
		t.Errorf("confirmed record = %+v", r)
	}
	if r := byStatus[domain.TxStatusRejected]; r.Hash != "" || r.Error != "" {
		t.Errorf("rejected record must carry no hash or error, got %+v", r)
	}
	if r := byStatus[domain.TxStatusFailed]; r.Hash != badHash || r.Error == "" {
		t.Errorf("failed record = %+v", r)
	}
}

func TestRun_WaitFailureJournalMatchesErrorSlot(t *testing.T) {
	provider := stub.NewProvider()
	journal := &memJournal{}
	const hash = ethereum.Hash("0xee")
	// No receipt ever arrives; cancellation is the only way out.
	seq := txflow.NewSequencer(provider,
		txflow.WithPollInterval(10*time.Millisecond),
		txflow.WithJournal(journal),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		seq.Run(ctx, domain.TxKindTransfer, alice, func(context.Context) (ethereum.Hash, error) {
			return hash, nil
		})
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(journal.records))
	}
	r := journal.records[0]
	if r.Status != domain.TxStatusFailed || r.Hash != hash {
		t.Errorf("record = %+v", r)
	}
	if r.Error != seq.LastError() {
		t.Errorf("journal error %q must match the error slot %q", r.Error, seq.LastError())
	}
}
