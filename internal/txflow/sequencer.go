// Package txflow serializes wallet transactions: one in-flight
// transaction at a time, receipts polled to completion, and a single
// last-error slot for display. A mined receipt with status 0 is a
// failure; a user rejection is a silent outcome.
package txflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
)

// DefaultPollInterval is how often a pending transaction's receipt is
// re-requested.
const DefaultPollInterval = 1 * time.Second

// Sentinel outcomes.
var (
	// ErrRejected means the user dismissed the wallet prompt. It never
	// populates the error slot.
	ErrRejected = errors.New("transaction rejected by user")

	// ErrBusy means another transaction is still in flight.
	ErrBusy = errors.New("a transaction is already in flight")

	// ErrTxFailed means the transaction mined but reverted.
	ErrTxFailed = errors.New("transaction failed")
)

// PendingTx describes the transaction currently in flight.
type PendingTx struct {
	Hash ethereum.Hash
	Kind domain.TxKind
}

// Journal receives one record per settled submission. Implemented by
// the storage ActivityStore; nil disables journaling.
type Journal interface {
	Append(ctx context.Context, rec *domain.TxRecord) error
}

// Sequencer owns the submit-wait-settle lifecycle.
type Sequencer struct {
	provider ethereum.Provider
	interval time.Duration
	journal  Journal
	verbose  bool

	mu      sync.Mutex
	pending *PendingTx
	lastErr string
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithPollInterval overrides the receipt poll interval.
func WithPollInterval(d time.Duration) SequencerOption {
	return func(s *Sequencer) {
		s.interval = d
	}
}

// WithJournal records every settled submission to the given journal.
func WithJournal(j Journal) SequencerOption {
	return func(s *Sequencer) {
		s.journal = j
	}
}

// WithVerbose enables per-transaction logging.
func WithVerbose(v bool) SequencerOption {
	return func(s *Sequencer) {
		s.verbose = v
	}
}

// NewSequencer creates a sequencer over the provider.
func NewSequencer(provider ethereum.Provider, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		provider: provider,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending returns the in-flight transaction, or nil.
func (s *Sequencer) Pending() *PendingTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// LastError returns the displayable message of the most recent failure,
// or "" when none is held.
func (s *Sequencer) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DismissError clears the error slot.
func (s *Sequencer) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
}

// Run submits a transaction via send and waits for it to mine. The
// pending slot is claimed before send runs, since a wallet signature
// prompt can hold the submission open for a long time; it carries the
// hash as soon as the provider accepts the submission and is cleared on
// every exit path. Outcomes:
//   - user rejection: ErrRejected, error slot untouched
//   - submission or receipt failure: error stored in the slot
//   - mined with status 0: ErrTxFailed, stored in the slot
func (s *Sequencer) Run(ctx context.Context, kind domain.TxKind, from ethereum.Address, send func(ctx context.Context) (ethereum.Hash, error)) (*ethereum.Receipt, error) {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.pending = &PendingTx{Kind: kind}
	// Starting a new transaction dismisses the previous failure.
	s.lastErr = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	}()

	hash, err := send(ctx)
	if err != nil {
		if ethereum.IsUserRejected(err) {
			// The user changed their mind. Not an error.
			if s.verbose {
				log.Printf("[txflow] %s rejected by user", kind)
			}
			s.record(ctx, kind, from, "", domain.TxStatusRejected, "")
			return nil, ErrRejected
		}
		s.storeError(err)
		s.record(ctx, kind, from, "", domain.TxStatusFailed, ethereum.Reason(err))
		return nil, fmt.Errorf("submit %s: %w", kind, err)
	}

	s.mu.Lock()
	s.pending.Hash = hash
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[txflow] %s submitted: %s", kind, hash)
	}

	receipt, err := s.WaitMined(ctx, hash)
	if err != nil {
		s.storeError(err)
		s.record(ctx, kind, from, hash, domain.TxStatusFailed, ethereum.Reason(err))
		return nil, fmt.Errorf("wait for %s: %w", kind, err)
	}

	if !receipt.Succeeded() {
		// Mined, but the EVM reverted it.
		s.storeError(ErrTxFailed)
		s.record(ctx, kind, from, hash, domain.TxStatusFailed, ErrTxFailed.Error())
		return receipt, ErrTxFailed
	}

	if s.verbose {
		log.Printf("[txflow] %s confirmed in block %d", kind, receipt.BlockNumber)
	}
	s.record(ctx, kind, from, hash, domain.TxStatusConfirmed, "")
	return receipt, nil
}

// WaitMined polls the receipt until the transaction mines or ctx ends.
// Transient poll errors are logged and retried on the next tick.
func (s *Sequencer) WaitMined(ctx context.Context, hash ethereum.Hash) (*ethereum.Receipt, error) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		receipt, err := s.provider.TransactionReceipt(ctx, hash)
		if err != nil {
			if s.verbose {
				log.Printf("[txflow] poll receipt %s: %v", hash, err)
			}
		} else if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sequencer) storeError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ethereum.Reason(err)
}

// record appends one settled entry to the journal.
func (s *Sequencer) record(ctx context.Context, kind domain.TxKind, from ethereum.Address, hash ethereum.Hash, status domain.TxStatus, errMsg string) {
	if s.journal == nil {
		return
	}
	now := time.Now().UTC()
	rec := &domain.TxRecord{
		ID:        uuid.NewString(),
		Hash:      hash,
		Kind:      kind,
		Status:    status,
		Account:   from,
		Error:     errMsg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.journal.Append(ctx, rec); err != nil {
		log.Printf("[txflow] journal append: %v", err)
	}
}
