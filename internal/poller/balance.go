// Package poller samples on-chain state on a fixed interval: the first
// read happens immediately on start, failures skip a tick without
// stopping the loop, and an explicit Stop ends it.
package poller

import (
	"context"
	"log"
	"math/big"
	"sync"
	"time"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
)

// DefaultInterval is the balance refresh cadence.
const DefaultInterval = 1 * time.Second

// TokenReader is the slice of the token binding the poller needs.
type TokenReader interface {
	BalanceOf(ctx context.Context, owner ethereum.Address) (*big.Int, error)
}

// BalancePoller periodically reads one account's token balance.
type BalancePoller struct {
	token    TokenReader
	provider ethereum.Provider // optional, stamps samples with a block number
	account  ethereum.Address
	interval time.Duration
	onError  func(error)
	verbose  bool

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// PollerOption configures a BalancePoller.
type PollerOption func(*BalancePoller)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *BalancePoller) {
		p.interval = d
	}
}

// WithBlockNumbers stamps each sample with the provider's latest block.
func WithBlockNumbers(provider ethereum.Provider) PollerOption {
	return func(p *BalancePoller) {
		p.provider = provider
	}
}

// WithErrorHook invokes fn for every failed poll. Failed polls are
// otherwise invisible to the caller; the hook feeds error metrics.
func WithErrorHook(fn func(error)) PollerOption {
	return func(p *BalancePoller) {
		p.onError = fn
	}
}

// WithPollerVerbose enables per-failure logging.
func WithPollerVerbose(v bool) PollerOption {
	return func(p *BalancePoller) {
		p.verbose = v
	}
}

// NewBalancePoller creates a poller for account's balance.
func NewBalancePoller(token TokenReader, account ethereum.Address, opts ...PollerOption) *BalancePoller {
	p := &BalancePoller{
		token:    token,
		account:  account,
		interval: DefaultInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the poll loop and returns its sample channel. The
// first fetch fires immediately, not one interval in. The channel
// closes when Stop is called or ctx ends.
func (p *BalancePoller) Start(ctx context.Context) <-chan domain.BalanceSample {
	out := make(chan domain.BalanceSample, 16)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(out)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			p.pollOnce(ctx, out)

			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

// pollOnce performs one read and emits the sample. A failed read is
// logged and skipped; the next tick tries again.
func (p *BalancePoller) pollOnce(ctx context.Context, out chan<- domain.BalanceSample) {
	balance, err := p.token.BalanceOf(ctx, p.account)
	if err != nil {
		if p.verbose {
			log.Printf("[poller] balance of %s: %v", p.account, err)
		}
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	sample := domain.BalanceSample{
		Account:     p.account,
		Balance:     balance,
		TimestampMs: time.Now().UnixMilli(),
	}

	if p.provider != nil {
		if block, err := p.provider.BlockNumber(ctx); err == nil {
			sample.BlockNumber = block
		}
	}

	select {
	case out <- sample:
	case <-ctx.Done():
	case <-p.done:
	}
}

// Stop ends the poll loop. Idempotent; tied to the session lifecycle so
// an account switch stops the old poller before a new one starts.
func (p *BalancePoller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
