// Package wallet manages the connected account: a single observable
// session restored from disk, plus key generation for new wallets.
package wallet

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"walletzone/internal/ethereum"
)

// DefaultWatchInterval is how often the watcher re-reads eth_accounts to
// catch account switches made in the wallet itself.
const DefaultWatchInterval = 2 * time.Second

// Session is the process-wide wallet session. At most one account is
// active at a time; subscribers observe every change, including
// disconnects (delivered as the empty address).
type Session struct {
	provider ethereum.Provider
	store    SessionStore

	mu      sync.RWMutex
	current ethereum.Address
	subs    map[uint64]chan ethereum.Address
	nextSub uint64

	watchOnce   sync.Once
	watchCancel context.CancelFunc
	done        chan struct{}
	wg          sync.WaitGroup

	verbose bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithVerbose enables per-change logging.
func WithVerbose(v bool) SessionOption {
	return func(s *Session) {
		s.verbose = v
	}
}

// NewSession creates a session persisting through store.
func NewSession(provider ethereum.Provider, store SessionStore, opts ...SessionOption) *Session {
	s := &Session{
		provider: provider,
		store:    store,
		subs:     make(map[uint64]chan ethereum.Address),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted account and re-validates it against the
// provider's current account list. A stale session is cleared rather
// than trusted.
func (s *Session) Restore(ctx context.Context) (ethereum.Address, error) {
	saved, err := s.store.Load()
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if saved == "" {
		return "", nil
	}

	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("verify session: %w", err)
	}
	for _, a := range accounts {
		if a.Equal(saved) {
			s.setAccount(saved, false)
			if s.verbose {
				log.Printf("[session] restored account %s", saved)
			}
			return saved, nil
		}
	}

	// The wallet no longer exposes the saved account.
	if err := s.store.Clear(); err != nil {
		return "", fmt.Errorf("clear stale session: %w", err)
	}
	if s.verbose {
		log.Printf("[session] dropped stale account %s", saved)
	}
	return "", nil
}

// Connect prompts the wallet for access and activates the first granted
// account. A user rejection surfaces unchanged so callers can treat it
// as a silent outcome.
func (s *Session) Connect(ctx context.Context) (ethereum.Address, error) {
	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("wallet granted no accounts")
	}

	account := accounts[0]
	s.setAccount(account, true)
	if s.verbose {
		log.Printf("[session] connected account %s", account)
	}
	return account, nil
}

// Disconnect clears the active account and the persisted session.
func (s *Session) Disconnect() error {
	s.setAccount("", false)
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if s.verbose {
		log.Printf("[session] disconnected")
	}
	return nil
}

// Current returns the active account, or "" when disconnected.
func (s *Session) Current() ethereum.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Connected reports whether an account is active.
func (s *Session) Connected() bool {
	return s.Current() != ""
}

// Subscribe registers for account-change notifications. The returned
// cancel function unregisters and closes the channel.
func (s *Session) Subscribe() (<-chan ethereum.Address, func()) {
	ch := make(chan ethereum.Address, 16)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// setAccount updates the active account, persists the change when
// persist is set, and notifies subscribers. Setting the same account
// again is a no-op.
func (s *Session) setAccount(account ethereum.Address, persist bool) {
	s.mu.Lock()
	if s.current.Equal(account) {
		s.mu.Unlock()
		return
	}
	s.current = account

	// Non-blocking fan-out under the lock: a subscriber that stopped
	// draining its buffer forfeits further notifications.
	for _, ch := range s.subs {
		select {
		case ch <- account:
		default:
		}
	}
	s.mu.Unlock()

	if persist && account != "" {
		if err := s.store.Save(account); err != nil {
			log.Printf("[session] save session: %v", err)
		}
	}
}

// Watch starts a background poll of eth_accounts that detects account
// switches or disconnects made in the wallet itself. Safe to call once;
// Close stops it.
func (s *Session) Watch(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	s.watchOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel

		s.wg.Add(1)
		go s.watchLoop(ctx, interval)
	})
}

func (s *Session) watchLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}

		// Only meaningful while connected; an explicit Connect is
		// required to go from disconnected to connected.
		current := s.Current()
		if current == "" {
			continue
		}

		accounts, err := s.provider.Accounts(ctx)
		if err != nil {
			if s.verbose {
				log.Printf("[session] watch accounts: %v", err)
			}
			continue
		}

		if len(accounts) == 0 {
			if s.verbose {
				log.Printf("[session] wallet disconnected externally")
			}
			s.setAccount("", false)
			if err := s.store.Clear(); err != nil {
				log.Printf("[session] clear session: %v", err)
			}
			continue
		}

		if !accounts[0].Equal(current) {
			if s.verbose {
				log.Printf("[session] account switched to %s", accounts[0])
			}
			s.setAccount(accounts[0], true)
		}
	}
}

// Close stops the watcher and closes all subscriber channels.
func (s *Session) Close() {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return
	default:
	}
	close(s.done)
	if s.watchCancel != nil {
		s.watchCancel()
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
