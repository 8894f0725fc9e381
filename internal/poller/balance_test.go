package poller

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"walletzone/internal/ethereum"
)

const alice = ethereum.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")

type fakeToken struct {
	calls   atomic.Int64
	balance atomic.Int64
	failN   atomic.Int64 // fail this many leading calls
}

func (f *fakeToken) BalanceOf(context.Context, ethereum.Address) (*big.Int, error) {
	n := f.calls.Add(1)
	if n <= f.failN.Load() {
		return nil, errors.New("provider down")
	}
	return big.NewInt(f.balance.Load()), nil
}

func TestBalancePoller_ImmediateFirstFetch(t *testing.T) {
	token := &fakeToken{}
	token.balance.Store(500)

	// A long interval proves the first sample does not wait for a tick.
	p := NewBalancePoller(token, alice, WithInterval(time.Hour))
	defer p.Stop()

	samples := p.Start(context.Background())

	select {
	case s := <-samples:
		if s.Balance.Int64() != 500 {
			t.Errorf("Balance = %s", s.Balance)
		}
		if !s.Account.Equal(alice) {
			t.Errorf("Account = %s", s.Account)
		}
		if s.TimestampMs == 0 {
			t.Error("sample must carry a timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("first sample must be immediate, not one interval in")
	}
}

func TestBalancePoller_RepeatsOnInterval(t *testing.T) {
	token := &fakeToken{}
	token.balance.Store(7)

	p := NewBalancePoller(token, alice, WithInterval(10*time.Millisecond))
	defer p.Stop()

	samples := p.Start(context.Background())

	for i := 0; i < 3; i++ {
		select {
		case <-samples:
		case <-time.After(time.Second):
			t.Fatalf("sample %d never arrived", i)
		}
	}
}

func TestBalancePoller_FailedPollDoesNotStopLoop(t *testing.T) {
	token := &fakeToken{}
	token.balance.Store(42)
	token.failN.Store(2) // first two reads fail

	p := NewBalancePoller(token, alice, WithInterval(10*time.Millisecond))
	defer p.Stop()

	samples := p.Start(context.Background())

	select {
	case s := <-samples:
		if s.Balance.Int64() != 42 {
			t.Errorf("Balance = %s", s.Balance)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never recovered from failed polls")
	}

	if token.calls.Load() < 3 {
		t.Errorf("expected at least 3 attempts, got %d", token.calls.Load())
	}
}

func TestBalancePoller_StopClosesChannel(t *testing.T) {
	token := &fakeToken{}
	p := NewBalancePoller(token, alice, WithInterval(10*time.Millisecond))

	samples := p.Start(context.Background())

	// Drain a couple of samples, then stop.
	<-samples
	p.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-samples:
			if !ok {
				return // closed, as required
			}
		case <-deadline:
			t.Fatal("channel never closed after Stop")
		}
	}
}

func TestBalancePoller_StopIsIdempotent(t *testing.T) {
	token := &fakeToken{}
	p := NewBalancePoller(token, alice, WithInterval(10*time.Millisecond))
	p.Start(context.Background())

	p.Stop()
	p.Stop()
}

func TestBalancePoller_ContextCancelStops(t *testing.T) {
	token := &fakeToken{}
	p := NewBalancePoller(token, alice, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	samples := p.Start(ctx)
	<-samples
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-samples:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed after context cancel")
		}
	}
}

func TestBalancePoller_ErrorHookSeesFailedPolls(t *testing.T) {
	token := &fakeToken{}
	token.balance.Store(42)
	token.failN.Store(2) // first two reads fail

	var hookCalls atomic.Int64
	p := NewBalancePoller(token, alice,
		WithInterval(10*time.Millisecond),
		WithErrorHook(func(err error) {
			if err == nil {
				t.Error("hook must never receive a nil error")
			}
			hookCalls.Add(1)
		}),
	)
	defer p.Stop()

	samples := p.Start(context.Background())

	select {
	case <-samples:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never recovered from failed polls")
	}

	if hookCalls.Load() != 2 {
		t.Errorf("expected 2 hook calls, got %d", hookCalls.Load())
	}
}
