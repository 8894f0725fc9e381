package stub

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"walletzone/internal/ethereum"
)

// Provider implements ethereum.Provider for testing. Read results are
// programmed into maps; contract calls are answered by handlers keyed on
// the 4-byte selector. Every submitted transaction is recorded.
type Provider struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	BlockNumber_ uint64
	AccountsList []ethereum.Address
	Balances     map[ethereum.Address]*big.Int
	Code         map[ethereum.Address][]byte
	Receipts     map[ethereum.Hash]*ethereum.Receipt
	Logs         []ethereum.Log

	// CallHandlers answers eth_call by selector (hex, no 0x prefix).
	CallHandlers map[string]func(msg ethereum.CallMsg) ([]byte, error)

	// SendHandler answers eth_sendTransaction. When nil, submissions
	// get sequential synthetic hashes.
	SendHandler func(tx ethereum.TxRequest) (ethereum.Hash, error)

	// SentTxs records every transaction passed to SendTransaction.
	SentTxs []ethereum.TxRequest

	// Errors force a failure for a given method name.
	Errors map[string]error

	nextHash uint64
}

// Compile-time interface check.
var _ ethereum.Provider = (*Provider)(nil)

// NewProvider creates an empty stub provider.
func NewProvider() *Provider {
	return &Provider{
		ChainIDValue: big.NewInt(1337),
		Balances:     make(map[ethereum.Address]*big.Int),
		Code:         make(map[ethereum.Address][]byte),
		Receipts:     make(map[ethereum.Hash]*ethereum.Receipt),
		CallHandlers: make(map[string]func(msg ethereum.CallMsg) ([]byte, error)),
		Errors:       make(map[string]error),
	}
}

// FailWith forces the named method to return err.
func (p *Provider) FailWith(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Errors[method] = err
}

func (p *Provider) forcedError(method string) error {
	return p.Errors[method]
}

// ChainID returns the programmed chain ID.
func (p *Provider) ChainID(_ context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_chainId"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(p.ChainIDValue), nil
}

// BlockNumber returns the programmed block height.
func (p *Provider) BlockNumber(_ context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_blockNumber"); err != nil {
		return 0, err
	}
	return p.BlockNumber_, nil
}

// Accounts returns the programmed account list.
func (p *Provider) Accounts(_ context.Context) ([]ethereum.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_accounts"); err != nil {
		return nil, err
	}
	return append([]ethereum.Address(nil), p.AccountsList...), nil
}

// RequestAccounts returns the programmed account list, like a wallet
// that auto-approves the connection prompt.
func (p *Provider) RequestAccounts(_ context.Context) ([]ethereum.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_requestAccounts"); err != nil {
		return nil, err
	}
	return append([]ethereum.Address(nil), p.AccountsList...), nil
}

// SetAccounts replaces the exposed account list.
func (p *Provider) SetAccounts(accounts ...ethereum.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AccountsList = append([]ethereum.Address(nil), accounts...)
}

// OnCall registers a handler for eth_call requests whose data starts
// with the given selector.
func (p *Provider) OnCall(selector []byte, fn func(msg ethereum.CallMsg) ([]byte, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallHandlers[hex.EncodeToString(selector)] = fn
}

// ReturnOnCall registers a fixed return value for a selector.
func (p *Provider) ReturnOnCall(selector []byte, ret []byte) {
	p.OnCall(selector, func(ethereum.CallMsg) ([]byte, error) {
		return ret, nil
	})
}

// Call dispatches to the handler registered for the data's selector.
func (p *Provider) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_call"); err != nil {
		return nil, err
	}
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("stub: call data too short")
	}
	fn, ok := p.CallHandlers[hex.EncodeToString(msg.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("stub: no handler for selector 0x%x", msg.Data[:4])
	}
	return fn(msg)
}

// SendTransaction records the transaction and returns a hash. The
// handler runs outside the lock so it may program the stub further.
func (p *Provider) SendTransaction(_ context.Context, tx ethereum.TxRequest) (ethereum.Hash, error) {
	p.mu.Lock()
	if err := p.forcedError("eth_sendTransaction"); err != nil {
		p.mu.Unlock()
		return "", err
	}
	handler := p.SendHandler
	p.mu.Unlock()

	if handler != nil {
		h, err := handler(tx)
		if err != nil {
			return "", err
		}
		p.mu.Lock()
		p.SentTxs = append(p.SentTxs, tx)
		p.mu.Unlock()
		return h, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.SentTxs = append(p.SentTxs, tx)
	p.nextHash++
	return ethereum.Hash(fmt.Sprintf("0x%064x", p.nextHash)), nil
}

// AddReceipt programs the receipt returned for a transaction hash.
func (p *Provider) AddReceipt(r *ethereum.Receipt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Receipts[r.TxHash] = r
}

// TransactionReceipt returns the programmed receipt, or (nil, nil) when
// none is set, matching a still-pending transaction.
func (p *Provider) TransactionReceipt(_ context.Context, h ethereum.Hash) (*ethereum.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	return p.Receipts[h], nil
}

// AddLog appends a log to the stub's log history.
func (p *Provider) AddLog(lg ethereum.Log) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Logs = append(p.Logs, lg)
}

// FilterLogs filters the programmed log history by address and topics.
func (p *Provider) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethereum.Log, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_getLogs"); err != nil {
		return nil, err
	}

	var out []ethereum.Log
	for _, lg := range p.Logs {
		if q.Address != "" && !lg.Address.Equal(q.Address) {
			continue
		}
		if !topicsMatch(lg.Topics, q.Topics) {
			continue
		}
		if q.FromBlock != nil && lg.BlockNumber < *q.FromBlock {
			continue
		}
		if q.ToBlock != nil && lg.BlockNumber > *q.ToBlock {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func topicsMatch(topics []ethereum.Hash, filter []*ethereum.Hash) bool {
	for i, want := range filter {
		if want == nil {
			continue
		}
		if i >= len(topics) || !topics[i].Equal(*want) {
			return false
		}
	}
	return true
}

// SetBalance programs the native balance of an address.
func (p *Provider) SetBalance(addr ethereum.Address, wei *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Balances[ethereum.NormalizeAddress(addr)] = new(big.Int).Set(wei)
}

// BalanceAt returns the programmed balance, zero when unset.
func (p *Provider) BalanceAt(_ context.Context, addr ethereum.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_getBalance"); err != nil {
		return nil, err
	}
	if bal, ok := p.Balances[ethereum.NormalizeAddress(addr)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// CodeAt returns the programmed bytecode, empty when unset.
func (p *Provider) CodeAt(_ context.Context, addr ethereum.Address) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.forcedError("eth_getCode"); err != nil {
		return nil, err
	}
	return p.Code[ethereum.NormalizeAddress(addr)], nil
}
