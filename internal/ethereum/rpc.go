package ethereum

import (
	"context"
	"math/big"
)

// Provider defines the JSON-RPC surface a wallet provider exposes to the
// toolkit. Implemented by HTTPClient and by stub.Provider in tests.
type Provider interface {
	// ChainID returns the chain identifier (eth_chainId).
	ChainID(ctx context.Context) (*big.Int, error)

	// BlockNumber returns the latest block number (eth_blockNumber).
	BlockNumber(ctx context.Context) (uint64, error)

	// Accounts returns the accounts the provider currently exposes
	// without prompting the user (eth_accounts). Empty when disconnected.
	Accounts(ctx context.Context) ([]Address, error)

	// RequestAccounts prompts the user to connect and returns the
	// granted accounts (eth_requestAccounts). A user dismissal surfaces
	// as an RPCError satisfying IsUserRejected.
	RequestAccounts(ctx context.Context) ([]Address, error)

	// Call executes a read-only contract call at the latest block.
	Call(ctx context.Context, msg CallMsg) ([]byte, error)

	// SendTransaction submits a transaction for signing and broadcast,
	// returning its hash as soon as the provider accepts it.
	SendTransaction(ctx context.Context, tx TxRequest) (Hash, error)

	// TransactionReceipt returns the receipt for a mined transaction,
	// or (nil, nil) while the transaction is still pending.
	TransactionReceipt(ctx context.Context, h Hash) (*Receipt, error)

	// FilterLogs returns historical logs matching the query (eth_getLogs).
	FilterLogs(ctx context.Context, q FilterQuery) ([]Log, error)

	// BalanceAt returns the native balance of an address in wei.
	BalanceAt(ctx context.Context, addr Address) (*big.Int, error)

	// CodeAt returns the bytecode deployed at an address. Empty for
	// externally owned accounts.
	CodeAt(ctx context.Context, addr Address) ([]byte, error)
}

// CallMsg describes a read-only contract call.
type CallMsg struct {
	From Address // optional
	To   Address
	Data []byte
}

// TxRequest describes a transaction to be signed by the wallet provider.
type TxRequest struct {
	From  Address
	To    Address
	Value *big.Int // wei, nil for zero
	Data  []byte
}

// FilterQuery selects logs for eth_getLogs. Nil block bounds mean the
// full chain history; a nil topic entry matches any value at that
// position.
type FilterQuery struct {
	FromBlock *uint64
	ToBlock   *uint64
	Address   Address
	Topics    []*Hash
}

// Log is an emitted contract event.
type Log struct {
	Address     Address
	Topics      []Hash
	Data        []byte
	BlockNumber uint64
	TxHash      Hash
	LogIndex    uint64
	Removed     bool
}

// Receipt transaction statuses. A mined transaction with status 0
// reverted and must be treated as a failure.
const (
	ReceiptStatusFailed    = uint64(0)
	ReceiptStatusSucceeded = uint64(1)
)

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash          Hash
	BlockNumber     uint64
	Status          uint64
	GasUsed         uint64
	ContractAddress Address // set on contract creation
	Logs            []Log
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptStatusSucceeded
}
