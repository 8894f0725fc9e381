// Package domain holds the plain data types shared across the toolkit.
package domain

import (
	"math/big"
	"time"

	"walletzone/internal/ethereum"
)

// NFTMetadata is the off-chain metadata resolved from a token URI.
// All fields are best-effort; a fetch failure leaves them empty.
type NFTMetadata struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// NFTItem is one token of the collection with its authoritative on-chain
// state and any resolved metadata.
type NFTItem struct {
	TokenID  *big.Int
	Owner    ethereum.Address
	TokenURI string
	Metadata NFTMetadata
}

// Listing is one marketplace entry. Exactly one NFT backs each listing.
type Listing struct {
	ItemID  *big.Int
	TokenID *big.Int
	Seller  ethereum.Address
	Price   *big.Int // token units
	Active  bool
}

// TxKind classifies a submitted transaction by the flow that produced it.
type TxKind string

// Transaction kinds.
const (
	TxKindApprove     TxKind = "approve"
	TxKindTransfer    TxKind = "transfer"
	TxKindTransferNFT TxKind = "transfer_nft"
	TxKindMintNFT     TxKind = "mint_nft"
	TxKindListItem    TxKind = "list_item"
	TxKindBuyItem     TxKind = "buy_item"
	TxKindCancelItem  TxKind = "cancel_item"
	TxKindBuyTokens   TxKind = "buy_tokens"
	TxKindSellTokens  TxKind = "sell_tokens"
)

// TxStatus is the lifecycle state of a submitted transaction.
type TxStatus string

// Transaction statuses. Rejected means the user dismissed the wallet
// prompt; the transaction never reached the chain.
const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusRejected  TxStatus = "rejected"
)

// TxRecord is one journal entry for a submitted transaction.
type TxRecord struct {
	ID        string
	Hash      ethereum.Hash
	Kind      TxKind
	Status    TxStatus
	Account   ethereum.Address
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BalanceSample is one poll observation of an account's token balance.
type BalanceSample struct {
	Account     ethereum.Address
	Balance     *big.Int // raw token units
	BlockNumber uint64
	TimestampMs int64
}

// Valuation is a USD value derived from the token balance, the exchange
// rate and the price feed. It is only ever produced from a complete set
// of inputs.
type Valuation struct {
	Account      ethereum.Address
	Balance      *big.Int // raw token units
	EthPriceUSD  float64  // from the price feed
	TokensPerEth *big.Int
	ValueUSD     float64
	TimestampMs  int64
}
