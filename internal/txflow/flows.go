package txflow

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/contracts"
	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/wallet"
)

// Flows bundles the deployed contracts behind the sequencer and
// implements the approve-before-act patterns the marketplace and
// exchange require.
type Flows struct {
	seq      *Sequencer
	session  *wallet.Session
	token    *contracts.Token
	nft      *contracts.NFT
	market   *contracts.Market
	exchange *contracts.Exchange
}

// NewFlows wires the contract bindings to a sequencer and session.
func NewFlows(seq *Sequencer, session *wallet.Session, token *contracts.Token, nft *contracts.NFT, market *contracts.Market, exchange *contracts.Exchange) *Flows {
	return &Flows{
		seq:      seq,
		session:  session,
		token:    token,
		nft:      nft,
		market:   market,
		exchange: exchange,
	}
}

// Sequencer exposes the underlying sequencer for pending/error state.
func (f *Flows) Sequencer() *Sequencer {
	return f.seq
}

func (f *Flows) account() (ethereum.Address, error) {
	account := f.session.Current()
	if account == "" {
		return "", fmt.Errorf("no wallet connected")
	}
	return account, nil
}

// EnsureAllowance guarantees spender may move at least amount of the
// token on owner's behalf. When the current allowance falls short it
// submits an approve and waits for it to mine; any failure there aborts
// the caller's flow before the dependent transaction is submitted.
func (f *Flows) EnsureAllowance(ctx context.Context, owner, spender ethereum.Address, amount *big.Int) error {
	allowance, err := f.token.Allowance(ctx, owner, spender)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	_, err = f.seq.Run(ctx, domain.TxKindApprove, owner, func(ctx context.Context) (ethereum.Hash, error) {
		return f.token.Approve(ctx, owner, spender, amount)
	})
	return err
}

// TransferTokens sends amount of the token to the recipient.
func (f *Flows) TransferTokens(ctx context.Context, to ethereum.Address, amount *big.Int) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}
	return f.seq.Run(ctx, domain.TxKindTransfer, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.token.Transfer(ctx, from, to, amount)
	})
}

// TransferNFT sends one token of the collection to the recipient.
func (f *Flows) TransferNFT(ctx context.Context, to ethereum.Address, tokenID *big.Int) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}
	return f.seq.Run(ctx, domain.TxKindTransferNFT, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.nft.TransferFrom(ctx, from, from, to, tokenID)
	})
}

// MintNFT mints a new token with the given metadata URI to the caller.
func (f *Flows) MintNFT(ctx context.Context, tokenURI string) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}
	return f.seq.Run(ctx, domain.TxKindMintNFT, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.nft.MintNFT(ctx, from, from, tokenURI)
	})
}

// PurchaseListing buys a marketplace listing. The marketplace pulls the
// price in tokens, so the allowance is topped up first; the purchase is
// never submitted if that step fails or is rejected.
func (f *Flows) PurchaseListing(ctx context.Context, listing domain.Listing) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}

	if err := f.EnsureAllowance(ctx, from, f.market.Address(), listing.Price); err != nil {
		return nil, err
	}

	return f.seq.Run(ctx, domain.TxKindBuyItem, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.market.BuyItem(ctx, from, listing.ItemID)
	})
}

// CreateListing lists a token at price. The marketplace charges the
// flat listing fee in tokens and escrows the NFT, so both approvals
// precede the listing call.
func (f *Flows) CreateListing(ctx context.Context, tokenID, price *big.Int) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}

	fee, err := f.market.ListingFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("read listing fee: %w", err)
	}
	if err := f.EnsureAllowance(ctx, from, f.market.Address(), fee); err != nil {
		return nil, err
	}

	if _, err := f.seq.Run(ctx, domain.TxKindApprove, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.nft.Approve(ctx, from, f.market.Address(), tokenID)
	}); err != nil {
		return nil, err
	}

	return f.seq.Run(ctx, domain.TxKindListItem, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.market.ListItem(ctx, from, tokenID, price)
	})
}

// CancelListing withdraws one of the caller's listings.
func (f *Flows) CancelListing(ctx context.Context, itemID *big.Int) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}
	return f.seq.Run(ctx, domain.TxKindCancelItem, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.market.CancelItem(ctx, from, itemID)
	})
}

// BuyTokens swaps wei for tokens at the exchange rate. The ether rides
// as transaction value; no approval is involved.
func (f *Flows) BuyTokens(ctx context.Context, wei *big.Int) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}
	return f.seq.Run(ctx, domain.TxKindBuyTokens, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.exchange.BuyTokens(ctx, from, wei)
	})
}

// SellTokens swaps amount of tokens back to ether. The exchange pulls
// the tokens, so the allowance is topped up first.
func (f *Flows) SellTokens(ctx context.Context, amount *big.Int) (*ethereum.Receipt, error) {
	from, err := f.account()
	if err != nil {
		return nil, err
	}

	if err := f.EnsureAllowance(ctx, from, f.exchange.Address(), amount); err != nil {
		return nil, err
	}

	return f.seq.Run(ctx, domain.TxKindSellTokens, from, func(ctx context.Context) (ethereum.Hash, error) {
		return f.exchange.SellTokens(ctx, from, amount)
	})
}
