package contracts

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/abi"
	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
)

// Marketplace event topics.
var (
	ItemListedTopic = abi.EventTopic("ItemListed(uint256,uint256,address,uint256)")
	ItemSoldTopic   = abi.EventTopic("ItemSold(uint256,uint256,address,address,uint256)")
)

// Market is the NFT marketplace proxy. Purchases are settled in the
// ERC-20 token; listing requires the seller to cover the flat fee.
type Market struct {
	provider ethereum.Provider
	addr     ethereum.Address
}

// NewMarket binds the marketplace contract at addr.
func NewMarket(provider ethereum.Provider, addr ethereum.Address) *Market {
	return &Market{provider: provider, addr: addr}
}

// Address returns the bound contract address.
func (m *Market) Address() ethereum.Address {
	return m.addr
}

func (m *Market) call(ctx context.Context, c *abi.Call) ([]byte, error) {
	data, err := c.Encode()
	if err != nil {
		return nil, err
	}
	return m.provider.Call(ctx, ethereum.CallMsg{To: m.addr, Data: data})
}

// ListingFee returns the flat fee (in token units) charged per listing.
func (m *Market) ListingFee(ctx context.Context) (*big.Int, error) {
	out, err := m.call(ctx, abi.NewCall("listingFee()"))
	if err != nil {
		return nil, fmt.Errorf("listingFee: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// ItemCount returns how many listings have ever been created. Item IDs
// run 1..itemCount.
func (m *Market) ItemCount(ctx context.Context) (*big.Int, error) {
	out, err := m.call(ctx, abi.NewCall("itemCount()"))
	if err != nil {
		return nil, fmt.Errorf("itemCount: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// GetListing returns the authoritative state of one listing:
// (tokenId, seller, price, active).
func (m *Market) GetListing(ctx context.Context, itemID *big.Int) (domain.Listing, error) {
	out, err := m.call(ctx, abi.NewCall("getListing(uint256)").Uint256(itemID))
	if err != nil {
		return domain.Listing{}, fmt.Errorf("getListing %s: %w", itemID, err)
	}

	tokenID, err := abi.UnpackUint256(out, 0)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("getListing %s: decode tokenId: %w", itemID, err)
	}
	seller, err := abi.UnpackAddress(out, 1)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("getListing %s: decode seller: %w", itemID, err)
	}
	price, err := abi.UnpackUint256(out, 2)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("getListing %s: decode price: %w", itemID, err)
	}
	active, err := abi.UnpackBool(out, 3)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("getListing %s: decode active: %w", itemID, err)
	}

	return domain.Listing{
		ItemID:  new(big.Int).Set(itemID),
		TokenID: tokenID,
		Seller:  seller,
		Price:   price,
		Active:  active,
	}, nil
}

// ListItem submits a new listing of tokenID at price, signed by from.
// The caller must have approved the marketplace for the listing fee and
// the NFT beforehand.
func (m *Market) ListItem(ctx context.Context, from ethereum.Address, tokenID, price *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("listItem(uint256,uint256)").Uint256(tokenID).Uint256(price).Encode()
	if err != nil {
		return "", err
	}
	return m.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: m.addr, Data: data})
}

// BuyItem submits a purchase of a listing, signed by from. The caller
// must have approved the marketplace for the listing price beforehand.
func (m *Market) BuyItem(ctx context.Context, from ethereum.Address, itemID *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("buyItem(uint256)").Uint256(itemID).Encode()
	if err != nil {
		return "", err
	}
	return m.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: m.addr, Data: data})
}

// CancelItem withdraws a listing, signed by the seller.
func (m *Market) CancelItem(ctx context.Context, from ethereum.Address, itemID *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("cancelItem(uint256)").Uint256(itemID).Encode()
	if err != nil {
		return "", err
	}
	return m.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: m.addr, Data: data})
}
