// Package market rebuilds marketplace state from authoritative contract
// reads: itemCount bounds the walk, getListing supplies each entry.
package market

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
)

// ListingReader is the slice of the marketplace binding this package
// needs.
type ListingReader interface {
	ItemCount(ctx context.Context) (*big.Int, error)
	GetListing(ctx context.Context, itemID *big.Int) (domain.Listing, error)
}

// Catalog reads marketplace listings.
type Catalog struct {
	market ListingReader
}

// NewCatalog creates a catalog over the marketplace contract.
func NewCatalog(market ListingReader) *Catalog {
	return &Catalog{market: market}
}

// ActiveListings returns every listing still open for purchase, in
// item-ID order. Each listing references exactly one NFT.
func (c *Catalog) ActiveListings(ctx context.Context) ([]domain.Listing, error) {
	return c.collect(ctx, func(l domain.Listing) bool {
		return l.Active
	})
}

// ListingsBySeller returns seller's listings, active or not.
func (c *Catalog) ListingsBySeller(ctx context.Context, seller ethereum.Address) ([]domain.Listing, error) {
	return c.collect(ctx, func(l domain.Listing) bool {
		return l.Seller.Equal(seller)
	})
}

// ListingForToken returns the active listing of a token, or nil when
// the token is not listed.
func (c *Catalog) ListingForToken(ctx context.Context, tokenID *big.Int) (*domain.Listing, error) {
	listings, err := c.collect(ctx, func(l domain.Listing) bool {
		return l.Active && l.TokenID.Cmp(tokenID) == 0
	})
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}
	return &listings[0], nil
}

// collect walks item IDs 1..itemCount and keeps listings passing keep.
// A failed read fails the whole walk; partial catalogs mislead buyers.
func (c *Catalog) collect(ctx context.Context, keep func(domain.Listing) bool) ([]domain.Listing, error) {
	count, err := c.market.ItemCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("item count: %w", err)
	}

	var listings []domain.Listing
	one := big.NewInt(1)
	for itemID := big.NewInt(1); itemID.Cmp(count) <= 0; itemID = new(big.Int).Add(itemID, one) {
		listing, err := c.market.GetListing(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", itemID, err)
		}
		if keep(listing) {
			listings = append(listings, listing)
		}
	}

	return listings, nil
}
