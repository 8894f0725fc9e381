// Package portfolio rebuilds NFT holdings from the chain. Transfer logs
// only seed discovery; ownership and URIs are always re-read from
// contract state, so stale or reordered logs cannot fake a holding.
package portfolio

import (
	"context"
	"log"
	"math/big"

	"walletzone/internal/contracts"
	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
)

// NFTReader is the slice of the NFT binding the reconstructor needs.
type NFTReader interface {
	FilterTransfers(ctx context.Context, from, to *ethereum.Address) ([]contracts.TransferEvent, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (ethereum.Address, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
}

// Reconstructor derives NFT holdings from Transfer events plus
// authoritative per-token re-queries.
type Reconstructor struct {
	nft      NFTReader
	metadata MetadataResolver // nil disables metadata resolution
	verbose  bool
}

// ReconstructorOption configures a Reconstructor.
type ReconstructorOption func(*Reconstructor)

// WithMetadata enables best-effort metadata resolution.
func WithMetadata(resolver MetadataResolver) ReconstructorOption {
	return func(r *Reconstructor) {
		r.metadata = resolver
	}
}

// WithReconstructorVerbose enables per-token logging.
func WithReconstructorVerbose(v bool) ReconstructorOption {
	return func(r *Reconstructor) {
		r.verbose = v
	}
}

// NewReconstructor creates a reconstructor over the NFT contract.
func NewReconstructor(nft NFTReader, opts ...ReconstructorOption) *Reconstructor {
	r := &Reconstructor{nft: nft}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OwnedItems returns the tokens account currently owns. Discovery walks
// Transfer events with the account as recipient; each candidate is then
// verified against ownerOf, so tokens transferred away are dropped. A
// failed log query fails the whole refresh; a failed per-token query
// drops only that token.
func (r *Reconstructor) OwnedItems(ctx context.Context, account ethereum.Address) ([]domain.NFTItem, error) {
	events, err := r.nft.FilterTransfers(ctx, nil, &account)
	if err != nil {
		return nil, err
	}

	items := make([]domain.NFTItem, 0, len(events))
	for _, tokenID := range uniqueTokenIDs(events) {
		item, ok := r.queryToken(ctx, tokenID)
		if !ok {
			continue
		}
		if !item.Owner.Equal(account) {
			// Received once, since transferred away.
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// MintedItems returns every token ever minted, regardless of current
// owner. Mints are Transfer events from the zero address.
func (r *Reconstructor) MintedItems(ctx context.Context) ([]domain.NFTItem, error) {
	zero := ethereum.ZeroAddress
	events, err := r.nft.FilterTransfers(ctx, &zero, nil)
	if err != nil {
		return nil, err
	}

	items := make([]domain.NFTItem, 0, len(events))
	for _, tokenID := range uniqueTokenIDs(events) {
		item, ok := r.queryToken(ctx, tokenID)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// queryToken re-reads a token's authoritative state. Returns ok=false
// when either read fails; the caller skips the token.
func (r *Reconstructor) queryToken(ctx context.Context, tokenID *big.Int) (domain.NFTItem, bool) {
	owner, err := r.nft.OwnerOf(ctx, tokenID)
	if err != nil {
		if r.verbose {
			log.Printf("[portfolio] skip token %s: %v", tokenID, err)
		}
		return domain.NFTItem{}, false
	}

	uri, err := r.nft.TokenURI(ctx, tokenID)
	if err != nil {
		if r.verbose {
			log.Printf("[portfolio] skip token %s: %v", tokenID, err)
		}
		return domain.NFTItem{}, false
	}

	item := domain.NFTItem{
		TokenID:  new(big.Int).Set(tokenID),
		Owner:    owner,
		TokenURI: uri,
	}

	// Metadata is decoration; a fetch failure leaves on-chain fields only.
	if r.metadata != nil {
		meta, err := r.metadata.Resolve(ctx, uri)
		if err != nil {
			if r.verbose {
				log.Printf("[portfolio] metadata for token %s: %v", tokenID, err)
			}
		} else {
			item.Metadata = meta
		}
	}

	return item, true
}

// uniqueTokenIDs keeps the first occurrence of each token ID, in event
// order.
func uniqueTokenIDs(events []contracts.TransferEvent) []*big.Int {
	seen := make(map[string]struct{}, len(events))
	ids := make([]*big.Int, 0, len(events))
	for _, ev := range events {
		key := ev.TokenID.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, ev.TokenID)
	}
	return ids
}
