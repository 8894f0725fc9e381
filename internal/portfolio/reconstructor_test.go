package portfolio_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"walletzone/internal/abi"
	"walletzone/internal/contracts"
	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/ethereum/stub"
	"walletzone/internal/portfolio"
)

const (
	nftAddr = ethereum.Address("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
	alice   = ethereum.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	bob     = ethereum.Address("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

// chainFixture programs a stub provider with a token population:
// owners maps tokenID to current owner, uris to tokenURI.
func chainFixture(t *testing.T, provider *stub.Provider, owners map[int64]ethereum.Address, uris map[int64]string) {
	t.Helper()

	provider.OnCall(abi.Selector("ownerOf(uint256)"), func(msg ethereum.CallMsg) ([]byte, error) {
		id, err := abi.UnpackUint256(msg.Data[4:], 0)
		if err != nil {
			return nil, err
		}
		owner, ok := owners[id.Int64()]
		if !ok {
			return nil, &ethereum.RPCError{Code: -32603, Message: "execution reverted: ERC721: invalid token ID"}
		}
		return abi.PackAddress(owner)
	})

	provider.OnCall(abi.Selector("tokenURI(uint256)"), func(msg ethereum.CallMsg) ([]byte, error) {
		id, err := abi.UnpackUint256(msg.Data[4:], 0)
		if err != nil {
			return nil, err
		}
		uri, ok := uris[id.Int64()]
		if !ok {
			return nil, &ethereum.RPCError{Code: -32603, Message: "execution reverted"}
		}
		return abi.PackString(uri), nil
	})
}

func transferLog(t *testing.T, from, to ethereum.Address, tokenID int64, block uint64) ethereum.Log {
	t.Helper()
	fromTopic, err := abi.AddressTopic(from)
	if err != nil {
		t.Fatal(err)
	}
	toTopic, err := abi.AddressTopic(to)
	if err != nil {
		t.Fatal(err)
	}
	return ethereum.Log{
		Address: nftAddr,
		Topics: []ethereum.Hash{
			contracts.TransferTopic,
			fromTopic,
			toTopic,
			ethereum.Hash(ethereum.EncodeBytes(abi.PackUint256(big.NewInt(tokenID)))),
		},
		BlockNumber: block,
	}
}

func TestOwnedItems_VerifiesAgainstContractState(t *testing.T) {
	provider := stub.NewProvider()

	// Alice received tokens 1 and 2, then token 2 moved on to bob.
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 1, 10))
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 2, 11))
	provider.AddLog(transferLog(t, alice, bob, 2, 12))

	chainFixture(t, provider,
		map[int64]ethereum.Address{1: alice, 2: bob},
		map[int64]string{1: "ipfs://Qm1", 2: "ipfs://Qm2"},
	)

	r := portfolio.NewReconstructor(contracts.NewNFT(provider, nftAddr))

	items, err := r.OwnedItems(context.Background(), alice)
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 owned item, got %d", len(items))
	}
	if items[0].TokenID.Int64() != 1 {
		t.Errorf("TokenID = %s, want 1", items[0].TokenID)
	}
	if !items[0].Owner.Equal(alice) {
		t.Errorf("Owner = %s", items[0].Owner)
	}
	if items[0].TokenURI != "ipfs://Qm1" {
		t.Errorf("TokenURI = %q", items[0].TokenURI)
	}
}

func TestOwnedItems_DuplicateEventsCountOnce(t *testing.T) {
	provider := stub.NewProvider()

	// Token 5 passed through alice twice and she holds it now.
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 5, 10))
	provider.AddLog(transferLog(t, alice, bob, 5, 11))
	provider.AddLog(transferLog(t, bob, alice, 5, 12))

	chainFixture(t, provider,
		map[int64]ethereum.Address{5: alice},
		map[int64]string{5: "ipfs://Qm5"},
	)

	r := portfolio.NewReconstructor(contracts.NewNFT(provider, nftAddr))

	items, err := r.OwnedItems(context.Background(), alice)
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item for duplicated events, got %d", len(items))
	}
}

func TestOwnedItems_PerTokenFailureSkipsOnlyThatToken(t *testing.T) {
	provider := stub.NewProvider()

	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 1, 10))
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 2, 11))
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 3, 12))

	// Token 2 is missing from the fixture, so ownerOf(2) reverts.
	chainFixture(t, provider,
		map[int64]ethereum.Address{1: alice, 3: alice},
		map[int64]string{1: "ipfs://Qm1", 3: "ipfs://Qm3"},
	)

	r := portfolio.NewReconstructor(contracts.NewNFT(provider, nftAddr))

	items, err := r.OwnedItems(context.Background(), alice)
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected tokens 1 and 3 to survive, got %d items", len(items))
	}
	if items[0].TokenID.Int64() != 1 || items[1].TokenID.Int64() != 3 {
		t.Errorf("items = %s, %s", items[0].TokenID, items[1].TokenID)
	}
}

func TestOwnedItems_LogQueryFailureIsFatal(t *testing.T) {
	provider := stub.NewProvider()
	provider.FailWith("eth_getLogs", errors.New("provider down"))

	r := portfolio.NewReconstructor(contracts.NewNFT(provider, nftAddr))

	items, err := r.OwnedItems(context.Background(), alice)
	if err == nil {
		t.Fatal("log query failure must fail the refresh")
	}
	if len(items) != 0 {
		t.Errorf("failed refresh must return no items, got %d", len(items))
	}
}

func TestOwnedItems_Idempotent(t *testing.T) {
	provider := stub.NewProvider()
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 1, 10))
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 2, 11))

	chainFixture(t, provider,
		map[int64]ethereum.Address{1: alice, 2: alice},
		map[int64]string{1: "ipfs://Qm1", 2: "ipfs://Qm2"},
	)

	r := portfolio.NewReconstructor(contracts.NewNFT(provider, nftAddr))
	ctx := context.Background()

	first, err := r.OwnedItems(ctx, alice)
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}
	second, err := r.OwnedItems(ctx, alice)
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("runs differ: %d vs %d items", len(first), len(second))
	}
	for i := range first {
		if first[i].TokenID.Cmp(second[i].TokenID) != 0 || first[i].TokenURI != second[i].TokenURI {
			t.Errorf("item %d differs between runs", i)
		}
	}
}

func TestMintedItems_KeepsTransferredTokens(t *testing.T) {
	provider := stub.NewProvider()

	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 1, 10))
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, bob, 2, 11))
	provider.AddLog(transferLog(t, alice, bob, 1, 12)) // not a mint

	chainFixture(t, provider,
		map[int64]ethereum.Address{1: bob, 2: bob},
		map[int64]string{1: "ipfs://Qm1", 2: "ipfs://Qm2"},
	)

	r := portfolio.NewReconstructor(contracts.NewNFT(provider, nftAddr))

	items, err := r.MintedItems(context.Background())
	if err != nil {
		t.Fatalf("MintedItems: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 minted items, got %d", len(items))
	}
	// Token 1 left its minter but stays in the gallery, owner updated.
	if !items[0].Owner.Equal(bob) {
		t.Errorf("token 1 owner = %s, want %s", items[0].Owner, bob)
	}
}

type staticResolver struct {
	meta domain.NFTMetadata
	err  error
}

func (s staticResolver) Resolve(context.Context, string) (domain.NFTMetadata, error) {
	return s.meta, s.err
}

func TestOwnedItems_MetadataBestEffort(t *testing.T) {
	provider := stub.NewProvider()
	provider.AddLog(transferLog(t, ethereum.ZeroAddress, alice, 1, 10))
	chainFixture(t, provider,
		map[int64]ethereum.Address{1: alice},
		map[int64]string{1: "ipfs://Qm1"},
	)

	nft := contracts.NewNFT(provider, nftAddr)
	ctx := context.Background()

	// Resolver failure keeps the item with on-chain fields only.
	r := portfolio.NewReconstructor(nft, portfolio.WithMetadata(staticResolver{err: errors.New("gateway timeout")}))
	items, err := r.OwnedItems(ctx, alice)
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("metadata failure must not drop the item, got %d items", len(items))
	}
	if items[0].Metadata.Name != "" {
		t.Errorf("failed metadata must stay empty, got %+v", items[0].Metadata)
	}

	// Resolver success decorates the item.
	meta := domain.NFTMetadata{Name: "Rex", Image: "https://img/1.png", Description: "A T-Rex"}
	r = portfolio.NewReconstructor(nft, portfolio.WithMetadata(staticResolver{meta: meta}))
	items, err = r.OwnedItems(ctx, alice)
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}
	if items[0].Metadata != meta {
		t.Errorf("Metadata = %+v, want %+v", items[0].Metadata, meta)
	}
}
