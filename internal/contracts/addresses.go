// Package contracts provides typed proxies for the deployed contracts:
// the ERC-20 token, the ERC-721 collection, the marketplace, the token
// exchange and the price feed.
package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"walletzone/internal/ethereum"
)

// Addresses holds the deployed contract addresses. The JSON field names
// match the artifact the deploy script writes (contract-address.json);
// the NFT collection is deployed under the name MyNFT.
type Addresses struct {
	Token     ethereum.Address `json:"Token"`
	NFT       ethereum.Address `json:"MyNFT"`
	NFTMarket ethereum.Address `json:"NFTMarket"`
	Exchange  ethereum.Address `json:"Exchange"`
	PriceFeed ethereum.Address `json:"PriceFeed"`
}

// LoadAddresses reads the deploy artifact and validates every address
// it names. Missing entries are allowed; malformed ones are not.
func LoadAddresses(path string) (Addresses, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Addresses{}, fmt.Errorf("read deploy artifact: %w", err)
	}

	var addrs Addresses
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return Addresses{}, fmt.Errorf("parse deploy artifact: %w", err)
	}

	for name, a := range map[string]ethereum.Address{
		"Token":     addrs.Token,
		"MyNFT":     addrs.NFT,
		"NFTMarket": addrs.NFTMarket,
		"Exchange":  addrs.Exchange,
		"PriceFeed": addrs.PriceFeed,
	} {
		if a != "" && !a.Valid() {
			return Addresses{}, fmt.Errorf("deploy artifact: invalid %s address %q", name, a)
		}
	}

	return addrs, nil
}

// VerifyDeployed checks that bytecode exists at the address. Guards
// against pointing a client at a chain the contracts were never
// deployed to.
func VerifyDeployed(ctx context.Context, provider ethereum.Provider, addr ethereum.Address) error {
	code, err := provider.CodeAt(ctx, addr)
	if err != nil {
		return fmt.Errorf("get code at %s: %w", addr, err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract deployed at %s", addr)
	}
	return nil
}
