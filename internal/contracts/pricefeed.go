package contracts

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/abi"
	"walletzone/internal/ethereum"
)

// PriceFeed is the Chainlink-style ETH/USD aggregator proxy.
type PriceFeed struct {
	provider ethereum.Provider
	addr     ethereum.Address
}

// NewPriceFeed binds the aggregator contract at addr.
func NewPriceFeed(provider ethereum.Provider, addr ethereum.Address) *PriceFeed {
	return &PriceFeed{provider: provider, addr: addr}
}

// Address returns the bound contract address.
func (p *PriceFeed) Address() ethereum.Address {
	return p.addr
}

// LatestAnswer returns the most recent price in the feed's own decimals.
func (p *PriceFeed) LatestAnswer(ctx context.Context) (*big.Int, error) {
	data, err := abi.NewCall("latestAnswer()").Encode()
	if err != nil {
		return nil, err
	}
	out, err := p.provider.Call(ctx, ethereum.CallMsg{To: p.addr, Data: data})
	if err != nil {
		return nil, fmt.Errorf("latestAnswer: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// Decimals returns the feed's decimal count, read from the contract.
func (p *PriceFeed) Decimals(ctx context.Context) (uint8, error) {
	data, err := abi.NewCall("decimals()").Encode()
	if err != nil {
		return 0, err
	}
	out, err := p.provider.Call(ctx, ethereum.CallMsg{To: p.addr, Data: data})
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	return abi.UnpackUint8(out, 0)
}

// PriceUSD returns the latest answer scaled to a float dollar value.
func (p *PriceFeed) PriceUSD(ctx context.Context) (float64, error) {
	answer, err := p.LatestAnswer(ctx)
	if err != nil {
		return 0, err
	}
	decimals, err := p.Decimals(ctx)
	if err != nil {
		return 0, err
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	price, _ := new(big.Float).Quo(new(big.Float).SetInt(answer), scale).Float64()
	return price, nil
}
