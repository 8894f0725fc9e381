package poller

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
)

// RateSource reads the exchange's tokens-per-ether rate.
type RateSource interface {
	Rate(ctx context.Context) (*big.Int, error)
}

// PriceSource reads the ETH/USD price.
type PriceSource interface {
	PriceUSD(ctx context.Context) (float64, error)
}

// Valuer derives a USD valuation from a token balance. The derivation
// needs both the exchange rate and the ETH price; if either read fails
// the valuation is unavailable rather than computed from stale or
// partial inputs.
type Valuer struct {
	rate     RateSource
	price    PriceSource
	decimals uint8
}

// NewValuer creates a valuer. decimals is the token's decimal count as
// read from the contract.
func NewValuer(rate RateSource, price PriceSource, decimals uint8) *Valuer {
	return &Valuer{rate: rate, price: price, decimals: decimals}
}

// Value computes the USD value of balance raw token units.
func (v *Valuer) Value(ctx context.Context, account ethereum.Address, balance *big.Int) (*domain.Valuation, error) {
	rate, err := v.rate.Rate(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange rate: %w", err)
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("exchange rate is %s", rate)
	}

	price, err := v.price.PriceUSD(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth price: %w", err)
	}

	// tokens = balance / 10^decimals; eth = tokens / rate; usd = eth * price
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.decimals)), nil))
	tokens := new(big.Float).Quo(new(big.Float).SetInt(balance), scale)
	eth := new(big.Float).Quo(tokens, new(big.Float).SetInt(rate))
	usd, _ := new(big.Float).Mul(eth, big.NewFloat(price)).Float64()

	return &domain.Valuation{
		Account:      account,
		Balance:      new(big.Int).Set(balance),
		EthPriceUSD:  price,
		TokensPerEth: rate,
		ValueUSD:     usd,
		TimestampMs:  time.Now().UnixMilli(),
	}, nil
}
