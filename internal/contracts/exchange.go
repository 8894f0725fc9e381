package contracts

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/abi"
	"walletzone/internal/ethereum"
)

// Exchange is the token exchange proxy. It sells tokens for ether at a
// fixed rate and buys them back at the same rate.
type Exchange struct {
	provider ethereum.Provider
	addr     ethereum.Address
}

// NewExchange binds the exchange contract at addr.
func NewExchange(provider ethereum.Provider, addr ethereum.Address) *Exchange {
	return &Exchange{provider: provider, addr: addr}
}

// Address returns the bound contract address.
func (e *Exchange) Address() ethereum.Address {
	return e.addr
}

// Rate returns how many token units one ether buys.
func (e *Exchange) Rate(ctx context.Context) (*big.Int, error) {
	data, err := abi.NewCall("rate()").Encode()
	if err != nil {
		return nil, err
	}
	out, err := e.provider.Call(ctx, ethereum.CallMsg{To: e.addr, Data: data})
	if err != nil {
		return nil, fmt.Errorf("rate: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// BuyTokens submits a token purchase. The ether to spend rides as the
// transaction value; no approval is needed.
func (e *Exchange) BuyTokens(ctx context.Context, from ethereum.Address, wei *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("buyTokens()").Encode()
	if err != nil {
		return "", err
	}
	return e.provider.SendTransaction(ctx, ethereum.TxRequest{
		From:  from,
		To:    e.addr,
		Value: wei,
		Data:  data,
	})
}

// SellTokens submits a sale of amount token units back to the exchange.
// The caller must have approved the exchange for amount beforehand.
func (e *Exchange) SellTokens(ctx context.Context, from ethereum.Address, amount *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("sellTokens(uint256)").Uint256(amount).Encode()
	if err != nil {
		return "", err
	}
	return e.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: e.addr, Data: data})
}
