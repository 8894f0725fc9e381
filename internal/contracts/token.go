package contracts

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/abi"
	"walletzone/internal/ethereum"
)

// Token is the ERC-20 proxy.
type Token struct {
	provider ethereum.Provider
	addr     ethereum.Address
}

// NewToken binds the ERC-20 contract at addr.
func NewToken(provider ethereum.Provider, addr ethereum.Address) *Token {
	return &Token{provider: provider, addr: addr}
}

// Address returns the bound contract address.
func (t *Token) Address() ethereum.Address {
	return t.addr
}

func (t *Token) call(ctx context.Context, c *abi.Call) ([]byte, error) {
	data, err := c.Encode()
	if err != nil {
		return nil, err
	}
	return t.provider.Call(ctx, ethereum.CallMsg{To: t.addr, Data: data})
}

// Name returns the token name.
func (t *Token) Name(ctx context.Context) (string, error) {
	out, err := t.call(ctx, abi.NewCall("name()"))
	if err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	return abi.UnpackString(out)
}

// Symbol returns the token ticker symbol.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, abi.NewCall("symbol()"))
	if err != nil {
		return "", fmt.Errorf("symbol: %w", err)
	}
	return abi.UnpackString(out)
}

// Decimals returns the token's decimal count. Always read from the
// contract; amounts are meaningless without it.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, abi.NewCall("decimals()"))
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	return abi.UnpackUint8(out, 0)
}

// TotalSupply returns the total minted amount in raw units.
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := t.call(ctx, abi.NewCall("totalSupply()"))
	if err != nil {
		return nil, fmt.Errorf("totalSupply: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// BalanceOf returns owner's balance in raw units.
func (t *Token) BalanceOf(ctx context.Context, owner ethereum.Address) (*big.Int, error) {
	out, err := t.call(ctx, abi.NewCall("balanceOf(address)").Address(owner))
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// Allowance returns how much spender may move on owner's behalf.
func (t *Token) Allowance(ctx context.Context, owner, spender ethereum.Address) (*big.Int, error) {
	out, err := t.call(ctx, abi.NewCall("allowance(address,address)").Address(owner).Address(spender))
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// Approve submits an approval of amount for spender, signed by from.
func (t *Token) Approve(ctx context.Context, from, spender ethereum.Address, amount *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("approve(address,uint256)").Address(spender).Uint256(amount).Encode()
	if err != nil {
		return "", err
	}
	return t.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: t.addr, Data: data})
}

// Transfer submits a transfer of amount to the recipient, signed by from.
func (t *Token) Transfer(ctx context.Context, from, to ethereum.Address, amount *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("transfer(address,uint256)").Address(to).Uint256(amount).Encode()
	if err != nil {
		return "", err
	}
	return t.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: t.addr, Data: data})
}
