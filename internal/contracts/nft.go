package contracts

import (
	"context"
	"fmt"
	"math/big"

	"walletzone/internal/abi"
	"walletzone/internal/ethereum"
)

// TransferTopic is topic0 of the ERC-721 Transfer event. For this
// collection the token ID rides in the third indexed slot.
var TransferTopic = abi.EventTopic("Transfer(address,address,uint256)")

// TransferEvent is one decoded ERC-721 Transfer log.
type TransferEvent struct {
	From    ethereum.Address
	To      ethereum.Address
	TokenID *big.Int
	Raw     ethereum.Log
}

// NFT is the ERC-721 proxy.
type NFT struct {
	provider ethereum.Provider
	addr     ethereum.Address
}

// NewNFT binds the ERC-721 contract at addr.
func NewNFT(provider ethereum.Provider, addr ethereum.Address) *NFT {
	return &NFT{provider: provider, addr: addr}
}

// Address returns the bound contract address.
func (n *NFT) Address() ethereum.Address {
	return n.addr
}

func (n *NFT) call(ctx context.Context, c *abi.Call) ([]byte, error) {
	data, err := c.Encode()
	if err != nil {
		return nil, err
	}
	return n.provider.Call(ctx, ethereum.CallMsg{To: n.addr, Data: data})
}

// OwnerOf returns the current owner of a token. Reverts (surfacing as an
// RPC error) when the token does not exist.
func (n *NFT) OwnerOf(ctx context.Context, tokenID *big.Int) (ethereum.Address, error) {
	out, err := n.call(ctx, abi.NewCall("ownerOf(uint256)").Uint256(tokenID))
	if err != nil {
		return "", fmt.Errorf("ownerOf %s: %w", tokenID, err)
	}
	return abi.UnpackAddress(out, 0)
}

// TokenURI returns the metadata URI of a token.
func (n *NFT) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := n.call(ctx, abi.NewCall("tokenURI(uint256)").Uint256(tokenID))
	if err != nil {
		return "", fmt.Errorf("tokenURI %s: %w", tokenID, err)
	}
	return abi.UnpackString(out)
}

// BalanceOf returns how many tokens of the collection owner holds.
func (n *NFT) BalanceOf(ctx context.Context, owner ethereum.Address) (*big.Int, error) {
	out, err := n.call(ctx, abi.NewCall("balanceOf(address)").Address(owner))
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return abi.UnpackUint256(out, 0)
}

// TransferFrom submits a token transfer, signed by from.
func (n *NFT) TransferFrom(ctx context.Context, from, owner, to ethereum.Address, tokenID *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("transferFrom(address,address,uint256)").
		Address(owner).Address(to).Uint256(tokenID).Encode()
	if err != nil {
		return "", err
	}
	return n.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: n.addr, Data: data})
}

// Approve grants spender control of one token, signed by from.
func (n *NFT) Approve(ctx context.Context, from, spender ethereum.Address, tokenID *big.Int) (ethereum.Hash, error) {
	data, err := abi.NewCall("approve(address,uint256)").Address(spender).Uint256(tokenID).Encode()
	if err != nil {
		return "", err
	}
	return n.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: n.addr, Data: data})
}

// MintNFT submits a mint of a new token with the given metadata URI.
func (n *NFT) MintNFT(ctx context.Context, from, to ethereum.Address, tokenURI string) (ethereum.Hash, error) {
	data, err := abi.NewCall("mintNFT(address,string)").Address(to).String(tokenURI).Encode()
	if err != nil {
		return "", err
	}
	return n.provider.SendTransaction(ctx, ethereum.TxRequest{From: from, To: n.addr, Data: data})
}

// FilterTransfers returns decoded Transfer events over the full chain
// history. Nil from/to match any address; pass the zero address as from
// to select mints.
func (n *NFT) FilterTransfers(ctx context.Context, from, to *ethereum.Address) ([]TransferEvent, error) {
	topics := []*ethereum.Hash{&TransferTopic, nil, nil}

	if from != nil {
		t, err := abi.AddressTopic(*from)
		if err != nil {
			return nil, fmt.Errorf("from filter: %w", err)
		}
		topics[1] = &t
	}
	if to != nil {
		t, err := abi.AddressTopic(*to)
		if err != nil {
			return nil, fmt.Errorf("to filter: %w", err)
		}
		topics[2] = &t
	}

	logs, err := n.provider.FilterLogs(ctx, ethereum.FilterQuery{
		Address: n.addr,
		Topics:  topics,
	})
	if err != nil {
		return nil, fmt.Errorf("filter transfers: %w", err)
	}

	events := make([]TransferEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := decodeTransfer(lg)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// decodeTransfer decodes an ERC-721 Transfer log. All three parameters
// are indexed, so the payload lives entirely in the topics.
func decodeTransfer(lg ethereum.Log) (TransferEvent, error) {
	if len(lg.Topics) != 4 {
		return TransferEvent{}, fmt.Errorf("transfer log has %d topics, want 4", len(lg.Topics))
	}

	from, err := abi.TopicAddress(lg.Topics[1])
	if err != nil {
		return TransferEvent{}, fmt.Errorf("decode from: %w", err)
	}
	to, err := abi.TopicAddress(lg.Topics[2])
	if err != nil {
		return TransferEvent{}, fmt.Errorf("decode to: %w", err)
	}
	tokenID, err := abi.TopicUint256(lg.Topics[3])
	if err != nil {
		return TransferEvent{}, fmt.Errorf("decode tokenId: %w", err)
	}

	return TransferEvent{From: from, To: to, TokenID: tokenID, Raw: lg}, nil
}
