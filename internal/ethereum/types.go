package ethereum

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ZeroAddress is the null address. Transfers from it are mint events.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// Address is a 20-byte account or contract address in 0x-prefixed hex.
// Addresses are compared case-insensitively; wallets report them with
// mixed-case checksums.
type Address string

// NormalizeAddress lowercases an address for use as a map key.
func NormalizeAddress(a Address) Address {
	return Address(strings.ToLower(string(a)))
}

// Equal reports whether two addresses refer to the same account.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

// Valid reports whether the address is 0x-prefixed 20-byte hex.
func (a Address) Valid() bool {
	if len(a) != 42 || !strings.HasPrefix(string(a), "0x") {
		return false
	}
	_, err := hex.DecodeString(string(a[2:]))
	return err == nil
}

// Bytes returns the 20 raw address bytes.
func (a Address) Bytes() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid address %q", string(a))
	}
	return hex.DecodeString(string(a[2:]))
}

// Hash is a 32-byte hash (transaction hash, log topic) in 0x-prefixed hex.
type Hash string

// Equal reports whether two hashes are the same, ignoring case.
func (h Hash) Equal(other Hash) bool {
	return strings.EqualFold(string(h), string(other))
}

// Quantity codecs. The JSON-RPC wire format encodes numbers as 0x-prefixed
// hex with no leading zeros.

// EncodeUint64 encodes n as a hex quantity.
func EncodeUint64(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

// EncodeBig encodes n as a hex quantity.
func EncodeBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", n)
}

// DecodeUint64 parses a hex quantity into a uint64.
func DecodeUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	var n uint64
	if _, err := fmt.Sscanf(s, "%x", &n); err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return n, nil
}

// DecodeBig parses a hex quantity into a big.Int.
func DecodeBig(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty quantity")
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("parse quantity %q", s)
	}
	return n, nil
}

// DecodeBytes parses 0x-prefixed hex data into raw bytes.
func DecodeBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// EncodeBytes encodes raw bytes as 0x-prefixed hex data.
func EncodeBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// codeUserRejected is the EIP-1193 error code a wallet provider returns
// when the user dismisses the signature prompt.
const codeUserRejected = 4001

// RPCError is a JSON-RPC 2.0 error returned by the wallet provider.
// Reverts carry the human-readable reason in the nested data payload.
type RPCError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *RPCErrorData `json:"data,omitempty"`
}

// RPCErrorData is the optional provider-specific error payload.
type RPCErrorData struct {
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Reason extracts the human-readable failure reason for display,
// preferring the nested data message when the provider includes one.
func (e *RPCError) Reason() string {
	if e.Data != nil && e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

// IsUserRejected reports whether err means the user canceled the wallet's
// signature prompt. This is a distinguished outcome, not a failure.
func IsUserRejected(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == codeUserRejected
	}
	return false
}

// Reason returns the displayable reason for any provider error.
func Reason(err error) string {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Reason()
	}
	return err.Error()
}
