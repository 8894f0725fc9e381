// Package abi encodes and decodes the subset of the Solidity ABI the
// deployed contracts use: static address/uint256/bool/uint8 values and
// dynamic strings. Selectors and event topics are derived from canonical
// signatures with Keccak-256.
package abi

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"

	"walletzone/internal/ethereum"
)

// WordSize is the ABI slot width in bytes.
const WordSize = 32

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Selector returns the 4-byte method selector for a canonical signature
// such as "balanceOf(address)".
func Selector(signature string) []byte {
	return keccak256([]byte(signature))[:4]
}

// EventTopic returns the topic0 hash for a canonical event signature
// such as "Transfer(address,address,uint256)".
func EventTopic(signature string) ethereum.Hash {
	return ethereum.Hash(ethereum.EncodeBytes(keccak256([]byte(signature))))
}

// AddressTopic left-pads an address into a 32-byte topic, as indexed
// address event parameters are stored.
func AddressTopic(a ethereum.Address) (ethereum.Hash, error) {
	raw, err := a.Bytes()
	if err != nil {
		return "", err
	}
	var word [WordSize]byte
	copy(word[WordSize-len(raw):], raw)
	return ethereum.Hash(ethereum.EncodeBytes(word[:])), nil
}

// TopicAddress extracts the address from a 32-byte indexed topic.
func TopicAddress(topic ethereum.Hash) (ethereum.Address, error) {
	raw, err := ethereum.DecodeBytes(string(topic))
	if err != nil {
		return "", fmt.Errorf("decode topic: %w", err)
	}
	if len(raw) != WordSize {
		return "", fmt.Errorf("topic is %d bytes, want %d", len(raw), WordSize)
	}
	return ethereum.NormalizeAddress(ethereum.Address(ethereum.EncodeBytes(raw[12:]))), nil
}

// TopicUint256 extracts a uint256 from a 32-byte indexed topic.
func TopicUint256(topic ethereum.Hash) (*big.Int, error) {
	raw, err := ethereum.DecodeBytes(string(topic))
	if err != nil {
		return nil, fmt.Errorf("decode topic: %w", err)
	}
	if len(raw) != WordSize {
		return nil, fmt.Errorf("topic is %d bytes, want %d", len(raw), WordSize)
	}
	return new(big.Int).SetBytes(raw), nil
}

// arg is a single encoded argument. Dynamic arguments contribute an
// offset word to the head and their payload to the tail.
type arg struct {
	word    [WordSize]byte
	tail    []byte
	dynamic bool
}

// Call builds calldata for a method invocation: 4-byte selector followed
// by ABI-encoded arguments. Argument methods return the builder so calls
// chain; the first encoding error sticks and surfaces from Encode.
type Call struct {
	selector []byte
	args     []arg
	err      error
}

// NewCall starts calldata for the given canonical method signature.
func NewCall(signature string) *Call {
	return &Call{selector: Selector(signature)}
}

// Address appends an address argument.
func (c *Call) Address(a ethereum.Address) *Call {
	if c.err != nil {
		return c
	}
	raw, err := a.Bytes()
	if err != nil {
		c.err = err
		return c
	}
	var w [WordSize]byte
	copy(w[WordSize-len(raw):], raw)
	c.args = append(c.args, arg{word: w})
	return c
}

// Uint256 appends a uint256 argument. A nil value encodes as zero.
func (c *Call) Uint256(v *big.Int) *Call {
	if c.err != nil {
		return c
	}
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		c.err = fmt.Errorf("value %s does not fit uint256", v)
		return c
	}
	var w [WordSize]byte
	v.FillBytes(w[:])
	c.args = append(c.args, arg{word: w})
	return c
}

// Bool appends a bool argument.
func (c *Call) Bool(b bool) *Call {
	if c.err != nil {
		return c
	}
	var w [WordSize]byte
	if b {
		w[WordSize-1] = 1
	}
	c.args = append(c.args, arg{word: w})
	return c
}

// String appends a dynamic string argument.
func (c *Call) String(s string) *Call {
	if c.err != nil {
		return c
	}
	tail := make([]byte, WordSize+pad(len(s)))
	new(big.Int).SetInt64(int64(len(s))).FillBytes(tail[:WordSize])
	copy(tail[WordSize:], s)
	c.args = append(c.args, arg{tail: tail, dynamic: true})
	return c
}

// Encode produces the final calldata.
func (c *Call) Encode() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}

	headSize := WordSize * len(c.args)
	head := make([]byte, 0, headSize)
	var tail []byte

	for _, a := range c.args {
		if a.dynamic {
			var offset [WordSize]byte
			new(big.Int).SetInt64(int64(headSize + len(tail))).FillBytes(offset[:])
			head = append(head, offset[:]...)
			tail = append(tail, a.tail...)
			continue
		}
		head = append(head, a.word[:]...)
	}

	data := make([]byte, 0, len(c.selector)+len(head)+len(tail))
	data = append(data, c.selector...)
	data = append(data, head...)
	data = append(data, tail...)
	return data, nil
}

// MustEncode is Encode for calldata built from constants only.
func (c *Call) MustEncode() []byte {
	data, err := c.Encode()
	if err != nil {
		panic(err)
	}
	return data
}

func pad(n int) int {
	if rem := n % WordSize; rem != 0 {
		return n + WordSize - rem
	}
	return n
}

// Word returns the i-th 32-byte slot of return data.
func Word(data []byte, i int) ([]byte, error) {
	start := i * WordSize
	if len(data) < start+WordSize {
		return nil, fmt.Errorf("return data is %d bytes, want at least %d", len(data), start+WordSize)
	}
	return data[start : start+WordSize], nil
}

// UnpackUint256 decodes the i-th slot as uint256.
func UnpackUint256(data []byte, i int) (*big.Int, error) {
	w, err := Word(data, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// UnpackUint8 decodes the i-th slot as uint8.
func UnpackUint8(data []byte, i int) (uint8, error) {
	v, err := UnpackUint256(data, i)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("value %s does not fit uint8", v)
	}
	return uint8(v.Uint64()), nil
}

// UnpackBool decodes the i-th slot as bool.
func UnpackBool(data []byte, i int) (bool, error) {
	v, err := UnpackUint256(data, i)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

// UnpackAddress decodes the i-th slot as an address.
func UnpackAddress(data []byte, i int) (ethereum.Address, error) {
	w, err := Word(data, i)
	if err != nil {
		return "", err
	}
	return ethereum.NormalizeAddress(ethereum.Address(ethereum.EncodeBytes(w[12:]))), nil
}

// UnpackString decodes a single dynamic string return value: an offset
// word pointing at a length-prefixed byte run.
func UnpackString(data []byte) (string, error) {
	offset, err := UnpackUint256(data, 0)
	if err != nil {
		return "", err
	}
	if !offset.IsUint64() || offset.Uint64() > uint64(len(data)) {
		return "", fmt.Errorf("string offset %s out of range", offset)
	}

	body := data[offset.Uint64():]
	if len(body) < WordSize {
		return "", fmt.Errorf("truncated string header")
	}
	length := new(big.Int).SetBytes(body[:WordSize])
	if !length.IsUint64() || length.Uint64() > uint64(len(body)-WordSize) {
		return "", fmt.Errorf("string length %s out of range", length)
	}

	return strings.ToValidUTF8(string(body[WordSize:WordSize+length.Uint64()]), ""), nil
}

// PackUint256 encodes a value into a single slot, for stubbing return
// data in tests and for event data payloads.
func PackUint256(v *big.Int) []byte {
	var w [WordSize]byte
	if v != nil {
		v.FillBytes(w[:])
	}
	return w[:]
}

// PackAddress encodes an address into a single slot.
func PackAddress(a ethereum.Address) ([]byte, error) {
	raw, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	var w [WordSize]byte
	copy(w[WordSize-len(raw):], raw)
	return w[:], nil
}

// PackBool encodes a bool into a single slot.
func PackBool(b bool) []byte {
	var w [WordSize]byte
	if b {
		w[WordSize-1] = 1
	}
	return w[:]
}

// PackString encodes a string as a single dynamic return value.
func PackString(s string) []byte {
	out := make([]byte, WordSize*2+pad(len(s)))
	new(big.Int).SetInt64(WordSize).FillBytes(out[:WordSize])
	new(big.Int).SetInt64(int64(len(s))).FillBytes(out[WordSize : 2*WordSize])
	copy(out[2*WordSize:], s)
	return out
}
