package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/sha3"

	"walletzone/internal/ethereum"
)

// GeneratedWallet is a freshly derived account. The mnemonic and private
// key are only ever held in memory; persisting them is the caller's
// problem.
type GeneratedWallet struct {
	Mnemonic       string
	DerivationPath string
	Address        ethereum.Address
	PrivateKey     string // hex, no 0x prefix
	PublicKey      string // uncompressed, hex
}

// defaultDerivationPath is the standard Ethereum account path.
const defaultDerivationPath = "m/44'/60'/0'/0/0"

// Generate creates a new wallet from fresh BIP-39 entropy.
func Generate() (*GeneratedWallet, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("mnemonic: %w", err)
	}
	return FromMnemonic(mnemonic)
}

// FromMnemonic derives the first account (m/44'/60'/0'/0/0) of a BIP-39
// mnemonic.
func FromMnemonic(mnemonic string) (*GeneratedWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	key, err := deriveKey(seed, 0)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	_, pubKey := btcec.PrivKeyFromBytes(key[:32])
	pubBytes := pubKey.SerializeUncompressed()

	// Ethereum address = last 20 bytes of Keccak256(publicKey),
	// skipping the 0x04 uncompressed-point prefix.
	hash := keccak256(pubBytes[1:])
	address := ethereum.Address("0x" + hex.EncodeToString(hash[12:]))

	return &GeneratedWallet{
		Mnemonic:       mnemonic,
		DerivationPath: defaultDerivationPath,
		Address:        address,
		PrivateKey:     hex.EncodeToString(key[:32]),
		PublicKey:      hex.EncodeToString(pubBytes),
	}, nil
}

// deriveKey walks m/44'/60'/0'/0/{index} from a BIP-39 seed.
func deriveKey(seed []byte, index uint32) ([]byte, error) {
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	purpose, err := masterKey.NewChildKey(bip32.FirstHardenedChild + 44)
	if err != nil {
		return nil, fmt.Errorf("derive purpose: %w", err)
	}

	coin, err := purpose.NewChildKey(bip32.FirstHardenedChild + 60)
	if err != nil {
		return nil, fmt.Errorf("derive coin: %w", err)
	}

	account, err := coin.NewChildKey(bip32.FirstHardenedChild + 0)
	if err != nil {
		return nil, fmt.Errorf("derive account: %w", err)
	}

	change, err := account.NewChildKey(0)
	if err != nil {
		return nil, fmt.Errorf("derive change: %w", err)
	}

	child, err := change.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child: %w", err)
	}

	return child.Key, nil
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
