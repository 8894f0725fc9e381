// Command newwallet generates a wallet (or re-derives one from an
// existing mnemonic) and prints the mnemonic, address and keys.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"walletzone/internal/wallet"
)

func main() {
	mnemonic := flag.String("mnemonic", "", "Re-derive from an existing BIP-39 mnemonic instead of generating")
	showPrivate := flag.Bool("show-private", false, "Print the private key")

	flag.Parse()

	logger := log.New(os.Stderr, "[newwallet] ", 0)

	var (
		w   *wallet.GeneratedWallet
		err error
	)
	if *mnemonic != "" {
		w, err = wallet.FromMnemonic(*mnemonic)
	} else {
		w, err = wallet.Generate()
	}
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	fmt.Printf("Mnemonic:   %s\n", w.Mnemonic)
	fmt.Printf("Path:       %s\n", w.DerivationPath)
	fmt.Printf("Address:    %s\n", w.Address)
	fmt.Printf("Public key: %s\n", w.PublicKey)
	if *showPrivate {
		fmt.Printf("Private key: %s\n", w.PrivateKey)
	} else {
		fmt.Println("Private key: (hidden, pass --show-private to print)")
	}
}
