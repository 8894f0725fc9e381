// Command portfolio prints a one-shot snapshot of an account: token
// balance with its USD valuation, owned and minted NFTs reconstructed
// from the transfer history, marketplace listings, and recent activity
// when a journal database is available.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"walletzone/internal/contracts"
	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/market"
	"walletzone/internal/poller"
	"walletzone/internal/portfolio"
	"walletzone/internal/storage/migrations"
	pgstore "walletzone/internal/storage/postgres"
)

func main() {
	rpcEndpoint := flag.String("rpc-endpoint", "", "Ethereum RPC HTTP endpoint")
	addressesPath := flag.String("addresses", "contract-address.json", "Path to the deployed contract addresses file")
	account := flag.String("account", "", "Account to inspect (defaults to the wallet's first account)")
	ipfsGateway := flag.String("ipfs-gateway", portfolio.DefaultIPFSGateway, "HTTP gateway for ipfs:// metadata URIs")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for the activity journal (optional)")
	showMinted := flag.Bool("minted", false, "Also list every minted token in the collection")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")

	flag.Parse()

	logger := log.New(os.Stderr, "[portfolio] ", log.LstdFlags)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, logger, *rpcEndpoint, *addressesPath, *account, *ipfsGateway, *postgresDSN, *showMinted); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, rpcEndpoint, addressesPath, accountFlag, ipfsGateway, postgresDSN string, showMinted bool) error {
	if rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}

	provider := ethereum.NewHTTPClient(rpcEndpoint)

	addrs, err := contracts.LoadAddresses(addressesPath)
	if err != nil {
		return fmt.Errorf("load addresses: %w", err)
	}

	account := ethereum.Address(accountFlag)
	if account == "" {
		accounts, err := provider.Accounts(ctx)
		if err != nil {
			return fmt.Errorf("read accounts: %w", err)
		}
		if len(accounts) == 0 {
			return fmt.Errorf("no account given and the wallet exposes none")
		}
		account = accounts[0]
	}
	if !account.Valid() {
		return fmt.Errorf("invalid account address %q", account)
	}

	token := contracts.NewToken(provider, addrs.Token)
	nft := contracts.NewNFT(provider, addrs.NFT)
	mkt := contracts.NewMarket(provider, addrs.NFTMarket)
	exchange := contracts.NewExchange(provider, addrs.Exchange)
	priceFeed := contracts.NewPriceFeed(provider, addrs.PriceFeed)

	fmt.Printf("Account %s\n\n", account)

	// Balance and valuation.
	symbol, err := token.Symbol(ctx)
	if err != nil {
		return fmt.Errorf("read token symbol: %w", err)
	}
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return fmt.Errorf("read token decimals: %w", err)
	}
	balance, err := token.BalanceOf(ctx, account)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	fmt.Printf("Balance: %s %s\n", domain.FormatUnits(balance, decimals), symbol)

	valuer := poller.NewValuer(exchange, priceFeed, decimals)
	if valuation, err := valuer.Value(ctx, account, balance); err != nil {
		fmt.Println("Value:   unavailable")
		logger.Printf("valuation: %v", err)
	} else {
		fmt.Printf("Value:   $%.2f (ETH at $%.2f, %s %s/ETH)\n",
			valuation.ValueUSD, valuation.EthPriceUSD, valuation.TokensPerEth, symbol)
	}

	// NFTs, reconstructed from the transfer history and re-checked
	// against current ownership.
	fetcher := portfolio.NewHTTPMetadataFetcher(portfolio.WithGateway(ipfsGateway))
	reconstructor := portfolio.NewReconstructor(nft, portfolio.WithMetadata(fetcher))

	owned, err := reconstructor.OwnedItems(ctx, account)
	if err != nil {
		return fmt.Errorf("reconstruct owned items: %w", err)
	}
	fmt.Printf("\nOwned NFTs (%d):\n", len(owned))
	printItems(owned)

	if showMinted {
		minted, err := reconstructor.MintedItems(ctx)
		if err != nil {
			return fmt.Errorf("reconstruct minted items: %w", err)
		}
		fmt.Printf("\nMinted NFTs (%d):\n", len(minted))
		printItems(minted)
	}

	// Marketplace listings by this account.
	catalog := market.NewCatalog(mkt)
	listings, err := catalog.ListingsBySeller(ctx, account)
	if err != nil {
		return fmt.Errorf("read listings: %w", err)
	}
	fmt.Printf("\nActive listings (%d):\n", len(listings))
	for _, l := range listings {
		fmt.Printf("  item %s: token %s for %s %s\n",
			l.ItemID, l.TokenID, domain.FormatUnits(l.Price, decimals), symbol)
	}

	// Recent activity from the journal, when a database is configured.
	if postgresDSN != "" {
		if err := printActivity(ctx, postgresDSN, account); err != nil {
			return fmt.Errorf("read activity: %w", err)
		}
	}

	return nil
}

func printItems(items []domain.NFTItem) {
	for _, item := range items {
		name := item.Metadata.Name
		if name == "" {
			name = "(metadata unavailable)"
		}
		fmt.Printf("  #%s %s (%s)\n", item.TokenID, name, item.TokenURI)
	}
}

func printActivity(ctx context.Context, dsn string, account ethereum.Address) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	records, err := pgstore.NewActivityStore(pool).GetByAccount(ctx, account)
	if err != nil {
		return err
	}

	fmt.Printf("\nActivity (%d):\n", len(records))
	for _, r := range records {
		line := fmt.Sprintf("  %s %-12s %-9s", r.CreatedAt.Format(time.RFC3339), r.Kind, r.Status)
		if r.Hash != "" {
			line += " " + string(r.Hash)
		}
		if r.Error != "" {
			line += " (" + r.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}
