package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walletzone/internal/contracts"
	"walletzone/internal/domain"
	"walletzone/internal/ethereum"
	"walletzone/internal/observability"
	"walletzone/internal/poller"
	"walletzone/internal/storage"
	"walletzone/internal/storage/clickhouse"
	"walletzone/internal/storage/memory"
	"walletzone/internal/storage/migrations"
	"walletzone/internal/wallet"
)

func main() {
	// Parse flags
	rpcEndpoint := flag.String("rpc-endpoint", "", "Ethereum RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", "", "Ethereum WebSocket endpoint (optional, enables new-head logging)")
	addressesPath := flag.String("addresses", "contract-address.json", "Path to the deployed contract addresses file")
	sessionFile := flag.String("session-file", "", "Path to the persisted wallet session (empty for in-memory)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for balance timeseries")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	pollInterval := flag.Duration("poll-interval", poller.DefaultInterval, "Balance poll interval")
	watchInterval := flag.Duration("watch-interval", wallet.DefaultWatchInterval, "Account watch interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[walletd] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, options{
		rpcEndpoint:   *rpcEndpoint,
		wsEndpoint:    *wsEndpoint,
		addressesPath: *addressesPath,
		sessionFile:   *sessionFile,
		clickhouseDSN: *clickhouseDSN,
		useMemory:     *useMemory,
		pollInterval:  *pollInterval,
		watchInterval: *watchInterval,
		verbose:       *verbose,
	})

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type options struct {
	rpcEndpoint   string
	wsEndpoint    string
	addressesPath string
	sessionFile   string
	clickhouseDSN string
	useMemory     bool
	pollInterval  time.Duration
	watchInterval time.Duration
	verbose       bool
}

// run connects the wallet session and polls the active account's balance
// until the context ends. An account switch stops the old poller and
// starts a fresh one.
func run(ctx context.Context, logger *log.Logger, opts options) error {
	if opts.rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}
	if !opts.useMemory && opts.clickhouseDSN == "" {
		return fmt.Errorf("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	provider := ethereum.NewHTTPClient(opts.rpcEndpoint)

	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	logger.Printf("Connected to chain %s", chainID)

	// Load and verify the deployed contracts.
	addrs, err := contracts.LoadAddresses(opts.addressesPath)
	if err != nil {
		return fmt.Errorf("load addresses: %w", err)
	}
	for name, addr := range map[string]ethereum.Address{
		"token":      addrs.Token,
		"nft":        addrs.NFT,
		"market":     addrs.NFTMarket,
		"exchange":   addrs.Exchange,
		"price feed": addrs.PriceFeed,
	} {
		if err := contracts.VerifyDeployed(ctx, provider, addr); err != nil {
			return fmt.Errorf("verify %s contract: %w", name, err)
		}
	}

	token := contracts.NewToken(provider, addrs.Token)
	exchange := contracts.NewExchange(provider, addrs.Exchange)
	priceFeed := contracts.NewPriceFeed(provider, addrs.PriceFeed)

	decimals, err := token.Decimals(ctx)
	if err != nil {
		return fmt.Errorf("read token decimals: %w", err)
	}

	// Timeseries storage.
	var timeseries storage.BalanceTimeseriesStore = memory.NewBalanceTimeseriesStore()
	if !opts.useMemory {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()
		timeseries = clickhouse.NewBalanceTimeseriesStore(conn)
	}

	// Wallet session.
	var store wallet.SessionStore = wallet.NewMemoryStore()
	if opts.sessionFile != "" {
		store = wallet.NewFileStore(opts.sessionFile)
	}
	session := wallet.NewSession(provider, store, wallet.WithVerbose(opts.verbose))
	defer session.Close()

	account, err := session.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if account == "" {
		account, err = session.Connect(ctx)
		if err != nil {
			return fmt.Errorf("connect wallet: %w", err)
		}
	}
	logger.Printf("Active account: %s", account)
	observability.DefaultMetrics.SessionActive.Set(1)

	session.Watch(opts.watchInterval)
	accountCh, cancelSub := session.Subscribe()
	defer cancelSub()

	// Optional head subscription, purely informational.
	if opts.wsEndpoint != "" {
		ws, err := ethereum.NewWSClient(ctx, opts.wsEndpoint, nil)
		if err != nil {
			return fmt.Errorf("create websocket client: %w", err)
		}
		defer ws.Close()

		heads, err := ws.SubscribeNewHeads(ctx)
		if err != nil {
			return fmt.Errorf("subscribe new heads: %w", err)
		}
		go func() {
			for head := range heads {
				if opts.verbose {
					logger.Printf("New head %d (%s)", head.Number, head.Hash)
				}
			}
		}()
	}

	valuer := poller.NewValuer(exchange, priceFeed, decimals)

	// Poll the active account until it changes or the daemon stops.
	for {
		if account == "" {
			// Disconnected: idle until the session produces an account.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case next, ok := <-accountCh:
				if !ok {
					return nil
				}
				account = next
				continue
			}
		}

		next, err := pollAccount(ctx, logger, token, valuer, timeseries, account, opts, accountCh)
		if err != nil {
			return err
		}
		account = next
		if account == "" {
			observability.DefaultMetrics.SessionActive.Set(0)
			logger.Println("Wallet disconnected, waiting for reconnect")
		} else {
			observability.DefaultMetrics.AccountSwitches.Inc()
			logger.Printf("Account switched to %s", account)
		}
	}
}

// pollAccount runs one poller for the given account and blocks until the
// session changes accounts or the context ends. Returns the next account
// to track ("" when the wallet disconnected).
func pollAccount(
	ctx context.Context,
	logger *log.Logger,
	token *contracts.Token,
	valuer *poller.Valuer,
	timeseries storage.BalanceTimeseriesStore,
	account ethereum.Address,
	opts options,
	accountCh <-chan ethereum.Address,
) (ethereum.Address, error) {
	p := poller.NewBalancePoller(token, account,
		poller.WithInterval(opts.pollInterval),
		poller.WithPollerVerbose(opts.verbose),
		poller.WithErrorHook(func(err error) {
			observability.RecordPoll(err)
		}),
	)
	defer p.Stop()

	samples := p.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case next, ok := <-accountCh:
			if !ok {
				return "", nil
			}
			return next, nil

		case sample, ok := <-samples:
			if !ok {
				return "", ctx.Err()
			}

			observability.RecordPoll(nil)
			observability.DefaultMetrics.LastSuccessfulPoll.SetToCurrentTime()

			if err := timeseries.InsertBulk(ctx, []*domain.BalanceSample{&sample}); err != nil {
				logger.Printf("Store sample: %v", err)
			} else {
				observability.RecordSampleStored()
			}

			valuation, err := valuer.Value(ctx, account, sample.Balance)
			observability.RecordValuation(err)
			if err != nil {
				if opts.verbose {
					logger.Printf("Valuation unavailable: %v", err)
				}
				continue
			}
			if opts.verbose {
				logger.Printf("Balance %s = $%.2f (ETH at $%.2f)", sample.Balance, valuation.ValueUSD, valuation.EthPriceUSD)
			}
		}
	}
}
