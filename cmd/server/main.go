package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/billions-bounty/entrygate/service/config"
	"github.com/billions-bounty/entrygate/service/db"
	"github.com/billions-bounty/entrygate/service/entry"
	"github.com/billions-bounty/entrygate/service/metrics"
	natspkg "github.com/billions-bounty/entrygate/service/nats"
	"github.com/billions-bounty/entrygate/service/nonce"
	"github.com/billions-bounty/entrygate/service/server"
	solsvc "github.com/billions-bounty/entrygate/service/solana"
	"github.com/billions-bounty/entrygate/service/temporal"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("connected to database")

	nonceStore := db.NewNonceStore(dbPool)

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Parse on-chain identities
	programID, err := solana.PublicKeyFromBase58(cfg.LotteryProgramID)
	if err != nil {
		logger.Error("invalid lottery program id", "error", err)
		os.Exit(1)
	}
	mint, err := solana.PublicKeyFromBase58(cfg.USDCMintAddress)
	if err != nil {
		logger.Error("invalid USDC mint address", "error", err)
		os.Exit(1)
	}
	payer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.PayerKeypairPath)
	if err != nil {
		logger.Error("failed to load payer keypair", "path", cfg.PayerKeypairPath, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded payer keypair", "pubkey", payer.PublicKey().String())

	// Initialize Solana submission pipeline
	// Note: For premium RPC endpoints, include API key in the URL
	rpcClient := solsvc.NewRPCClient(cfg.SolanaRPCURL)
	pipeline := solsvc.NewPipeline(rpcClient, solsvc.PipelineConfig{
		Payer:               payer,
		Commitment:          commitmentFromConfig(cfg.Commitment),
		ConfirmTimeout:      cfg.ConfirmTimeout,
		PollInterval:        cfg.ConfirmPollInterval,
		MaxBlockhashRetries: cfg.MaxBlockhashRetries,
	}, metricsCollector, logger)
	resolver := solsvc.NewResolver(pipeline, metricsCollector, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	// Initialize NATS publisher for entry events
	publisher, err := natspkg.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to initialize NATS publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	allocator := nonce.NewAllocator(nonceStore, metricsCollector, logger)
	entryService := entry.NewService(
		pipeline,
		resolver,
		allocator,
		publisher,
		programID,
		mint,
		metricsCollector,
		logger,
	)

	// Initialize Temporal client for reconciliation handoff. The server can
	// run without it; timed-out submissions then settle via operator action.
	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		logger.Warn("temporal unavailable, reconciliation handoff disabled", "error", err)
	} else {
		defer temporalClient.Close()
		entryService.WithReconciler(temporalClient)
	}

	httpServer := server.New(cfg.ServerAddr, entryService, nonceStore, metricsCollector, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}
