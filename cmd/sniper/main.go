package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"solana-launch-sniper/internal/config"
	"solana-launch-sniper/internal/curve"
	"solana-launch-sniper/internal/decoder"
	"solana-launch-sniper/internal/engine"
	"solana-launch-sniper/internal/filter"
	"solana-launch-sniper/internal/journal"
	"solana-launch-sniper/internal/ledger"
	"solana-launch-sniper/internal/pump"
	"solana-launch-sniper/internal/stream"
	"solana-launch-sniper/internal/trader"
	"solana-launch-sniper/internal/wallet"
)

const shutdownGrace = 30 * time.Second

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ledger
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Fatal("Redis unavailable")
	}
	pingCancel()
	defer redisClient.Close()

	led, err := ledger.NewRedis(redisClient, cfg.LedgerTTL)
	if err != nil {
		logger.WithError(err).Fatal("Ledger init failed")
	}

	// Wallet and submit path
	w, err := wallet.NewWallet(wallet.WalletConfig{
		RPCURL:       cfg.RPCUrl,
		Timeout:      cfg.RPCTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PrivateKey:   cfg.WalletPrivateKey,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Wallet init failed")
	}
	logger.WithField("address", w.Address()).Info("Wallet loaded")

	if balance, err := w.GetBalanceSOL(ctx); err == nil {
		logger.WithField("sol", balance).Info("Wallet balance")
	} else {
		logger.WithError(err).Warn("Balance check failed")
	}

	blockhashes := wallet.NewBlockhashCache(w, 0)
	limiter := rate.NewLimiter(rate.Limit(cfg.SubmitRate), 1)
	submitter := pump.NewSubmitter(w, blockhashes, limiter, logger)

	// Journal is optional; trading runs without it.
	var positionJournal trader.Journal
	if cfg.ClickHouseAddr != "" {
		ch, err := journal.New(journal.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Journal init failed")
		}
		if err := ch.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("Journal schema failed")
		}
		defer ch.Close()
		positionJournal = ch
	}

	// Execution
	orch := trader.New(trader.Config{
		SellDelay:      cfg.SellDelay,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		ConfirmTimeout: cfg.ConfirmTimeout,
	}, submitter, led, positionJournal, logger)

	// Ingestion pipeline
	book := curve.NewBook()
	driver := stream.NewDriver(stream.DriverConfig{
		Feed:      stream.NewWSFeed(cfg.FeedURL, logger),
		Decoder:   decoder.New(book, logger),
		Bounds:    filter.New(cfg.MinPriceSOL, cfg.MaxPriceSOL, cfg.MaxTipLamports, logger),
		Engine:    engine.New(led, orch, cfg.BuyLamports(), logger),
		Workers:   cfg.IngestWorkers,
		QueueSize: cfg.QueueSize,
		Logger:    logger,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutdown signal received")
		cancel()
	}()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := driver.Stats()
				logger.WithFields(logrus.Fields{
					"received":  s.Received,
					"dropped":   s.Dropped,
					"filtered":  s.Filtered,
					"opened":    s.Opened,
					"dups":      s.Duplicates,
					"malformed": s.Malformed,
					"in_flight": orch.OpenPositions(),
				}).Info("Pipeline stats")
			}
		}
	}()

	logger.WithFields(logrus.Fields{
		"min_sol": cfg.MinPriceSOL,
		"max_sol": cfg.MaxPriceSOL,
		"buy_sol": cfg.BuyAmountSOL,
		"delay":   cfg.SellDelay,
	}).Info("Sniper started")

	if err := driver.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Error("Driver stopped")
	}

	// Positions in flight keep running until they settle or the grace period
	// ends.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	orch.Shutdown(shutdownCtx)
	shutdownCancel()

	logger.Info("Sniper stopped")
}
