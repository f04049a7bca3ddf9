package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"aval/internal/audit"
	"aval/internal/keyring"
	"aval/internal/ledger"
	"aval/internal/ledger/revocation"
	"aval/internal/ledger/store"
	"aval/internal/mandate/builder"
	"aval/internal/platform/config"
	"aval/internal/platform/database"
	"aval/internal/platform/health"
	"aval/internal/platform/kafka/producer"
	"aval/internal/platform/logger"
	"aval/internal/platform/metrics"
	platformredis "aval/internal/platform/redis"
	"aval/internal/platform/tracer"
	"aval/internal/processor"
	"aval/internal/proof"
	httptransport "aval/internal/transport/http"
)

const (
	issuerWallet    = "issuer:user-wallet"
	issuerMerchant  = "issuer:merchant"
	issuerProcessor = "issuer:processor"
	issuerNetting   = "issuer:netting"
)

// main wires high-level dependencies, replays the append log, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing aval",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"ledger_log", cfg.LedgerLogPath,
	)

	// Issuer keys persist across restarts: the append log is only replayable
	// if the keys that signed its batches are still the keys we trust.
	reg, err := keyring.Load(cfg.IssuerKeysPath)
	switch {
	case err == nil:
		log.Info("loaded issuer keys", "path", cfg.IssuerKeysPath)
	case errors.Is(err, os.ErrNotExist):
		reg = keyring.New()
		for _, issuer := range []string{issuerWallet, issuerMerchant, issuerProcessor, issuerNetting} {
			if err := reg.Generate(issuer); err != nil {
				log.Error("failed to generate issuer keypair", "issuer", issuer, "error", err)
				os.Exit(1)
			}
		}
		if err := reg.Save(cfg.IssuerKeysPath); err != nil {
			log.Error("failed to persist issuer keys", "path", cfg.IssuerKeysPath, "error", err)
			os.Exit(1)
		}
		log.Info("generated issuer keys", "path", cfg.IssuerKeysPath)
	default:
		log.Error("failed to load issuer keys", "path", cfg.IssuerKeysPath, "error", err)
		os.Exit(1)
	}
	trustRoot := reg.ExportPublicKeys()

	m := metrics.New()
	healthHandler := health.New(cfg.Environment)

	// Transaction store: PostgreSQL when configured, in-memory otherwise.
	var ledgerStore ledger.Store = store.NewMemory()
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		ledgerStore = store.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		})
		defer pool.Close()
	}

	// Revocation list: Redis when configured, in-memory otherwise.
	var revocations revocation.List = revocation.NewInMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		revocations = revocation.NewRedis(redisClient)
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		})
		defer redisClient.Close()
	}

	// Audit trail: Kafka when configured, in-memory otherwise.
	var auditStore audit.Store = audit.NewInMemoryStore()
	if cfg.KafkaBrokers != "" {
		prod, err := producer.New(producer.Config{Brokers: cfg.KafkaBrokers, Acks: "all"}, log)
		if err != nil {
			log.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer prod.Close()
		auditStore = audit.NewKafkaStore(prod, cfg.AuditTopic)
	}
	auditor := audit.NewPublisher(auditStore, audit.WithAsyncBuffer(256), audit.WithLogger(log))
	defer auditor.Close()

	verifier := proof.NewVerifier(reg, log)
	ledgerOpts := []ledger.Option{
		ledger.WithMetrics(m),
		ledger.WithAuditor(auditor),
	}
	if cfg.Environment != "dev" {
		ledgerOpts = append(ledgerOpts, ledger.WithTracer(tracer.NewOTel()))
	}
	ledgerService := ledger.New(trustRoot, revocations, ledgerStore, verifier, reg, log, ledgerOpts...)

	// Replay previously accepted batches from the append log so the in-memory
	// view survives restarts.
	logFile := ledger.NewLogFile(cfg.LedgerLogPath, log)
	replayed, err := logFile.Read()
	if err != nil {
		log.Error("failed to read ledger log", "path", cfg.LedgerLogPath, "error", err)
		os.Exit(1)
	}
	for _, batch := range replayed {
		res, err := ledgerService.Replay(context.Background(), batch)
		if err != nil {
			log.Error("replay failed", "transaction_id", batch.TransactionID, "error", err)
			os.Exit(1)
		}
		if !res.Accepted {
			log.Warn("dropped invalid batch during replay",
				"transaction_id", batch.TransactionID,
				"reason", res.Reason,
				"detail", res.Detail,
			)
		}
	}
	log.Info("ledger log replay complete", "batches", len(replayed))

	signers := processor.Signers{
		Wallet:    proof.NewSigner(reg, issuerWallet),
		Merchant:  proof.NewSigner(reg, issuerMerchant),
		Processor: proof.NewSigner(reg, issuerProcessor),
		Clearing:  proof.NewSigner(reg, issuerNetting),
	}
	mandateBuilder := builder.New(issuerWallet, builder.WithTTL(cfg.MandateTTL))
	processorService := processor.NewService(ledgerService, mandateBuilder, signers, log,
		processor.WithLogFile(logFile),
	)

	handler := httptransport.NewHandler(processorService, ledgerService, log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		AdminJWTKey: cfg.AdminJWTKey,
		Health:      healthHandler,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
