package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	affiliatemetrics "affinet/internal/affiliate/metrics"
	affiliateservice "affinet/internal/affiliate/service"
	affiliatestore "affinet/internal/affiliate/store"
	affiliatetoken "affinet/internal/affiliate/token"
	identitymetrics "affinet/internal/identity/metrics"
	identitymodels "affinet/internal/identity/models"
	identityservice "affinet/internal/identity/service"
	identitystore "affinet/internal/identity/store"
	ledgermetrics "affinet/internal/ledger/metrics"
	ledgermodels "affinet/internal/ledger/models"
	ledgerservice "affinet/internal/ledger/service"
	ledgerstore "affinet/internal/ledger/store"
	paymentsservice "affinet/internal/payments/service"
	"affinet/internal/platform/config"
	"affinet/internal/platform/httpserver"
	"affinet/internal/platform/logger"
	otelplatform "affinet/internal/platform/otel"
	redisplatform "affinet/internal/platform/redis"
	httptransport "affinet/internal/transport/http"
	audit "affinet/pkg/platform/audit"
	auditkafka "affinet/pkg/platform/audit/kafka"
	auditpublisher "affinet/pkg/platform/audit/publisher"
	auditmemory "affinet/pkg/platform/audit/store/memory"
	auditpg "affinet/pkg/platform/audit/store/postgres"
)

// main wires config, stores, services, and the HTTP surface, then runs
// everything under one errgroup. Business logic lives in the internal
// service packages.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelplatform.Setup(ctx, "affinet")
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	db, err := openPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// Audit pipeline: durable store when Postgres is up, Kafka sink when
	// brokers are configured, async buffer either way.
	auditStore := newAuditStore(db)
	publisherOpts := []auditpublisher.Option{
		auditpublisher.WithAsyncBuffer(256),
		auditpublisher.WithLogger(log),
	}

	var producer *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		publisherOpts = append(publisherOpts,
			auditpublisher.WithSink(auditkafka.NewSink(producer, cfg.Kafka.Topic, log)))
	}
	auditor := auditpublisher.NewPublisher(auditStore, publisherOpts...)
	defer auditor.Close()

	registry := identityservice.NewService(identitystore.NewInMemory(),
		identityservice.WithMetrics(identitymetrics.New()),
		identityservice.WithLogger(log),
	)

	ledgerOpts := []ledgerservice.Option{
		ledgerservice.WithMetrics(ledgermetrics.New()),
		ledgerservice.WithLogger(log),
	}
	if rates, err := buildRates(cfg.Rates); err != nil {
		return err
	} else if rates != nil {
		ledgerOpts = append(ledgerOpts, ledgerservice.WithRates(rates))
	}

	purses := ledgerstore.NewInMemoryPurses()
	var (
		txs     ledgerstore.TransactionStore = ledgerstore.NewInMemoryTransactions()
		bonuses ledgerstore.BonusStore       = ledgerstore.NewInMemoryBonuses()
	)
	if db != nil {
		txs = ledgerstore.NewPostgresTransactions(db)
		bonuses = ledgerstore.NewPostgresBonuses(db)
	}

	ledger, err := ledgerservice.NewService(purses, txs, bonuses, ledgerOpts...)
	if err != nil {
		return fmt.Errorf("ledger service: %w", err)
	}

	orchestrator := paymentsservice.NewOrchestrator(registry, ledger,
		paymentsservice.WithAuditor(auditor),
		paymentsservice.WithLogger(log),
	)
	root, err := orchestrator.Bootstrap(ctx, identitymodels.Contact{
		Email:       cfg.RootEmail,
		Phone:       cfg.RootPhone,
		DisplayName: "Network Root",
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	log.Info("tree root ready", "uin", root.UIN.String())

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	var clicks affiliatestore.ClickStore = affiliatestore.NewInMemory()
	if redisClient != nil {
		defer redisClient.Close()
		clicks = affiliatestore.NewRedisClicks(redisClient.Client)
	}

	affiliate := affiliateservice.NewService(
		affiliatetoken.NewService(cfg.ReferralSigningKey, "affinet", cfg.ReferralTokenTTL),
		clicks,
		registry,
		cfg.BaseURL,
		affiliateservice.WithMetrics(affiliatemetrics.New()),
		affiliateservice.WithAuditor(auditor),
		affiliateservice.WithLogger(log),
	)

	handler := httptransport.NewHandler(orchestrator, affiliate, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if len(cfg.Kafka.Brokers) > 0 && db != nil {
		consumerClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.ConsumerGroup("affinet-audit-materializer"),
			kgo.ConsumeTopics(cfg.Kafka.Topic),
		)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumerClient.Close()
		consumer := auditkafka.NewConsumer(consumerClient, auditpg.New(db), log)
		g.Go(func() error {
			err := consumer.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range []string{ledgerstore.Schema, auditpg.Schema} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func newAuditStore(db *sql.DB) audit.Store {
	if db == nil {
		return auditmemory.NewInMemoryStore()
	}
	return auditpg.New(db)
}

func buildRates(raw map[string]string) (ledgermodels.RateTable, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	rates := ledgermodels.DefaultRateTable()
	for code, rate := range raw {
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("rate for %s is not a decimal: %q", code, rate)
		}
		rates[code] = d
	}
	return rates, nil
}
