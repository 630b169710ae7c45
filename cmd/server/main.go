package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"surasmart/internal/casefile"
	"surasmart/internal/embedding"
	jwttoken "surasmart/internal/jwt_token"
	"surasmart/internal/match"
	"surasmart/internal/matcher"
	"surasmart/internal/platform/config"
	"surasmart/internal/platform/httpserver"
	"surasmart/internal/platform/logger"
	"surasmart/internal/platform/metrics"
	platformredis "surasmart/internal/platform/redis"
	"surasmart/internal/record"
	"surasmart/internal/session"
	httptransport "surasmart/internal/transport/http"
	"surasmart/pkg/platform/audit"
	auditkafka "surasmart/pkg/platform/audit/publisher"
	auditmemory "surasmart/pkg/platform/audit/store/memory"
	auditpostgres "surasmart/pkg/platform/audit/store/postgres"
	auditworker "surasmart/pkg/platform/audit/worker"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Storage. Without a DSN everything runs in memory, which is enough for
	// local development against the HTTP API.
	var (
		recordStore  record.Store       = record.NewInMemoryStore()
		matchStore   match.Store        = match.NewInMemoryStore()
		caseStore    casefile.Store     = casefile.NewInMemoryStore()
		sessionStore session.Store      = session.NewInMemoryStore()
		auditStore   audit.Store        = auditmemory.New()
		healthChecks []func(context.Context) error
	)
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		recordStore = record.NewPostgresStore(pool)
		matchStore = match.NewPostgresStore(pool)
		caseStore = casefile.NewPostgresStore(pool)
		healthChecks = append(healthChecks, pool.Ping)

		// The audit trail keeps its own database/sql handle so appends can
		// join caller transactions carried in context.
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		auditStore = auditpostgres.New(db)
	}
	if cfg.RedisAddr != "" {
		redisClient, err := platformredis.New(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		sessionStore = session.NewRedisStore(redisClient.Client)
		healthChecks = append(healthChecks, redisClient.Health)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Optional Kafka mirror of the audit trail: the primary store write stays
	// synchronous, the topic copy rides a background worker.
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := auditkafka.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()

		mirror := make(chan audit.Event, 256)
		auditStore = audit.NewTee(auditStore, mirror)
		worker := auditworker.NewWorker(kafkaSink, mirror)
		g.Go(func() error { return worker.Run(ctx) })
	}

	publisher := audit.NewPublisher(auditStore)
	met := metrics.New(prometheus.DefaultRegisterer)
	thresholds := cfg.Thresholds
	extractor := embedding.NewHTTPExtractor(cfg.ExtractorURL)

	recordService := record.NewService(recordStore, extractor, log)
	caseService := casefile.NewService(caseStore, publisher, log,
		casefile.WithRecordPurger(recordService),
		casefile.WithRetentionHorizon(thresholds.RetentionHorizon),
	)
	gate := matcher.NewGate(thresholds)
	ledger := match.NewLedger(matchStore, gate, caseService, publisher, log)
	m := matcher.New(recordStore, thresholds, log)
	sessionService := session.NewService(sessionStore, extractor, m, gate,
		ledger, caseService, publisher, met, thresholds, log)

	handler := httptransport.NewHandler(sessionService, recordService, caseService, ledger, log)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Handler:   handler,
		Validator: jwttoken.NewValidator(cfg.JWTSigningKey),
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    log,
		Health: func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for _, check := range healthChecks {
				if err := check(checkCtx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("starting surasmart", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
