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

	_ "github.com/lib/pq"

	"casework/internal/applications"
	"casework/internal/assessments"
	"casework/internal/authz"
	"casework/internal/events"
	transport "casework/internal/http"
	"casework/internal/locks"
	"casework/internal/person"
	"casework/internal/platform/config"
	"casework/internal/platform/httpserver"
	"casework/internal/platform/logger"
	"casework/internal/platform/metrics"
	platformredis "casework/internal/platform/redis"
	"casework/internal/reports"
	txcontext "casework/pkg/platform/tx"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	var (
		appStore    applications.Store
		unitStore   applications.DeliveryUnitStore
		assessStore assessments.Store
		reasonStore assessments.RejectionReasonStore
		eventStore  events.Store
		locker      locks.Coordinator
	)
	runner := txcontext.Runner(txcontext.NewNopRunner())

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			return err
		}
		appStore = applications.NewPostgresStore(db)
		unitStore = applications.NewPostgresDeliveryUnitStore(db)
		assessStore = assessments.NewPostgresStore(db)
		reasonStore = assessments.NewPostgresRejectionReasonStore(db)
		eventStore = events.NewPostgresStore(db)
		// Postgres serializes aggregate mutations with advisory locks taken
		// on the per-mutation transaction, so locking holds across replicas.
		locker = locks.NewAdvisoryLocker(db)
		runner = txcontext.NewSQLRunner(db)
		log.Info("using postgres stores")
	} else {
		appStore = applications.NewInMemoryStore()
		unitStore = applications.NewInMemoryDeliveryUnitStore()
		assessStore = assessments.NewInMemoryStore()
		reasonStore = assessments.NewInMemoryRejectionReasonStore()
		eventStore = events.NewInMemoryStore()
		locker = locks.NewKeyedMutex()
		log.Warn("no database configured, using in-memory stores")
	}

	instruments := metrics.New()
	publisher := events.NewPublisher(eventStore)
	checker := authz.NewChecker()

	resolverOpts := []person.Option{person.WithLogger(log), person.WithMetrics(instruments)}
	cache, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		resolverOpts = append(resolverOpts, person.WithCache(cache, time.Hour))
	}
	resolver, err := person.NewResolver(person.NewHTTPClient(cfg.PersonAPIURL), cfg.PersonBatchSize, resolverOpts...)
	if err != nil {
		return err
	}

	assessSvc, err := assessments.NewService(
		assessStore, reasonStore, locker, checker, resolver, publisher,
		cfg.DefaultPageSize,
		assessments.WithLogger(log), assessments.WithMetrics(instruments),
		assessments.WithTxRunner(runner),
	)
	if err != nil {
		return err
	}

	appSvc, err := applications.NewService(
		appStore, unitStore, locker, assessSvc, publisher, checker,
		applications.WithLogger(log), applications.WithMetrics(instruments),
		applications.WithTxRunner(runner),
	)
	if err != nil {
		return err
	}

	reportSvc, err := reports.NewService(assessSvc, resolver, cfg.PersonBatchSize, reports.WithLogger(log))
	if err != nil {
		return err
	}

	router := transport.NewRouter(transport.NewHandler(appSvc, assessSvc, reportSvc, log))
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
