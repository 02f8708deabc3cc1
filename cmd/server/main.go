package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"breachshield/internal/breach"
	"breachshield/internal/identity"
	"breachshield/internal/platform/config"
	"breachshield/internal/platform/httpserver"
	"breachshield/internal/platform/logger"
	"breachshield/internal/platform/postgres"
	platformredis "breachshield/internal/platform/redis"
	"breachshield/internal/queue"
	"breachshield/internal/remediation"
	"breachshield/internal/remediation/claude"
	httptransport "breachshield/internal/transport/http"
	"breachshield/internal/user"
)

// main wires the HTTP admin surface. Scanning, dispatch and digests run in the
// worker process; the server only validates, enqueues and answers.
func main() {
	log, err := logger.New("breachshield-server")
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	jobQueue, err := queue.NewRedisQueue(ctx, redisClient, "server", log)
	if err != nil {
		return err
	}

	identities := identity.NewPostgresStore(db)
	users := user.NewPostgresStore(db)
	events := breach.NewPostgresStore(db)
	cache := remediation.NewPostgresStore(db)

	generator := claude.New(cfg.Claude.APIKey, cfg.Claude.Model, cfg.Claude.MaxTokens, cfg.Claude.Timeout)
	advisor := remediation.NewAdvisor(cache, generator, log)

	scheduler := queue.NewScheduler(identities, users, jobQueue, log,
		cfg.Worker.SweepInterval, cfg.Worker.DigestInterval)

	handler := httptransport.NewHandler(identities, events, jobQueue, scheduler, advisor, log,
		func(ctx context.Context) error { return db.PingContext(ctx) },
		redisClient.Health,
	)

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
