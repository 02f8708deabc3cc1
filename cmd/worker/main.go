package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"breachshield/internal/alerts"
	"breachshield/internal/breach"
	"breachshield/internal/digest"
	"breachshield/internal/identity"
	"breachshield/internal/ingestion"
	"breachshield/internal/ingestion/hibp"
	"breachshield/internal/platform/config"
	"breachshield/internal/platform/logger"
	"breachshield/internal/platform/metrics"
	"breachshield/internal/platform/postgres"
	platformredis "breachshield/internal/platform/redis"
	"breachshield/internal/queue"
	"breachshield/internal/remediation"
	"breachshield/internal/remediation/claude"
	"breachshield/internal/user"
	"breachshield/pkg/platform/tx"
)

// main runs the background half of the pipeline: the queue consumer with the
// scan, dispatch and digest handlers, plus the periodic scheduler.
func main() {
	log, err := logger.New("breachshield-worker")
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("worker exited", zap.Error(err))
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

	hostname, _ := os.Hostname()
	consumer := fmt.Sprintf("worker-%s-%d", hostname, os.Getpid())
	jobQueue, err := queue.NewRedisQueue(ctx, redisClient, consumer, log)
	if err != nil {
		return err
	}

	identities := identity.NewPostgresStore(db)
	users := user.NewPostgresStore(db)
	events := breach.NewPostgresStore(db)
	cache := remediation.NewPostgresStore(db)
	deliveries := alerts.NewPostgresStore(db)

	cipher, err := identity.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	m := metrics.New()
	limiter := hibp.NewRateLimiter(cfg.HIBP.MinInterval)
	feed := hibp.NewClient(cfg.HIBP, limiter, log)

	generator := claude.New(cfg.Claude.APIKey, cfg.Claude.Model, cfg.Claude.MaxTokens, cfg.Claude.Timeout)
	advisor := remediation.NewAdvisor(cache, generator, log)

	mailer := alerts.NewSendGridMailer(cfg.Email, log)
	texter := alerts.NewTwilioTexter(cfg.SMS, log)

	runner := tx.NewRunner(db)
	scanner := ingestion.NewScanner(identities, events, cipher, feed, advisor,
		runner, jobQueue, m, log)
	dispatcher := alerts.NewDispatcher(events, identities, users, deliveries, mailer, texter, runner, m, log)
	digester := digest.NewService(users, events, advisor, mailer, log)

	mux := queue.NewMux()
	mux.Register(queue.KindScanIdentity, queue.HandlerFunc(scanner.HandleJob))
	mux.Register(queue.KindDispatchAlert, queue.HandlerFunc(dispatcher.HandleJob))
	mux.Register(queue.KindDigestUser, queue.HandlerFunc(digester.HandleJob))

	scheduler := queue.NewScheduler(identities, users, jobQueue, log,
		cfg.Worker.SweepInterval, cfg.Worker.DigestInterval)
	go scheduler.Run(ctx)

	log.Info("worker started",
		zap.String("consumer", consumer),
		zap.Int("concurrency", cfg.Worker.Concurrency))

	queue.NewConsumer(jobQueue, mux, m, log, cfg.Worker.Concurrency, cfg.Worker.RetryDelay).Run(ctx)

	log.Info("worker stopped")
	return nil
}
