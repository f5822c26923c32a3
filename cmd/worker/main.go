package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tryonserver/internal/adapter/repo"
	"tryonserver/internal/infra"
	"tryonserver/internal/ledger"
	"tryonserver/internal/notify"
	"tryonserver/internal/queue"
	"tryonserver/internal/render"
	"tryonserver/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	amqpClient, err := infra.NewAMQPClient(cfg.AMQPURL, cfg.BatchQueueName, cfg.NotifyExchangeName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: amqp connection failed")
	}
	defer amqpClient.Close()

	renderer := render.NewClient(render.Options{
		BaseURL:       cfg.RenderBaseURL,
		APIKey:        cfg.RenderAPIKey,
		PollInterval:  cfg.RenderPollInterval,
		PollBudget:    cfg.RenderPollBudget,
		SubmitRetries: cfg.RenderSubmitRetries,
		Logger:        logger,
	})

	workerID := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
	worker := queue.NewWorker(
		workerID,
		repo.NewQueueStore(pool, ledger.New()),
		renderer,
		fileStore,
		notify.NewAMQPNotifier(amqpClient, cfg.NotifyExchangeName, logger),
		logger,
	)

	logger.Info().Str("worker_id", workerID).Msg("worker: started")
	if err := run(ctx, worker, amqpClient, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// run drains batches whenever the broker nudges us or the poll interval
// elapses. Wake-ups are hints only; the claim query is the source of truth,
// so a lost message costs at most one poll interval of latency.
func run(ctx context.Context, worker *queue.Worker, amqpClient *infra.AMQPClient, cfg *infra.Config, logger infra.Logger) error {
	var wakeups <-chan struct{}
	if amqpClient != nil {
		deliveries, err := amqpClient.Consume(cfg.BatchQueueName, "render-worker")
		if err != nil {
			return fmt.Errorf("consume batch queue: %w", err)
		}
		ch := make(chan struct{}, 1)
		go func() {
			for d := range deliveries {
				_ = d.Ack(false)
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}()
		wakeups = ch
	}

	ticker := time.NewTicker(cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		drain(ctx, worker, logger)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wakeups:
		}
	}
}

// drain processes claimable batches until none remain.
func drain(ctx context.Context, worker *queue.Worker, logger infra.Logger) {
	for {
		processed, err := worker.ProcessOne(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("worker: batch pass failed")
			}
			return
		}
		if !processed {
			return
		}
	}
}
