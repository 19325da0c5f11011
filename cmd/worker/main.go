package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercekit/paygate/internal/bootstrap"
	infraRedis "github.com/commercekit/paygate/internal/infrastructure/redis"
	"github.com/commercekit/paygate/internal/repository/postgres"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "paygate-worker", "paygate_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)
	streamProducer := infraRedis.NewStreamProducer(app.Redis)

	// --- Event stream consumer ---
	workerCfg := app.Config.Worker
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.EventStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	app.Logger.Info().
		Str("stream", infraRedis.EventStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox relay (polls the outbox table and publishes to the event stream).
	g.Go(func() error {
		return runOutboxRelay(gCtx, app, txManager, outboxRepo, streamProducer, workerCfg.OutboxPollInterval)
	})

	// 2. Event audit log (consumes the event stream so operators can trail
	//    every lifecycle step as it happens).
	g.Go(func() error {
		return runEventAuditor(gCtx, app.Logger, consumer, app)
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// runOutboxRelay drains pending outbox entries into the Redis event stream.
// An entry that keeps failing past its retry budget is parked on the DLQ
// stream so the relay never wedges on a single bad payload.
func runOutboxRelay(
	ctx context.Context,
	app *bootstrap.App,
	txManager *postgres.TxManager,
	outboxRepo *postgres.OutboxRepository,
	streamProducer *infraRedis.StreamProducer,
	pollInterval time.Duration,
) error {
	logger := app.Logger
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			entries, err := outboxRepo.GetPending(txCtx, 10)
			if err != nil {
				return err
			}
			app.Metrics.OutboxPending.Set(float64(len(entries)))

			for _, entry := range entries {
				orderID, _ := entry.Payload["order_id"].(string)
				if err := streamProducer.PublishPaymentEvent(
					ctx, orderID, entry.EventType, entry.Payload,
				); err != nil {
					logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("Failed to publish outbox event")
					if markErr := outboxRepo.MarkFailed(txCtx, entry.ID); markErr != nil {
						logger.Error().Err(markErr).Str("outbox_id", entry.ID.String()).Msg("Failed to mark outbox entry failed")
					}
					if entry.RetryCount+1 >= entry.MaxRetries {
						if dlqErr := streamProducer.PublishToDLQ(ctx, orderID, "publish failed: "+err.Error(), entry.Payload); dlqErr != nil {
							logger.Error().Err(dlqErr).Str("outbox_id", entry.ID.String()).Msg("Failed to park outbox entry on DLQ")
						}
					}
					continue
				}
				if err := outboxRepo.MarkPublished(txCtx, entry.ID); err != nil {
					return err
				}
				app.Metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.EventStream, "published").Inc()
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// runEventAuditor consumes relayed lifecycle events and writes them to the
// structured log.
func runEventAuditor(
	ctx context.Context,
	logger zerolog.Logger,
	consumer *infraRedis.StreamConsumer,
	app *bootstrap.App,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				start := time.Now()
				orderID, _ := msg.Values["order_id"].(string)
				eventType, _ := msg.Values["event_type"].(string)

				logger.Info().
					Str("order_id", orderID).
					Str("event_type", eventType).
					Str("message_id", msg.ID).
					Msg("Payment event")

				consumer.Ack(ctx, msg.ID)
				app.Metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.EventStream, "audited").Inc()
				app.Metrics.WorkerProcessingDuration.WithLabelValues(infraRedis.EventStream).Observe(time.Since(start).Seconds())
			}
		}
	}
}
