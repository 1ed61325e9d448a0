// Command jobworker runs the queue consumers: billing webhooks, user
// notifications, email delivery, and fire-and-forget analytics events.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/onetimesecret/onetimesecret-sub010/config"
	"github.com/onetimesecret/onetimesecret-sub010/contracts"
	"github.com/onetimesecret/onetimesecret-sub010/internal/idempotency"
	"github.com/onetimesecret/onetimesecret-sub010/internal/rabbitmq"
	"github.com/onetimesecret/onetimesecret-sub010/internal/stats"
	"github.com/onetimesecret/onetimesecret-sub010/jobs"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("jobworker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := rabbitmq.NewConnectionManager(cfg.AMQPURL, rabbitmq.WithConnectionLogger(logger))
	if err := manager.Connect(ctx); err != nil {
		return err
	}
	defer manager.Close()

	pool, err := rabbitmq.NewChannelPool(manager)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := rabbitmq.NewTopologyManager(pool).Declare(ctx, rabbitmq.JobTopology()); err != nil {
		return err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	ledger := idempotency.NewRedisLedger(redisClient)
	recorder := stats.NewRollingCounters(redisClient, cfg.StatsRetention)

	workers := []*jobs.Worker{
		jobs.NewBillingWorker(loggingBillingProcessor{logger: logger},
			jobs.WithLedger(ledger),
			jobs.WithIdempotencyTTL(cfg.IdempotencyTTL),
			jobs.WithRetryDelay(cfg.BillingRetryDelay),
			jobs.WithWorkerLogger(logger),
		),
		jobs.NewNotificationWorker(loggingNotificationDispatcher{logger: logger},
			jobs.WithLedger(ledger),
			jobs.WithIdempotencyTTL(cfg.IdempotencyTTL),
			jobs.WithRetryDelay(cfg.NotificationRetryDelay),
			jobs.WithWorkerLogger(logger),
		),
		jobs.NewEmailWorker(loggingEmailSender{logger: logger},
			jobs.WithWorkerLogger(logger),
		),
		jobs.NewTransientWorker(recorder,
			jobs.WithWorkerLogger(logger),
		),
	}

	consumer := rabbitmq.NewConsumer(pool,
		rabbitmq.WithPrefetchCount(cfg.PrefetchCount),
		rabbitmq.WithConsumerLogger(logger),
	)
	for _, worker := range workers {
		if err := consumer.Subscribe(ctx, worker.Queue(), worker.DeliveryHandler()); err != nil {
			return err
		}
	}

	logger.Info("jobworker running", "queues", consumer.ActiveQueues())
	<-ctx.Done()

	logger.Info("jobworker shutting down")
	return consumer.UnsubscribeAll()
}

// The downstream operations are external collaborators; these stand-ins log
// what a deployment would wire to real billing, notification, and email
// services.

type loggingBillingProcessor struct {
	logger *slog.Logger
}

func (p loggingBillingProcessor) Process(ctx context.Context, event jobs.BillingEvent) error {
	p.logger.Info("processing billing event", "eventId", event.EventID, "eventType", event.EventType)
	return nil
}

type loggingNotificationDispatcher struct {
	logger *slog.Logger
}

func (d loggingNotificationDispatcher) Dispatch(ctx context.Context, n jobs.Notification) (jobs.ChannelResults, error) {
	d.logger.Info("dispatching notification", "type", n.Type, "addressee", n.Addressee)
	return jobs.ChannelResults{}, nil
}

type loggingEmailSender struct {
	logger *slog.Logger
}

func (s loggingEmailSender) Send(ctx context.Context, email contracts.Email) error {
	s.logger.Info("sending email", "to", email.To, "template", email.Template)
	return nil
}
