package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fjod/agromarket/internal/config"
	"github.com/fjod/agromarket/internal/events"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func consumeOrdersCommand() *cli.Command {
	return &cli.Command{
		Name:  "consume-orders",
		Usage: "fold completed checkouts into buyer profile counters",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return consumeOrders(c.Context, cfg)
		},
	}
}

func consumeOrders(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg.Log)
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("AGRO_KAFKA_BROKERS is required")
	}
	if cfg.Redis.Addr == "" {
		log.Warn("embedded redis is private to this process, profile change notifications will not reach the API")
	}

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := events.NewOrderConsumer(in.store, log, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
	defer consumer.Close()

	log.WithField("topic", cfg.Kafka.Topic).Info("order consumer started")
	consumer.Run(ctx)
	log.Info("order consumer stopped")
	return nil
}
