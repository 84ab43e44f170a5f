package events

import (
	"context"
	"encoding/json"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/remote"
	"github.com/fjod/agromarket/internal/repository"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProfileUpdater is the write primitive used to bump buyer counters.
type ProfileUpdater interface {
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
}

// OrderConsumer folds completed checkouts into the buyer's profile
// counters.
type OrderConsumer struct {
	reader   messageReader
	profiles ProfileUpdater
	log      logrus.FieldLogger
}

func NewOrderConsumer(profiles ProfileUpdater, log logrus.FieldLogger, topic, groupID string, brokers ...string) *OrderConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &OrderConsumer{reader: reader, profiles: profiles, log: log}
}

func (c *OrderConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *OrderConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.WithError(err).Error("error closing reader")
	}
}

func (c *OrderConsumer) consumeOne(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.WithError(err).Error("error reading message")
		}
		return
	}

	if err := c.handle(ctx, m); err != nil {
		// left uncommitted; redelivered after a restart
		c.log.WithFields(logrus.Fields{
			"partition": m.Partition,
			"offset":    m.Offset,
		}).WithError(err).Error("failed to apply order")
		return
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.WithError(err).Error("failed to commit message")
	}
}

func (c *OrderConsumer) handle(ctx context.Context, m kafka.Message) error {
	var event domain.CheckoutCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.WithError(err).Warn("skipping malformed checkout event")
		return nil
	}
	if event.BuyerID == "" {
		c.log.WithField("checkout_id", event.CheckoutID).Warn("skipping checkout event without buyer")
		return nil
	}

	err := c.profiles.Update(ctx, remote.Profiles, event.BuyerID, map[string]interface{}{
		"ordersPlaced": repository.Increment{By: 1},
		"totalSpent":   repository.Increment{By: event.Total},
	})
	var werr *domain.WriteError
	if errors.As(err, &werr) && werr.Code == domain.WriteNotFound {
		c.log.WithField("buyer_id", event.BuyerID).Warn("buyer profile not found, skipping order")
		return nil
	}
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"checkout_id": event.CheckoutID,
		"buyer_id":    event.BuyerID,
		"total":       event.Total,
	}).Info("order recorded")
	return nil
}
