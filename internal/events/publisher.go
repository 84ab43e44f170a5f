package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const TopicCheckoutCompleted = "checkout-completed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes checkout events keyed by checkout id, so events of
// one checkout stay on one partition.
type KafkaPublisher struct {
	writer messageWriter
	log    logrus.FieldLogger
}

func NewKafkaPublisher(log logrus.FieldLogger, topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal checkout event")
	}

	msg := kafka.Message{
		Key:   []byte(event.CheckoutID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to publish checkout %s", event.CheckoutID)
	}

	p.log.WithFields(logrus.Fields{
		"checkout_id": event.CheckoutID,
		"event_type":  event.Type(),
	}).Debug("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishCheckoutCompleted(context.Context, domain.CheckoutCompleted) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
