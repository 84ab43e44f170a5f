package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/agromarket/internal/feed"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	Profiles    = "profiles"
	Products    = "products"
	Credentials = "credentials"

	// ProductOwnerField scopes product feeds to one farmer.
	ProductOwnerField = "ownerId"
)

// Notifier announces record changes over Redis pub/sub. The payload of a
// change message is the id of the record that changed.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Publish(ctx context.Context, collection, id string) error {
	if err := n.client.Publish(ctx, recordsTopic(collection), id).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// subscribe returns once Redis has confirmed the subscription, so no change
// published afterwards can be missed.
func (n *Notifier) subscribe(ctx context.Context, topic string) (*redis.PubSub, error) {
	ps := n.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrapf(err, "subscribe %s", topic)
	}
	return ps, nil
}

func recordsTopic(collection string) string {
	return fmt.Sprintf("records:%s", collection)
}

// watch loads once, then reloads on every relevant change message until the
// returned Unsubscribe is called.
func watch(ps *redis.PubSub, load func(context.Context), relevant func(payload string) bool) feed.Unsubscribe {
	return watchUntil(ps, func(ctx context.Context) time.Duration {
		load(ctx)
		return 0
	}, relevant)
}

// watchUntil is watch for values that lapse on their own: load returns how
// long the loaded value stays valid, and the value is reloaded once that
// passes. Zero means it never lapses.
func watchUntil(ps *redis.PubSub, load func(context.Context) time.Duration, relevant func(payload string) bool) feed.Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()

		rearm := func(d time.Duration) {
			timer.Stop()
			if d > 0 {
				timer.Reset(d)
			}
		}

		rearm(load(ctx))
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				rearm(load(ctx))
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if relevant(msg.Payload) {
					rearm(load(ctx))
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}
}
