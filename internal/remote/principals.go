package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/agromarket/internal/feed"
	"github.com/redis/go-redis/v9"
)

const minExpiryRecheck = 50 * time.Millisecond

// Principals binds a client to the principal signed in on it. The principal
// feed of a client delivers the bound principal id, or "" when none.
type Principals struct {
	client   *redis.Client
	notifier *Notifier
	ttl      time.Duration
}

func NewPrincipals(client *redis.Client, ttl time.Duration) *Principals {
	return &Principals{
		client:   client,
		notifier: NewNotifier(client),
		ttl:      ttl,
	}
}

func (p *Principals) Bind(ctx context.Context, clientID, principalID string) error {
	if err := p.client.Set(ctx, principalKey(clientID), principalID, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return p.announce(ctx, clientID, principalID)
}

func (p *Principals) Clear(ctx context.Context, clientID string) error {
	if err := p.client.Del(ctx, principalKey(clientID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return p.announce(ctx, clientID, "")
}

func (p *Principals) Get(ctx context.Context, clientID string) (string, error) {
	id, err := p.client.Get(ctx, principalKey(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return id, nil
}

// Subscribe delivers the bound principal, then every change to it. A binding
// that expires is delivered as "" once its TTL has passed.
func (p *Principals) Subscribe(ctx context.Context, clientID string, sink feed.Sink[string]) (feed.Unsubscribe, error) {
	ps, err := p.notifier.subscribe(ctx, principalTopic(clientID))
	if err != nil {
		return nil, err
	}

	var (
		last      string
		delivered bool
	)
	load := func(ctx context.Context) time.Duration {
		id, ttl, err := p.lookup(ctx, clientID)
		if err != nil {
			if ctx.Err() == nil {
				sink.Fail(err)
			}
			return 0
		}
		if !delivered || id != last {
			last, delivered = id, true
			sink.Deliver(id)
		}
		if id == "" || ttl <= 0 {
			return 0
		}
		return max(ttl, minExpiryRecheck)
	}
	return watchUntil(ps, load, func(string) bool { return true }), nil
}

// lookup reads the bound principal together with its remaining TTL.
func (p *Principals) lookup(ctx context.Context, clientID string) (string, time.Duration, error) {
	pipe := p.client.Pipeline()
	get := pipe.Get(ctx, principalKey(clientID))
	pttl := pipe.PTTL(ctx, principalKey(clientID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, fmt.Errorf("redis get failed: %w", err)
	}

	id, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("redis get failed: %w", err)
	}
	return id, pttl.Val(), nil
}

func (p *Principals) announce(ctx context.Context, clientID, principalID string) error {
	if err := p.client.Publish(ctx, principalTopic(clientID), principalID).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func principalKey(clientID string) string {
	return fmt.Sprintf("principal:%s", clientID)
}

func principalTopic(clientID string) string {
	return fmt.Sprintf("principals:%s", clientID)
}
