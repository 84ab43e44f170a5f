package feed

import "context"

// Unsubscribe stops an underlying feed. It must be safe to call once.
type Unsubscribe func()

// Sink receives pushes from an underlying feed.
type Sink[T any] struct {
	Deliver func(T)
	Fail    func(error)
}

// Source is a push-based feed keyed by a logical key (record id, client id,
// collection scope). Subscribe returns once the feed is established; values
// are then pushed to the sink from the source's own goroutine.
type Source[T any] interface {
	Subscribe(ctx context.Context, key string, sink Sink[T]) (Unsubscribe, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc[T any] func(ctx context.Context, key string, sink Sink[T]) (Unsubscribe, error)

func (f SourceFunc[T]) Subscribe(ctx context.Context, key string, sink Sink[T]) (Unsubscribe, error) {
	return f(ctx, key, sink)
}
