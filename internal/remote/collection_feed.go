package remote

import (
	"context"

	"github.com/fjod/agromarket/internal/feed"
	"github.com/fjod/agromarket/internal/repository"
)

// CollectionFeed pushes the full contents of a collection on every change.
// The empty key selects the whole collection; any other key selects the
// records whose scope field equals it.
type CollectionFeed[T any] struct {
	repo       repository.RecordRepository
	notifier   *Notifier
	collection string
	scopeField string
}

func NewCollectionFeed[T any](repo repository.RecordRepository, notifier *Notifier, collection, scopeField string) *CollectionFeed[T] {
	return &CollectionFeed[T]{
		repo:       repo,
		notifier:   notifier,
		collection: collection,
		scopeField: scopeField,
	}
}

func (f *CollectionFeed[T]) Subscribe(ctx context.Context, key string, sink feed.Sink[[]T]) (feed.Unsubscribe, error) {
	ps, err := f.notifier.subscribe(ctx, recordsTopic(f.collection))
	if err != nil {
		return nil, err
	}

	var filter repository.Filter
	if key != "" {
		filter = repository.Filter{f.scopeField: key}
	}
	load := func(ctx context.Context) {
		records := make([]T, 0)
		if err := f.repo.List(ctx, f.collection, filter, &records); err != nil {
			if ctx.Err() == nil {
				sink.Fail(err)
			}
			return
		}
		sink.Deliver(records)
	}
	return watch(ps, load, func(string) bool { return true }), nil
}
