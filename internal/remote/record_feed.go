package remote

import (
	"context"
	"errors"

	"github.com/fjod/agromarket/internal/feed"
	"github.com/fjod/agromarket/internal/repository"
)

// RecordFeed pushes snapshots of a single record; nil means the record is
// absent.
type RecordFeed[T any] struct {
	repo       repository.RecordRepository
	notifier   *Notifier
	collection string
}

func NewRecordFeed[T any](repo repository.RecordRepository, notifier *Notifier, collection string) *RecordFeed[T] {
	return &RecordFeed[T]{repo: repo, notifier: notifier, collection: collection}
}

func (f *RecordFeed[T]) Subscribe(ctx context.Context, id string, sink feed.Sink[*T]) (feed.Unsubscribe, error) {
	ps, err := f.notifier.subscribe(ctx, recordsTopic(f.collection))
	if err != nil {
		return nil, err
	}

	load := func(ctx context.Context) {
		var rec T
		err := f.repo.Get(ctx, f.collection, id, &rec)
		switch {
		case err == nil:
			sink.Deliver(&rec)
		case errors.Is(err, repository.ErrNotFound):
			sink.Deliver(nil)
		case ctx.Err() != nil:
		default:
			sink.Fail(err)
		}
	}
	return watch(ps, load, func(payload string) bool { return payload == id }), nil
}
