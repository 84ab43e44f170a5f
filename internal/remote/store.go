package remote

import (
	"context"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/repository"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store is the write primitive. Every successful write is announced to the
// feeds watching the collection.
type Store struct {
	repo     repository.RecordRepository
	notifier *Notifier
	log      logrus.FieldLogger
}

func NewStore(repo repository.RecordRepository, notifier *Notifier, log logrus.FieldLogger) *Store {
	return &Store{repo: repo, notifier: notifier, log: log}
}

// Write creates the record or merges fields into it.
func (s *Store) Write(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := s.repo.Merge(ctx, collection, id, fields); err != nil {
		return categorize("write "+collection, err)
	}
	s.announce(ctx, collection, id)
	return nil
}

// Create fails with already-exists when the record is present.
func (s *Store) Create(ctx context.Context, collection, id string, fields map[string]interface{}) (string, error) {
	id, err := s.repo.Create(ctx, collection, id, fields)
	if err != nil {
		return "", categorize("create "+collection, err)
	}
	s.announce(ctx, collection, id)
	return id, nil
}

// Update fails with not-found when the record is missing.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := s.repo.Update(ctx, collection, id, fields); err != nil {
		return categorize("update "+collection, err)
	}
	s.announce(ctx, collection, id)
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string, out interface{}) error {
	if err := s.repo.Get(ctx, collection, id, out); err != nil {
		return categorize("get "+collection, err)
	}
	return nil
}

func (s *Store) announce(ctx context.Context, collection, id string) {
	if err := s.notifier.Publish(ctx, collection, id); err != nil {
		// the write stands; readers catch up on the next change
		s.log.WithFields(logrus.Fields{"collection": collection, "id": id}).
			WithError(err).Warn("change notification failed")
	}
}

func categorize(op string, err error) error {
	var werr *domain.WriteError
	if errors.As(err, &werr) {
		return werr
	}
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return domain.NewWriteError(domain.WriteAlreadyExists, op, err)
	case errors.Is(err, repository.ErrNotFound):
		return domain.NewWriteError(domain.WriteNotFound, op, err)
	default:
		return domain.NewWriteError(domain.WriteUnknown, op, errors.WithStack(err))
	}
}
