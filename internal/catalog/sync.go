package catalog

import (
	"context"
	"sync"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/feed"
	"github.com/sirupsen/logrus"
)

const (
	UnknownOwner    = "Unknown Farmer"
	UnknownLocation = "Unknown location"
)

// Defaults fills fields missing from stored records.
type Defaults struct {
	Rating float64
}

// Options selects which records a Sync follows. An empty Key follows the
// whole collection; an owner id follows that owner's listings.
type Options struct {
	Key           string
	PublishedOnly bool
}

// Sync keeps a read model of the product collection. Each delivery replaces
// the snapshot; a feed error keeps the last good one.
type Sync struct {
	ch       *feed.Channel[[]domain.ProductRecord]
	opts     Options
	defaults Defaults
	log      logrus.FieldLogger

	mu           sync.RWMutex
	products     []domain.Product
	byID         map[string]int
	err          error
	handle       *feed.Handle[[]domain.ProductRecord]
	listeners    map[int]func([]domain.Product)
	nextListener int
	ready        chan struct{}
	readyOnce    sync.Once
	closed       bool
}

func NewSync(ch *feed.Channel[[]domain.ProductRecord], opts Options, defaults Defaults, log logrus.FieldLogger) *Sync {
	return &Sync{
		ch:        ch,
		opts:      opts,
		defaults:  defaults,
		log:       log.WithFields(logrus.Fields{"component": "catalog", "scope": opts.Key}),
		byID:      make(map[string]int),
		listeners: make(map[int]func([]domain.Product)),
		ready:     make(chan struct{}),
	}
}

func (s *Sync) Start(ctx context.Context) error {
	h, err := s.ch.Open(ctx, s.opts.Key, s.onRecords, s.onError)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.Close()
		return nil
	}
	s.handle = h
	s.mu.Unlock()
	return nil
}

func (s *Sync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		h.Close()
	}
}

// Snapshot returns a copy of the current product list.
func (s *Sync) Snapshot() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...)
}

func (s *Sync) Lookup(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return s.products[i], true
}

// Ready is closed once the first snapshot has arrived.
func (s *Sync) Ready() <-chan struct{} {
	return s.ready
}

// Err returns the last feed error, cleared by the next good delivery.
func (s *Sync) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Sync) Subscribe(fn func([]domain.Product)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Sync) onRecords(records []domain.ProductRecord) {
	products := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		if s.opts.PublishedOnly && !rec.Verified {
			continue
		}
		products = append(products, Normalize(rec, s.defaults))
	}
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.products = products
	s.byID = byID
	s.err = nil
	listeners := make([]func([]domain.Product), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	s.log.WithField("count", len(products)).Debug("catalog snapshot")

	// deliveries are serialized by the feed handle
	for _, fn := range listeners {
		fn(append([]domain.Product(nil), products...))
	}
}

func (s *Sync) onError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.log.WithError(err).Warn("catalog feed error, keeping last snapshot")
}

// Normalize turns a stored record into a Product, filling missing fields.
func Normalize(rec domain.ProductRecord, d Defaults) domain.Product {
	p := domain.Product{
		ID:                rec.ID,
		Name:              rec.Name,
		Price:             rec.Price,
		Unit:              rec.Unit,
		OwnerID:           rec.OwnerID,
		OwnerName:         rec.OwnerName,
		Location:          rec.Location,
		Category:          rec.Category,
		Description:       rec.Description,
		ImageRef:          rec.ImageRef,
		QuantityAvailable: rec.QuantityAvailable,
		Verified:          rec.Verified,
		Rating:            rec.Rating,
	}
	if p.OwnerName == "" {
		p.OwnerName = UnknownOwner
	}
	if p.Location == "" {
		p.Location = UnknownLocation
	}
	if p.Rating == 0 {
		p.Rating = d.Rating
	}
	if p.Category == "" {
		p.Category = domain.CategoryOther
	}
	if p.Price < 0 {
		p.Price = 0
	}
	if p.QuantityAvailable < 0 {
		p.QuantityAvailable = 0
	}
	return p
}
