package client

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/agromarket/internal/checkout"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/feed"
	"github.com/fjod/agromarket/internal/payment"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrRegistryClosed = errors.New("client registry closed")

type Pricing struct {
	CommissionRate       float64
	DefaultProductRating float64
	Currency             string
}

// Deps are the shared feeds and collaborators every workspace is built on.
type Deps struct {
	Principals *feed.Channel[string]
	Profiles   *feed.Channel[*domain.Session]
	Products   *feed.Channel[[]domain.ProductRecord]
	Gateway    payment.Gateway
	Publisher  checkout.Publisher
	Pricing    Pricing
	Log        logrus.FieldLogger
}

type Options struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

// Registry owns the workspaces of connected clients. A workspace is built
// on first use and evicted once it has been idle for IdleTimeout, unless a
// checkout is still running.
type Registry struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*Workspace
	closed     bool
	sfg        singleflight.Group

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewRegistry(deps Deps, opts Options) *Registry {
	r := &Registry{
		deps:        deps,
		opts:        opts,
		now:         time.Now,
		workspaces:  make(map[string]*Workspace),
		stopCleanup: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Get returns the workspace for clientID, creating it on first use.
func (r *Registry) Get(ctx context.Context, clientID string) (*Workspace, error) {
	r.mu.RLock()
	w, ok := r.workspaces[clientID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrRegistryClosed
	}
	if ok {
		w.touch(r.now())
		return w, nil
	}

	v, err, _ := r.sfg.Do(clientID, func() (interface{}, error) {
		return r.create(ctx, clientID)
	})
	if err != nil {
		return nil, err
	}
	w = v.(*Workspace)
	w.touch(r.now())
	return w, nil
}

func (r *Registry) create(ctx context.Context, clientID string) (*Workspace, error) {
	r.mu.RLock()
	if w, ok := r.workspaces[clientID]; ok {
		r.mu.RUnlock()
		return w, nil
	}
	r.mu.RUnlock()

	w := newWorkspace(clientID, r.deps)
	w.touch(r.now())
	if err := w.start(ctx); err != nil {
		w.close()
		return nil, errors.Wrapf(err, "failed to start workspace %s", clientID)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		w.close()
		return nil, ErrRegistryClosed
	}
	r.workspaces[clientID] = w
	r.mu.Unlock()

	r.deps.Log.WithField("client_id", clientID).Debug("workspace created")
	return w, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

// cleanupLoop periodically evicts idle workspaces
func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *Registry) evictIdle() {
	now := r.now()
	var evicted []*Workspace

	r.mu.Lock()
	for id, w := range r.workspaces {
		if w.idleSince(now) < r.opts.IdleTimeout || w.Checkout.InFlight() {
			continue
		}
		delete(r.workspaces, id)
		evicted = append(evicted, w)
	}
	r.mu.Unlock()

	for _, w := range evicted {
		w.close()
		r.deps.Log.WithField("client_id", w.ID).Debug("workspace evicted")
	}
}

// Close stops the cleanup loop and closes every workspace.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	workspaces := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()

	close(r.stopCleanup)
	r.wg.Wait()

	for _, w := range workspaces {
		w.close()
	}
	return nil
}
