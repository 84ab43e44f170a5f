package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/agromarket/internal/cart"
	"github.com/fjod/agromarket/internal/catalog"
	"github.com/fjod/agromarket/internal/checkout"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/session"
	"github.com/sirupsen/logrus"
)

// Workspace is everything the marketplace keeps for one client: the
// signed-in session, the cart and its checkout, and for farmers the feed of
// their own listings.
type Workspace struct {
	ID       string
	Session  *session.Sync
	Cart     *cart.Store
	Checkout *checkout.Orchestrator

	deps     Deps
	log      logrus.FieldLogger
	lastSeen atomic.Int64

	mu       sync.Mutex
	owner    *catalog.Sync
	ownerKey string
	unwatch  func()
	closed   bool
}

func newWorkspace(id string, deps Deps) *Workspace {
	log := deps.Log.WithField("client_id", id)
	c := cart.NewStore(deps.Pricing.CommissionRate)
	w := &Workspace{
		ID:      id,
		Session: session.NewSync(id, deps.Principals, deps.Profiles, deps.Log),
		Cart:    c,
		Checkout: checkout.NewOrchestrator(c, deps.Gateway, deps.Publisher, log, checkout.Options{
			Currency: deps.Pricing.Currency,
		}),
		deps: deps,
		log:  log,
	}
	w.unwatch = w.Session.Subscribe(w.onSession)
	return w
}

func (w *Workspace) start(ctx context.Context) error {
	return w.Session.Start(ctx)
}

// onSession closes the farmer's owner feed when the signed-in user goes
// away. The cart is left alone.
func (w *Workspace) onSession(s *domain.Session) {
	if s != nil {
		return
	}

	w.mu.Lock()
	owner := w.owner
	w.owner, w.ownerKey = nil, ""
	w.mu.Unlock()
	if owner != nil {
		owner.Close()
	}
}

// OwnerListings returns the live feed of the signed-in farmer's own
// products, unverified ones included.
func (w *Workspace) OwnerListings(ctx context.Context) (*catalog.Sync, error) {
	snap := w.Session.Current()
	if snap.State != session.Active || snap.Session.Role != domain.RoleFarmer {
		return nil, catalog.ErrNotFarmer
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if w.owner != nil && w.ownerKey == snap.PrincipalID {
		owner := w.owner
		w.mu.Unlock()
		return owner, nil
	}
	stale := w.owner
	w.owner, w.ownerKey = nil, ""
	w.mu.Unlock()
	if stale != nil {
		stale.Close()
	}

	owner := catalog.NewSync(w.deps.Products, catalog.Options{Key: snap.PrincipalID}, catalog.Defaults{
		Rating: w.deps.Pricing.DefaultProductRating,
	}, w.log)
	if err := owner.Start(ctx); err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.closed || w.owner != nil {
		// closed, or a concurrent call won
		existing := w.owner
		w.mu.Unlock()
		owner.Close()
		if existing == nil {
			return nil, ErrRegistryClosed
		}
		return existing, nil
	}
	w.owner, w.ownerKey = owner, snap.PrincipalID
	w.mu.Unlock()
	return owner, nil
}

func (w *Workspace) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.lastSeen.Load()))
}

func (w *Workspace) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	owner := w.owner
	w.owner = nil
	w.mu.Unlock()

	w.unwatch()
	w.Session.Close()
	if owner != nil {
		owner.Close()
	}
}
