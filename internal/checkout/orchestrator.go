package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/payment"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Cart is what checkout needs from the buyer's cart.
type Cart interface {
	Snapshot() ([]domain.CartLineItem, domain.Totals)
	Clear()
}

type Publisher interface {
	PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error
}

type Options struct {
	Currency       string
	PublishTimeout time.Duration
}

// Orchestrator runs one buyer's checkouts: Idle, Submitting, Charging, then
// Succeeded or Failed. At most one checkout is in flight at a time.
type Orchestrator struct {
	cart      Cart
	gateway   payment.Gateway
	publisher Publisher
	log       logrus.FieldLogger
	opts      Options
	now       func() time.Time

	mu           sync.Mutex
	current      *domain.CheckoutSession
	inFlight     bool
	listeners    map[int]func(*domain.CheckoutSession)
	nextListener int
}

func NewOrchestrator(cart Cart, gateway payment.Gateway, publisher Publisher, log logrus.FieldLogger, opts Options) *Orchestrator {
	if opts.Currency == "" {
		opts.Currency = domain.DefaultCurrency
	}
	if opts.PublishTimeout == 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	return &Orchestrator{
		cart:      cart,
		gateway:   gateway,
		publisher: publisher,
		log:       log,
		opts:      opts,
		now:       time.Now,
		listeners: make(map[int]func(*domain.CheckoutSession)),
	}
}

// Checkout freezes the cart into a new session and charges it. The charge
// runs to a terminal state even if ctx is cancelled. A refused or failed
// charge is reported through the returned session's state, not as an error.
func (o *Orchestrator) Checkout(ctx context.Context, buyerID string, details payment.PaymentDetails) (*domain.CheckoutSession, error) {
	session, err := o.begin(buyerID)
	if err != nil {
		return nil, err
	}
	log := o.log.WithFields(logrus.Fields{
		"checkout_id": session.ID,
		"buyer_id":    buyerID,
	})
	defer o.finish()

	if err := o.transition(session, domain.CheckoutStateCharging, nil); err != nil {
		return nil, err
	}
	log.WithField("total", session.Total).Info("charging checkout")

	chargeCtx := context.WithoutCancel(ctx)
	result, err := o.gateway.Charge(chargeCtx, payment.ChargeRequest{
		CheckoutID: session.ID,
		BuyerID:    buyerID,
		Amount:     session.Total,
		Currency:   session.Currency,
		Details:    details,
	})

	switch {
	case err != nil:
		log.WithError(err).Warn("charge failed")
		o.fail(session, err.Error())
	case result == nil:
		log.Warn("charge returned no result")
		o.fail(session, "gateway returned no result")
	case !result.Succeeded():
		reason := result.Reason
		if reason == "" {
			reason = result.Refusal.String()
		}
		log.WithField("reason", reason).Info("charge refused")
		o.fail(session, reason)
	default:
		if err := o.transition(session, domain.CheckoutStateSucceeded, func(s *domain.CheckoutSession) {
			s.TransactionID = result.TransactionID
		}); err != nil {
			return nil, err
		}
		o.cart.Clear()
		log.WithField("transaction_id", result.TransactionID).Info("checkout succeeded")
		o.publish(chargeCtx, session.ID, log)
	}

	return o.Current(), nil
}

// Current returns a copy of the latest session, or nil before the first
// checkout.
func (o *Orchestrator) Current() *domain.CheckoutSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.Clone()
}

func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Subscribe registers fn for every state change of the current session.
func (o *Orchestrator) Subscribe(fn func(*domain.CheckoutSession)) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

func (o *Orchestrator) begin(buyerID string) (*domain.CheckoutSession, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	items, totals := o.cart.Snapshot()
	if len(items) == 0 {
		o.mu.Unlock()
		return nil, ErrEmptyCart
	}

	now := o.now()
	session := &domain.CheckoutSession{
		ID:            uuid.New().String(),
		BuyerID:       buyerID,
		Items:         items,
		Subtotal:      totals.Subtotal,
		CommissionFee: totals.CommissionFee,
		Total:         totals.Total,
		Currency:      o.opts.Currency,
		State:         domain.CheckoutStateIdle,
		CapturedAt:    now,
		UpdatedAt:     now,
	}
	o.inFlight = true
	o.current = session
	o.mu.Unlock()

	if err := o.transition(session, domain.CheckoutStateSubmitting, nil); err != nil {
		o.finish()
		return nil, err
	}
	return session, nil
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false
}

func (o *Orchestrator) fail(session *domain.CheckoutSession, reason string) {
	err := o.transition(session, domain.CheckoutStateFailed, func(s *domain.CheckoutSession) {
		s.Reason = reason
	})
	if err != nil {
		o.log.WithField("checkout_id", session.ID).WithError(err).Error("failed to mark checkout failed")
	}
}

// transition moves session to state, applying mutate under the lock.
func (o *Orchestrator) transition(session *domain.CheckoutSession, to domain.CheckoutState, mutate func(*domain.CheckoutSession)) error {
	o.mu.Lock()
	if !domain.CanTransitionTo(session.State, to) {
		o.mu.Unlock()
		return ErrIllegalTransition
	}
	session.State = to
	session.UpdatedAt = o.now()
	if mutate != nil {
		mutate(session)
	}
	snapshot := session.Clone()
	listeners := make([]func(*domain.CheckoutSession), 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot.Clone())
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, checkoutID string, log logrus.FieldLogger) {
	o.mu.Lock()
	s := o.current.Clone()
	o.mu.Unlock()
	if s == nil || s.ID != checkoutID {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.PublishTimeout)
	defer cancel()
	err := o.publisher.PublishCheckoutCompleted(ctx, domain.CheckoutCompleted{
		CheckoutID:    s.ID,
		BuyerID:       s.BuyerID,
		Items:         s.Items,
		Subtotal:      s.Subtotal,
		CommissionFee: s.CommissionFee,
		Total:         s.Total,
		Currency:      s.Currency,
		TransactionID: s.TransactionID,
		CompletedAt:   s.UpdatedAt,
	})
	if err != nil {
		log.WithError(err).Error("failed to publish checkout completed")
	}
}
