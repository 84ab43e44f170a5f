package payment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type BreakerOptions struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
	// ChargeTimeout bounds a single charge.
	ChargeTimeout time.Duration
}

// BreakerGateway guards a gateway with a circuit breaker. Only transport
// errors count as failures; a refused charge is a normal result.
type BreakerGateway struct {
	next    Gateway
	cb      *gobreaker.CircuitBreaker[*ChargeResult]
	timeout time.Duration
}

func NewBreakerGateway(next Gateway, opts BreakerOptions, log logrus.FieldLogger) *BreakerGateway {
	threshold := opts.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[*ChargeResult](gobreaker.Settings{
		Name:        "payment",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidDetails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
	return &BreakerGateway{next: next, cb: cb, timeout: opts.ChargeTimeout}
}

func (g *BreakerGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	result, err := g.cb.Execute(func() (*ChargeResult, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.next.Charge(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrGatewayUnavailable, err.Error())
	}
	return result, err
}

func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}
