package checkout

import (
	"context"
	"sync"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/payment"
)

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	m       sync.RWMutex
	result  *payment.ChargeResult
	err     error
	release chan struct{}
	started chan struct{}
	reqs    []payment.ChargeRequest
}

func (g *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.m.Lock()
	g.reqs = append(g.reqs, req)
	release, started := g.release, g.started
	g.m.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.result, g.err
}

func (g *MockGateway) requests() []payment.ChargeRequest {
	g.m.RLock()
	defer g.m.RUnlock()
	return append([]payment.ChargeRequest(nil), g.reqs...)
}

// MockPublisher records published events
type MockPublisher struct {
	m      sync.RWMutex
	events []domain.CheckoutCompleted
	err    error
}

func (p *MockPublisher) PublishCheckoutCompleted(_ context.Context, e domain.CheckoutCompleted) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *MockPublisher) published() []domain.CheckoutCompleted {
	p.m.RLock()
	defer p.m.RUnlock()
	return append([]domain.CheckoutCompleted(nil), p.events...)
}
