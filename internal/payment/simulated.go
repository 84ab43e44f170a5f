package payment

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type StatusSource interface {
	GetStatus() (ChargeStatus, Refusal, string)
}

type RandomStatus struct{}

func (RandomStatus) GetStatus() (ChargeStatus, Refusal, string) {
	randomInt := rand.Intn(101) // 101 because Intn is exclusive of the upper bound
	return calcStatus(randomInt)
}

func calcStatus(randomInt int) (ChargeStatus, Refusal, string) {
	if randomInt < 95 {
		return ChargeSucceeded, RefusalUnknown, ""
	}
	otherReason := randomInt - 95
	if otherReason == 0 || otherReason > 5 {
		return ChargeFailed, RefusalUnknown, "unknown reason"
	}
	refusal := Refusal(otherReason)
	return ChargeFailed, refusal, refusal.String()
}

// AlwaysSucceed approves every charge.
type AlwaysSucceed struct{}

func (AlwaysSucceed) GetStatus() (ChargeStatus, Refusal, string) {
	return ChargeSucceeded, RefusalUnknown, ""
}

// SimulatedGateway stands in for a card processor: it validates the card,
// waits for the processing delay and takes the outcome from a StatusSource.
type SimulatedGateway struct {
	delay  time.Duration
	status StatusSource
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewSimulatedGateway(delay time.Duration, status StatusSource, log logrus.FieldLogger) *SimulatedGateway {
	return &SimulatedGateway{
		delay:  delay,
		status: status,
		now:    time.Now,
		log:    log,
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := req.Details.Validate(g.now()); err != nil {
		return nil, err
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	status, refusal, reason := g.status.GetStatus()
	result := &ChargeResult{
		Status:  status,
		Refusal: refusal,
		Reason:  reason,
	}
	if status == ChargeSucceeded {
		result.TransactionID = "TXN-" + uuid.New().String()
	}

	g.log.WithFields(logrus.Fields{
		"checkout_id": req.CheckoutID,
		"amount":      req.Amount,
		"status":      status,
		"refusal":     refusal.String(),
	}).Info("charge processed")
	return result, nil
}
