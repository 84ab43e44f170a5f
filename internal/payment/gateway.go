package payment

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidDetails = errors.New("invalid payment details")

type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "SUCCEEDED"
	ChargeFailed    ChargeStatus = "FAILED"
)

type Refusal int

const (
	RefusalUnknown Refusal = iota
	RefusalInsufficientFunds
	RefusalCardDeclined
	RefusalExpiredCard
	RefusalFraudSuspected
	RefusalLimitExceeded
)

func (r Refusal) String() string {
	switch r {
	case RefusalInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case RefusalCardDeclined:
		return "CARD_DECLINED"
	case RefusalExpiredCard:
		return "EXPIRED_CARD"
	case RefusalFraudSuspected:
		return "FRAUD_SUSPECTED"
	case RefusalLimitExceeded:
		return "LIMIT_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

type PaymentDetails struct {
	HolderName string `json:"holderName"`
	CardNumber string `json:"cardNumber"`
	Expiry     string `json:"expiry"` // MM/YY
	CVV        string `json:"cvv"`
}

var (
	cardNumberRe = regexp.MustCompile(`^[0-9]{12,19}$`)
	cvvRe        = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// Validate checks the card fields against now.
func (d PaymentDetails) Validate(now time.Time) error {
	number := strings.ReplaceAll(d.CardNumber, " ", "")
	if !cardNumberRe.MatchString(number) {
		return errors.Wrap(ErrInvalidDetails, "card number")
	}
	if !cvvRe.MatchString(d.CVV) {
		return errors.Wrap(ErrInvalidDetails, "cvv")
	}
	exp, err := time.Parse("01/06", d.Expiry)
	if err != nil {
		return errors.Wrap(ErrInvalidDetails, "expiry")
	}
	// cards are valid through the last day of the expiry month
	if !now.Before(exp.AddDate(0, 1, 0)) {
		return errors.Wrap(ErrInvalidDetails, "card expired")
	}
	return nil
}

type ChargeRequest struct {
	CheckoutID string
	BuyerID    string
	Amount     float64
	Currency   string
	Details    PaymentDetails
}

type ChargeResult struct {
	Status        ChargeStatus
	TransactionID string
	Refusal       Refusal
	Reason        string
}

func (r *ChargeResult) Succeeded() bool {
	return r != nil && r.Status == ChargeSucceeded
}

// Gateway charges a buyer. A returned error means the outcome is unknown
// or the request never reached the processor; a refused charge is a result
// with status FAILED.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
