package domain

import "time"

const DefaultCurrency = "NGN"

// CheckoutSession is the cart state frozen at checkout time.
type CheckoutSession struct {
	ID            string         `json:"id"`
	BuyerID       string         `json:"buyerId,omitempty"`
	Items         []CartLineItem `json:"items"`
	Subtotal      float64        `json:"subtotal"`
	CommissionFee float64        `json:"commissionFee"`
	Total         float64        `json:"total"`
	Currency      string         `json:"currency"`
	State         CheckoutState  `json:"state"`
	Reason        string         `json:"reason,omitempty"`
	TransactionID string         `json:"transactionId,omitempty"`
	CapturedAt    time.Time      `json:"capturedAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (s *CheckoutSession) Clone() *CheckoutSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = append([]CartLineItem(nil), s.Items...)
	return &c
}

func (s *CheckoutSession) Totals() Totals {
	return Totals{Subtotal: s.Subtotal, CommissionFee: s.CommissionFee, Total: s.Total}
}
