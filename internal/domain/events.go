package domain

import "time"

const EventCheckoutCompleted = "checkout.completed"

type CheckoutCompleted struct {
	CheckoutID    string         `json:"checkout_id"`
	BuyerID       string         `json:"buyer_id"`
	Items         []CartLineItem `json:"items"`
	Subtotal      float64        `json:"subtotal"`
	CommissionFee float64        `json:"commission_fee"`
	Total         float64        `json:"total_amount"`
	Currency      string         `json:"currency"`
	TransactionID string         `json:"transaction_id"`
	CompletedAt   time.Time      `json:"completed_at"`
}

func (CheckoutCompleted) Type() string {
	return EventCheckoutCompleted
}
