package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress = errors.New("a checkout is already in progress")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
)
