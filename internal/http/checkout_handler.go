package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/payment"
	"github.com/fjod/agromarket/internal/session"
)

// Checkout charges the caller's cart. The response carries the checkout
// session in its terminal state: 201 when it succeeded, 402 when the charge
// was refused or failed.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	snap := ws.Session.Current()
	if snap.State != session.Active {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "sign in to check out")
		return
	}

	var details payment.PaymentDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := details.Validate(time.Now()); err != nil {
		handleError(w, err)
		return
	}

	cs, err := ws.Checkout.Checkout(r.Context(), snap.PrincipalID, details)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusCreated
	if cs.State != domain.CheckoutStateSucceeded {
		status = http.StatusPaymentRequired
	}
	respondJSON(w, status, cs)
}

// GetCheckout returns the latest checkout session of the client.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	cs := ws.Checkout.Current()
	if cs == nil {
		respondError(w, http.StatusNotFound, "not_found", "no checkout yet")
		return
	}
	respondJSON(w, http.StatusOK, cs)
}
