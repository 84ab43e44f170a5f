package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fjod/agromarket/internal/catalog"
	"github.com/fjod/agromarket/internal/checkout"
	"github.com/fjod/agromarket/internal/client"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/identity"
	"github.com/fjod/agromarket/internal/payment"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts a marketplace error into an HTTP error response.
func handleError(w http.ResponseWriter, err error) {
	var writeErr *domain.WriteError
	if errors.As(err, &writeErr) {
		switch writeErr.Code {
		case domain.WriteAlreadyExists:
			respondError(w, http.StatusConflict, "already_exists", "record already exists")
		case domain.WriteNotFound:
			respondError(w, http.StatusNotFound, "not_found", "record not found")
		case domain.WriteInvalidCredential:
			respondError(w, http.StatusUnauthorized, "invalid_credential", "invalid email or password")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, identity.ErrInvalidRegistration),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, payment.ErrInvalidDetails):
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus = http.StatusBadRequest
		code = "empty_cart"
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		httpStatus = http.StatusConflict
		code = "checkout_in_progress"
	case errors.Is(err, catalog.ErrNotFarmer):
		httpStatus = http.StatusForbidden
		code = "permission_denied"
	case errors.Is(err, identity.ErrInvalidToken):
		httpStatus = http.StatusUnauthorized
		code = "unauthenticated"
	case errors.Is(err, payment.ErrGatewayUnavailable),
		errors.Is(err, client.ErrRegistryClosed):
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		logrus.WithError(err).Error("unhandled request error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
