package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/identity"
	"github.com/fjod/agromarket/internal/session"
)

type ClientResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

type SignInRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PrincipalResponse struct {
	PrincipalID string `json:"principalId"`
}

type SessionResponse struct {
	State       string          `json:"state"`
	PrincipalID string          `json:"principalId,omitempty"`
	Session     *domain.Session `json:"session"`
}

func newSessionResponse(snap session.Snapshot) SessionResponse {
	return SessionResponse{
		State:       snap.State.String(),
		PrincipalID: snap.PrincipalID,
		Session:     snap.Session,
	}
}

// CreateClient issues a token for a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	token, clientID, err := h.tokens.IssueClient()
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ClientResponse{Token: token, ClientID: clientID})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing client authentication")
		return
	}

	var req identity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	principalID, err := h.identity.Register(ctx, clientID, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, PrincipalResponse{PrincipalID: principalID})
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing client authentication")
		return
	}

	var req SignInRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_argument", "email and password are required")
		return
	}

	principalID, err := h.identity.SignIn(ctx, clientID, req.Email, req.Password)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PrincipalResponse{PrincipalID: principalID})
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing client authentication")
		return
	}

	if err := h.identity.SignOut(ctx, clientID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSession reports the session as last delivered by the profile feed.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(ws.Session.Current()))
}
