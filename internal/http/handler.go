package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/agromarket/internal/catalog"
	"github.com/fjod/agromarket/internal/client"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/identity"
	"github.com/sirupsen/logrus"
)

// Workspaces hands out the per-client state.
type Workspaces interface {
	Get(ctx context.Context, clientID string) (*client.Workspace, error)
}

type Identity interface {
	Register(ctx context.Context, clientID string, req identity.RegisterRequest) (string, error)
	SignIn(ctx context.Context, clientID, email, password string) (string, error)
	SignOut(ctx context.Context, clientID string) error
}

type ProductLister interface {
	AddProduct(ctx context.Context, owner *domain.Session, p catalog.NewProduct) (string, error)
}

// Catalog is the shared, published product list.
type Catalog interface {
	Snapshot() []domain.Product
	Lookup(id string) (domain.Product, bool)
	Subscribe(fn func([]domain.Product)) (cancel func())
}

type Handler struct {
	workspaces Workspaces
	catalog    Catalog
	identity   Identity
	listing    ProductLister
	tokens     *identity.Tokens
	timeout    time.Duration
	log        logrus.FieldLogger
}

type HandlerDeps struct {
	Workspaces Workspaces
	Catalog    Catalog
	Identity   Identity
	Listing    ProductLister
	Tokens     *identity.Tokens
	Log        logrus.FieldLogger
}

func NewHandler(deps HandlerDeps, timeout time.Duration) *Handler {
	return &Handler{
		workspaces: deps.Workspaces,
		catalog:    deps.Catalog,
		identity:   deps.Identity,
		listing:    deps.Listing,
		tokens:     deps.Tokens,
		timeout:    timeout,
		log:        deps.Log,
	}
}

// workspace resolves the caller's workspace, writing the error response
// when it cannot.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*client.Workspace, bool) {
	clientID := getClientIDFromContext(r.Context())
	if clientID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing client authentication")
		return nil, false
	}
	ws, err := h.workspaces.Get(r.Context(), clientID)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"client_id":  clientID,
			"request_id": getRequestID(r.Context()),
		}).WithError(err).Warn("failed to resolve workspace")
		handleError(w, err)
		return nil, false
	}
	return ws, true
}
