package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/agromarket/internal/catalog"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/session"
	"github.com/fjod/agromarket/internal/view"
)

// ownerReadyWait bounds how long a first owner-listing request waits for
// the feed's initial snapshot.
const ownerReadyWait = 2 * time.Second

type ProductsResponse struct {
	Products   []domain.Product `json:"products"`
	Categories []string         `json:"categories"`
	Count      int              `json:"count"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

func queryFromRequest(r *http.Request) view.Query {
	q := r.URL.Query()
	return view.Query{
		FreeText: q.Get("q"),
		Category: q.Get("category"),
		Sort:     view.ParseSortKey(q.Get("sort")),
	}
}

func newProductsResponse(products []domain.Product) ProductsResponse {
	if products == nil {
		products = []domain.Product{}
	}
	return ProductsResponse{
		Products:   products,
		Categories: view.Categories(),
		Count:      len(products),
	}
}

// ListProducts serves the published catalog filtered and sorted by the
// q, category and sort query parameters.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := view.Derive(h.catalog.Snapshot(), queryFromRequest(r))
	respondJSON(w, http.StatusOK, newProductsResponse(products))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := productIDParam(r)
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	p, ok := h.catalog.Lookup(id)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	snap := ws.Session.Current()
	if snap.State != session.Active {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "sign in to list products")
		return
	}

	var req catalog.NewProduct
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id, err := h.listing.AddProduct(ctx, snap.Session, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// FarmerProducts lists the signed-in farmer's own products, unverified
// ones included.
func (h *Handler) FarmerProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	owner, err := ws.OwnerListings(ctx)
	if err != nil {
		handleError(w, err)
		return
	}

	wait := time.NewTimer(ownerReadyWait)
	defer wait.Stop()
	select {
	case <-owner.Ready():
	case <-wait.C:
	case <-ctx.Done():
	}

	products := view.Derive(owner.Snapshot(), queryFromRequest(r))
	respondJSON(w, http.StatusOK, newProductsResponse(products))
}
