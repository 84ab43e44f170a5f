package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxLineQuantity = 99

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Items     []domain.CartLineItem `json:"items"`
	ItemCount int                   `json:"itemCount"`
	domain.Totals
}

func newCartResponse(items []domain.CartLineItem, totals domain.Totals) CartResponse {
	if items == nil {
		items = []domain.CartLineItem{}
	}
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return CartResponse{Items: items, ItemCount: count, Totals: totals}
}

func productIDParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "product_id"))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(ws.Cart.Snapshot()))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	// Parse request body
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, found := h.catalog.Lookup(req.ProductID)
	if !found {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}

	ws.Cart.AddItem(product, req.Quantity)
	respondJSON(w, http.StatusCreated, newCartResponse(ws.Cart.Snapshot()))
}

// UpdateQuantity sets a line's quantity; zero removes the line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	productID := productIDParam(r)
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	if !ws.Cart.UpdateQuantity(productID, req.Quantity) {
		respondError(w, http.StatusNotFound, "not_found", "item not in cart")
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(ws.Cart.Snapshot()))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	productID := productIDParam(r)
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	ws.Cart.RemoveItem(productID)
	respondJSON(w, http.StatusOK, newCartResponse(ws.Cart.Snapshot()))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Cart.Clear()
	respondJSON(w, http.StatusOK, newCartResponse(ws.Cart.Snapshot()))
}
