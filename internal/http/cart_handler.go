package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/logger"
)

// CartService is the server-side cart logic the handlers drive.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, req domain.AddItemRequest) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID string, itemID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID int64) (*domain.Cart, error)
	RemoveProduct(ctx context.Context, userID string, productID domain.ProductID) (*domain.Cart, int, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewCartHandler(carts CartService, timeout time.Duration, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

// UpdateQuantityRequestDTO accepts the whole line item; only quantite is read.
type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantite"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserEmailFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		h.logError(r, err, "get cart")
		handleServiceError(w, err, "cart not found")
		return
	}

	respondJSON(w, http.StatusOK, items(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserEmailFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req domain.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "missing_data", "missing request body")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantite must be positive")
		return
	}

	cart, err := h.carts.AddItem(ctx, userID, req)
	if err != nil {
		h.logError(r, err, "add item")
		handleServiceError(w, err, "cart not found")
		return
	}

	respondJSON(w, http.StatusOK, domain.CartResponse{
		Message: "Product added to cart",
		Cart:    items(cart),
	})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserEmailFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "missing_data", "missing request body")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.carts.UpdateQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		h.logError(r, err, "update quantity")
		handleServiceError(w, err, "item not found")
		return
	}

	message := "Quantity updated"
	if quantity <= 0 {
		message = "Item removed from cart"
	}
	respondJSON(w, http.StatusOK, domain.CartResponse{
		Message: message,
		Cart:    items(cart),
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserEmailFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, userID, itemID)
	if err != nil {
		h.logError(r, err, "remove item")
		handleServiceError(w, err, "item not found")
		return
	}

	respondJSON(w, http.StatusOK, domain.CartResponse{
		Message: "Item removed from cart",
		Cart:    items(cart),
	})
}

func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserEmailFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	productID, err := productIDParam(r)
	if err != nil || productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	cart, removed, err := h.carts.RemoveProduct(ctx, userID, productID)
	if err != nil {
		h.logError(r, err, "remove product")
		handleServiceError(w, err, "product not found in cart")
		return
	}

	respondJSON(w, http.StatusOK, domain.CartResponse{
		Message: "Removed " + strconv.Itoa(removed) + " item(s) from cart",
		Cart:    items(cart),
	})
}

// productIDParam returns the decoded product id. chi matches on RawPath when the request carries
// one (ids with an escaped '/'), and on the already decoded Path otherwise.
func productIDParam(r *http.Request) (domain.ProductID, error) {
	raw := chi.URLParam(r, "product_id")
	if r.URL.RawPath == "" {
		return domain.ProductID(raw), nil
	}
	id, err := url.PathUnescape(raw)
	return domain.ProductID(id), err
}

func (h *CartHandler) logError(r *http.Request, err error, op string) {
	logger.FromContext(r.Context(), h.log).WithError(err).WithFields(logrus.Fields{
		"op":         op,
		"request_id": getRequestID(r.Context()),
	}).Warn("cart operation failed")
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a positive integer")
		return 0, false
	}
	return itemID, true
}

func items(cart *domain.Cart) []domain.LineItem {
	if cart == nil || cart.Items == nil {
		return []domain.LineItem{}
	}
	return cart.Items
}
