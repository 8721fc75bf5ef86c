package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/domain"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

type lineResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Price       string    `json:"price"`
	Subtotal    string    `json:"subtotal"`
	CreatedAt   time.Time `json:"created_at"`
}

type cartResponse struct {
	ID         string         `json:"id"`
	Items      []lineResponse `json:"items"`
	TotalPrice string         `json:"total_price"`
	IsActive   bool           `json:"is_active"`
}

func newLineResponse(line *domain.CartLine) lineResponse {
	return lineResponse{
		ID:          line.ID,
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		Price:       line.Price.StringFixed(2),
		Subtotal:    line.Subtotal().StringFixed(2),
		CreatedAt:   line.CreatedAt,
	}
}

func newCartResponse(cart *domain.Cart, total decimal.Decimal) cartResponse {
	items := make([]lineResponse, 0, len(cart.Lines))
	for i := range cart.Lines {
		items = append(items, newLineResponse(&cart.Lines[i]))
	}
	return cartResponse{
		ID:         cart.ID,
		Items:      items,
		TotalPrice: total.StringFixed(2),
		IsActive:   cart.IsActive,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromRequest(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	cart, total, err := h.store.View(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, newCartResponse(cart, total))
}

type addItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  json.RawMessage `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromRequest(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	// Quantity may arrive as a number, a string or not at all.
	quantity := ParseQuantity(strings.Trim(string(req.Quantity), `"`))

	cart, err := h.store.GetOrCreateActiveCart(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	result, err := h.store.AddItem(r.Context(), cart, req.ProductID, quantity)
	if err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			h.writeError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, ErrCartInactive):
			h.writeError(w, http.StatusConflict, "cart was checked out, retry")
		case errors.Is(err, ErrQuantityOutOfRange):
			h.writeError(w, http.StatusBadRequest, "quantity out of range")
		default:
			h.logger.Error("failed to add cart item", "error", err, "cart_id", cart.ID, "product_id", req.ProductID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}

	h.logger.Info("cart item added", "cart_id", cart.ID, "product_id", req.ProductID, "quantity", quantity, "created", result.Created)
	h.writeJSON(w, status, newLineResponse(result.Line))
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromRequest(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "cart item not found")
		return
	}
	lineID := id.String()

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Quantity == nil {
		h.writeError(w, http.StatusBadRequest, "missing quantity")
		return
	}
	if *req.Quantity > MaxQuantity {
		h.writeError(w, http.StatusBadRequest, "quantity out of range")
		return
	}

	cart, err := h.store.GetOrCreateActiveCart(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	line, err := h.store.SetItemQuantity(r.Context(), cart, lineID, *req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, ErrLineNotFound):
			h.writeError(w, http.StatusNotFound, "cart item not found")
			return
		case errors.Is(err, ErrQuantityOutOfRange):
			h.writeError(w, http.StatusBadRequest, "quantity out of range")
			return
		}
		h.logger.Error("failed to update cart item", "error", err, "cart_id", cart.ID, "item_id", lineID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if line == nil {
		h.logger.Info("cart item removed", "cart_id", cart.ID, "item_id", lineID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.logger.Info("cart item updated", "cart_id", cart.ID, "item_id", lineID, "quantity", line.Quantity)
	h.writeJSON(w, http.StatusOK, newLineResponse(line))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
