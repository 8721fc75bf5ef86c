package inventory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type Handler struct {
	repo   *StockRepository
	logger *slog.Logger
}

func NewHandler(repo *StockRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type stockResponse struct {
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	StockQuantity int       `json:"stock_quantity"`
	Oversold      bool      `json:"oversold"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type stockReportResponse struct {
	Items         []stockResponse `json:"items"`
	OversoldCount int             `json:"oversold_count"`
}

func newStockResponse(level *domain.InventoryRecord) stockResponse {
	return stockResponse{
		ProductID:     level.ProductID,
		ProductName:   level.ProductName,
		StockQuantity: level.StockQuantity,
		Oversold:      level.Oversold(),
		UpdatedAt:     level.UpdatedAt,
	}
}

// HandleListStock reports every product's stock. ?oversold=true narrows the
// report to products sold below zero.
func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	onlyOversold := false
	if raw := r.URL.Query().Get("oversold"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid oversold filter")
			return
		}
		onlyOversold = parsed
	}

	levels, err := h.repo.Levels(r.Context(), onlyOversold)
	if err != nil {
		h.logger.Error("failed to list stock", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	report := stockReportResponse{Items: make([]stockResponse, 0, len(levels))}
	for i := range levels {
		item := newStockResponse(&levels[i])
		if item.Oversold {
			report.OversoldCount++
		}
		report.Items = append(report.Items, item)
	}

	h.logger.Info("stock listed", "count", len(report.Items), "oversold", report.OversoldCount)
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	level, err := h.repo.Level(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to get stock", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if level == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, newStockResponse(level))
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
