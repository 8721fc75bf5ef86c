package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// upstreamHeaders are the response headers passed back to clients.
var upstreamHeaders = []string{"Content-Type", "Location", "Retry-After"}

// Handler routes authenticated shop traffic and public stock lookups to
// their upstream services.
type Handler struct {
	shop      *ServiceProxy
	inventory *ServiceProxy
	logger    *slog.Logger
}

func NewHandler(shopProxy, inventoryProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		shop:      shopProxy,
		inventory: inventoryProxy,
		logger:    logger,
	}
}

// HandleShop forwards cart, checkout and order routes unchanged.
func (h *Handler) HandleShop(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.shop, r.URL.Path)
}

// HandleInventory maps /inventory/stock... onto the inventory service's
// /stock... routes.
func (h *Handler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.inventory, strings.TrimPrefix(r.URL.Path, "/inventory"))
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, upstream *ServiceProxy, path string) {
	identity, _ := identityFromContext(r.Context())
	logger := h.logger.With("method", r.Method, "path", path, "user_id", identity.UserID)

	resp, err := upstream.ForwardRequest(r.Context(), r, path, identity.UserID)
	if err != nil {
		logger.Error("upstream request failed", "error", err)
		writeError(w, h.logger, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range upstreamHeaders {
		if value := resp.Header.Get(name); value != "" {
			w.Header().Set(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	level := slog.LevelInfo
	if resp.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.Log(r.Context(), level, "request proxied", "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Error("failed to stream upstream body", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}
