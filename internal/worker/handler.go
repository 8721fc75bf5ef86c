package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/messaging"
)

// NotificationHandler reacts to placed orders: it mails the customer a
// confirmation and alerts operations about products checkout has oversold.
// It never changes orders or stock.
type NotificationHandler struct {
	emailServiceURL     string
	inventoryServiceURL string
	opsAddress          string
	httpClient          *http.Client
	logger              *slog.Logger
}

func NewNotificationHandler(emailServiceURL, inventoryServiceURL, opsAddress string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL:     emailServiceURL,
		inventoryServiceURL: inventoryServiceURL,
		opsAddress:          opsAddress,
		httpClient:          client,
		logger:              logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order placed event: %w", err))
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if h.inventoryServiceURL != "" {
		oversold, err := h.oversoldProducts(ctx, event)
		if err != nil {
			// The confirmation already went out; a failed stock check is not retried.
			h.logger.Warn("failed to check stock levels", "error", err, "order_id", event.OrderID)
		} else if len(oversold) > 0 {
			if err := h.sendOversoldAlert(ctx, event, oversold); err != nil {
				h.logger.Error("failed to send oversold alert", "error", err, "order_id", event.OrderID)
			}
		}
	}

	h.logger.Info("order notification complete", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderPlacedEvent) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", event.OrderID)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%d x %s @ %s\n", item.Quantity, item.ProductName, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", event.TotalPrice.StringFixed(2))

	return h.sendEmail(ctx, map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Confirmation: " + event.OrderID,
		"body":    b.String(),
	})
}

type stockLevel struct {
	ProductID     string `json:"product_id"`
	StockQuantity int    `json:"stock_quantity"`
	Oversold      bool   `json:"oversold"`
}

func (h *NotificationHandler) oversoldProducts(ctx context.Context, event domain.OrderPlacedEvent) ([]stockLevel, error) {
	var oversold []stockLevel

	for _, item := range event.Items {
		if item.ProductID == nil {
			continue
		}

		url := fmt.Sprintf("%s/stock/%s", h.inventoryServiceURL, *item.ProductID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create stock request: %w", err)
		}

		resp, err := h.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get stock for product %s: %w", *item.ProductID, err)
		}

		var level stockLevel
		err = func() error {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("inventory service returned status %d for product %s", resp.StatusCode, *item.ProductID)
			}
			return json.NewDecoder(resp.Body).Decode(&level)
		}()
		if err != nil {
			return nil, err
		}

		if level.Oversold {
			oversold = append(oversold, level)
		}
	}

	return oversold, nil
}

func (h *NotificationHandler) sendOversoldAlert(ctx context.Context, event domain.OrderPlacedEvent, oversold []stockLevel) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s left the following products below zero stock:\n\n", event.OrderID)
	for _, level := range oversold {
		fmt.Fprintf(&b, "%s: %d\n", level.ProductID, level.StockQuantity)
	}

	h.logger.Warn("products oversold", "order_id", event.OrderID, "count", len(oversold))

	return h.sendEmail(ctx, map[string]string{
		"to":      h.opsAddress,
		"subject": "Oversold stock after order " + event.OrderID,
		"body":    b.String(),
	})
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
