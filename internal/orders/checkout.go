package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/cartflow/internal/cart"
	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/inventory"
	"github.com/joao-fontenele/cartflow/internal/messaging"
	"github.com/joao-fontenele/cartflow/internal/store"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrCartInactive = cart.ErrCartInactive
)

// StockLedger adjusts stock on the caller's transaction.
type StockLedger interface {
	Decrement(ctx context.Context, q store.Querier, productID string, amount int) error
}

var _ StockLedger = (*inventory.Ledger)(nil)

// CheckoutRequest carries the free-text addresses copied onto the order.
// Either may be blank.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
}

// Engine turns a user's active cart into an order.
type Engine struct {
	db        *sql.DB
	runner    *store.TxRunner
	ledger    StockLedger
	publisher messaging.Publisher
	metrics   *telemetry.ShopMetrics
	logger    *slog.Logger
}

// NewEngine builds a checkout engine. publisher and metrics may be nil.
func NewEngine(db *sql.DB, runner *store.TxRunner, ledger StockLedger, publisher messaging.Publisher, metrics *telemetry.ShopMetrics, logger *slog.Logger) *Engine {
	return &Engine{
		db:        db,
		runner:    runner,
		ledger:    ledger,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Checkout creates a PENDING order from the user's active cart, decrements
// stock for every line and deactivates the cart, all in one serializable
// transaction. Nothing is written when any step fails.
func (e *Engine) Checkout(ctx context.Context, userID string, req CheckoutRequest) (order *domain.Order, err error) {
	start := time.Now()
	defer func() { e.metrics.RecordCheckout(ctx, time.Since(start), err) }()

	cartID, err := e.nonEmptyActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = e.runner.Serializable(ctx, func(tx *sql.Tx) error {
		placed, err := e.placeOrder(ctx, tx, cartID, userID, req)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("order placed", "order_id", order.ID, "user_id", userID, "cart_id", cartID, "total_price", order.TotalPrice.StringFixed(2))
	e.publishPlaced(ctx, order)

	return order, nil
}

// nonEmptyActiveCart runs before any transaction so an empty checkout never
// writes.
func (e *Engine) nonEmptyActiveCart(ctx context.Context, userID string) (string, error) {
	var cartID string
	var lineCount int

	err := e.db.QueryRowContext(ctx, `
		SELECT c.id, COUNT(ci.id)
		FROM carts c
		LEFT JOIN cart_items ci ON ci.cart_id = c.id
		WHERE c.user_id = $1 AND c.is_active
		GROUP BY c.id
	`, userID).Scan(&cartID, &lineCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrEmptyCart
		}
		return "", err
	}

	if lineCount == 0 {
		return "", ErrEmptyCart
	}

	return cartID, nil
}

func (e *Engine) placeOrder(ctx context.Context, tx *sql.Tx, cartID, userID string, req CheckoutRequest) (*domain.Order, error) {
	var active bool
	err := tx.QueryRowContext(ctx, `SELECT is_active FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartInactive
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}
	if !active {
		return nil, ErrCartInactive
	}

	total, err := cart.SumTotal(ctx, tx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart total: %w", err)
	}

	lines, err := cart.ListLines(ctx, tx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	order := &domain.Order{
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		TotalPrice:      total,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Lines:           make([]domain.OrderLine, 0, len(lines)),
		CreatedAt:       time.Now().UTC(),
	}
	for _, line := range lines {
		productID := line.ProductID
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:   &productID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			Price:       line.Price,
		})
	}

	if err := insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	for _, line := range lines {
		if err := e.ledger.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, fmt.Errorf("decrement stock for %s: %w", line.ProductID, err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE carts SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("deactivate cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrCartInactive
	}

	return order, nil
}

func (e *Engine) publishPlaced(ctx context.Context, order *domain.Order) {
	if e.publisher == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Items:      order.Lines,
		TotalPrice: order.TotalPrice,
		Timestamp:  order.CreatedAt,
	}
	if err := e.publisher.Publish(ctx, order.ID, event); err != nil {
		e.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
	}
}
