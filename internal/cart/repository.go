package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/store"
)

var (
	ErrProductNotFound = catalog.ErrProductNotFound
	ErrLineNotFound    = errors.New("cart line not found")
	ErrCartInactive    = errors.New("cart is no longer active")
)

// Repository persists carts and their lines. Every line mutation is scoped to
// an active cart: against a checked-out cart it matches nothing.
type Repository interface {
	ActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	CreateActiveCart(ctx context.Context, userID string) error
	IncrementLine(ctx context.Context, cartID, productID string, quantity int) (*domain.CartLine, error)
	InsertLine(ctx context.Context, cartID string, product *domain.Product, quantity int) (*domain.CartLine, error)
	SetLineQuantity(ctx context.Context, cartID, lineID string, quantity int) (*domain.CartLine, error)
	DeleteLine(ctx context.Context, cartID, lineID string) (bool, error)
	Lines(ctx context.Context, cartID string) ([]domain.CartLine, error)
	TotalPrice(ctx context.Context, cartID string) (decimal.Decimal, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) ActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, is_active, created_at, updated_at
		FROM carts
		WHERE user_id = $1 AND is_active
	`, userID).Scan(&cart.ID, &cart.UserID, &cart.IsActive, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return cart, nil
}

// CreateActiveCart inserts an active cart unless the user already has one.
// Concurrent callers race on the partial unique index and all but one insert
// become no-ops.
func (r *PostgresRepository) CreateActiveCart(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, NOW(), NOW())
		ON CONFLICT (user_id) WHERE is_active DO NOTHING
	`, uuid.New().String(), userID)
	return err
}

// IncrementLine adds quantity to the stored line for the product. The stored
// price is kept. Returns nil when the cart has no such line or is inactive.
func (r *PostgresRepository) IncrementLine(ctx context.Context, cartID, productID string, quantity int) (*domain.CartLine, error) {
	return scanLine(r.db.QueryRowContext(ctx, `
		UPDATE cart_items ci
		SET quantity = ci.quantity + $3
		FROM products p
		WHERE ci.cart_id = $1 AND ci.product_id = $2 AND p.id = ci.product_id
			AND EXISTS (SELECT 1 FROM carts c WHERE c.id = $1 AND c.is_active FOR SHARE)
		RETURNING ci.id, ci.cart_id, ci.product_id, p.name, ci.quantity, ci.price, ci.created_at
	`, cartID, productID, quantity))
}

// InsertLine creates a line priced at the product's current price. A
// concurrent insert of the same product surfaces as a unique violation.
func (r *PostgresRepository) InsertLine(ctx context.Context, cartID string, product *domain.Product, quantity int) (*domain.CartLine, error) {
	line := &domain.CartLine{ProductName: product.Name}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price, created_at)
		SELECT $1, c.id, $3, $4, $5, clock_timestamp()
		FROM carts c
		WHERE c.id = $2 AND c.is_active
		FOR SHARE
		RETURNING id, cart_id, product_id, quantity, price, created_at
	`, uuid.New().String(), cartID, product.ID, quantity, product.Price).
		Scan(&line.ID, &line.CartID, &line.ProductID, &line.Quantity, &line.Price, &line.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartInactive
		}
		return nil, err
	}

	return line, nil
}

func (r *PostgresRepository) SetLineQuantity(ctx context.Context, cartID, lineID string, quantity int) (*domain.CartLine, error) {
	return scanLine(r.db.QueryRowContext(ctx, `
		UPDATE cart_items ci
		SET quantity = $3
		FROM products p
		WHERE ci.id = $1 AND ci.cart_id = $2 AND p.id = ci.product_id
			AND EXISTS (SELECT 1 FROM carts c WHERE c.id = $2 AND c.is_active FOR SHARE)
		RETURNING ci.id, ci.cart_id, ci.product_id, p.name, ci.quantity, ci.price, ci.created_at
	`, lineID, cartID, quantity))
}

func (r *PostgresRepository) DeleteLine(ctx context.Context, cartID, lineID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE id = $1 AND cart_id = $2
			AND EXISTS (SELECT 1 FROM carts c WHERE c.id = $2 AND c.is_active FOR SHARE)
	`, lineID, cartID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *PostgresRepository) Lines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	return ListLines(ctx, r.db, cartID)
}

func (r *PostgresRepository) TotalPrice(ctx context.Context, cartID string) (decimal.Decimal, error) {
	return SumTotal(ctx, r.db, cartID)
}

// ListLines returns the cart's lines in insertion order, ties broken by id.
func ListLines(ctx context.Context, q store.Querier, cartID string) ([]domain.CartLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, p.name, ci.quantity, ci.price, ci.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.CartID, &line.ProductID, &line.ProductName, &line.Quantity, &line.Price, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// SumTotal computes Σ quantity × price in the database. An empty cart totals
// zero.
func SumTotal(ctx context.Context, q store.Querier, cartID string) (decimal.Decimal, error) {
	var total decimal.Decimal

	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity * price), 0)
		FROM cart_items
		WHERE cart_id = $1
	`, cartID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}

	return total, nil
}

func scanLine(row *sql.Row) (*domain.CartLine, error) {
	line := &domain.CartLine{}

	err := row.Scan(&line.ID, &line.CartID, &line.ProductID, &line.ProductName, &line.Quantity, &line.Price, &line.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return line, nil
}
