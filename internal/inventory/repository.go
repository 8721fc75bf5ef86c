package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// StockRepository reads stock levels joined with the catalog. Writes go
// through Ledger.
type StockRepository struct {
	db *sql.DB
}

func NewStockRepository(db *sql.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Levels lists stock lowest first, so oversold products lead the report.
// With onlyOversold set, products at zero or above are left out.
func (r *StockRepository) Levels(ctx context.Context, onlyOversold bool) ([]domain.InventoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.product_id, p.name, i.stock_quantity, i.updated_at
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE NOT $1::boolean OR i.stock_quantity < 0
		ORDER BY i.stock_quantity, i.product_id
	`, onlyOversold)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	levels := []domain.InventoryRecord{}
	for rows.Next() {
		var level domain.InventoryRecord
		if err := rows.Scan(&level.ProductID, &level.ProductName, &level.StockQuantity, &level.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return levels, nil
}

// Level returns nil when the product has no inventory row.
func (r *StockRepository) Level(ctx context.Context, productID string) (*domain.InventoryRecord, error) {
	level := &domain.InventoryRecord{}

	err := r.db.QueryRowContext(ctx, `
		SELECT i.product_id, p.name, i.stock_quantity, i.updated_at
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1
	`, productID).Scan(&level.ProductID, &level.ProductName, &level.StockQuantity, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return level, nil
}
