package inventory

import (
	"context"

	"github.com/joao-fontenele/cartflow/internal/store"
)

// Ledger is the only writer of stock counts.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Decrement subtracts amount from the stored stock in a single statement so
// concurrent decrements of the same product never lose an update. There is no
// floor: oversold stock goes negative. A product with no inventory row gets
// one starting at zero, so the sale is still recorded.
func (l *Ledger) Decrement(ctx context.Context, q store.Querier, productID string, amount int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO inventory AS i (product_id, stock_quantity, updated_at)
		VALUES ($1, -$2::integer, NOW())
		ON CONFLICT (product_id) DO UPDATE
		SET stock_quantity = i.stock_quantity - $2, updated_at = NOW()
	`, productID, amount)
	return err
}
