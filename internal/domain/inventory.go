package domain

import "time"

// InventoryRecord is the stock count for one product. StockQuantity is signed:
// checkout decrements without a floor, so oversold products go negative.
type InventoryRecord struct {
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	StockQuantity int       `json:"stock_quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Oversold reports whether more units were sold than were ever stocked.
func (r InventoryRecord) Oversold() bool {
	return r.StockQuantity < 0
}
