package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderPlaced = "order.placed"

// OrderPlacedEvent is published once a checkout transaction commits.
type OrderPlacedEvent struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Items      []OrderLine     `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (OrderPlacedEvent) EventType() string { return EventOrderPlaced }
