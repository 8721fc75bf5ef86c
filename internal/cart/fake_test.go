package cart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memProducts map[string]*domain.Product

func (p memProducts) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	product, ok := p[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func testProducts() memProducts {
	return memProducts{
		"ITEM-A": {ID: "ITEM-A", Name: "A", Price: decimal.RequireFromString("10.00"), IsActive: true},
		"ITEM-B": {ID: "ITEM-B", Name: "B", Price: decimal.RequireFromString("5.50"), IsActive: true},
		"ITEM-C": {ID: "ITEM-C", Name: "C", Price: decimal.RequireFromString("0.10"), IsActive: false},
	}
}

// memRepo mimics the Postgres repository: a unique (cart, product) constraint
// and mutations that ignore inactive carts.
type memRepo struct {
	mu    sync.Mutex
	seq   int
	carts map[string]*domain.Cart
	lines map[string]*memLine

	// beforeInsert runs once, outside the lock, at the start of InsertLine.
	beforeInsert func()
}

type memLine struct {
	line domain.CartLine
	seq  int
}

func newMemRepo() *memRepo {
	return &memRepo{
		carts: map[string]*domain.Cart{},
		lines: map[string]*memLine{},
	}
}

func (m *memRepo) ActiveCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.carts {
		if c.UserID == userID && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) CreateActiveCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.carts {
		if c.UserID == userID && c.IsActive {
			return nil
		}
	}
	m.seq++
	id := fmt.Sprintf("cart-%d", m.seq)
	m.carts[id] = &domain.Cart{ID: id, UserID: userID, IsActive: true, CreatedAt: time.Now()}
	return nil
}

func (m *memRepo) deactivate(cartID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cartID].IsActive = false
}

func (m *memRepo) activeLocked(cartID string) bool {
	c, ok := m.carts[cartID]
	return ok && c.IsActive
}

func (m *memRepo) IncrementLine(_ context.Context, cartID, productID string, quantity int) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked(cartID) {
		return nil, nil
	}
	for _, l := range m.lines {
		if l.line.CartID == cartID && l.line.ProductID == productID {
			if int64(l.line.Quantity)+int64(quantity) > math.MaxInt32 {
				return nil, &pq.Error{Code: "22003", Message: "integer out of range"}
			}
			l.line.Quantity += quantity
			cp := l.line
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) InsertLine(_ context.Context, cartID string, product *domain.Product, quantity int) (*domain.CartLine, error) {
	m.mu.Lock()
	hook := m.beforeInsert
	m.beforeInsert = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked(cartID) {
		return nil, ErrCartInactive
	}
	for _, l := range m.lines {
		if l.line.CartID == cartID && l.line.ProductID == product.ID {
			return nil, &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}

	m.seq++
	line := domain.CartLine{
		ID:          uuid.NewString(),
		CartID:      cartID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		Price:       product.Price,
		CreatedAt:   time.Now(),
	}
	m.lines[line.ID] = &memLine{line: line, seq: m.seq}
	cp := line
	return &cp, nil
}

func (m *memRepo) SetLineQuantity(_ context.Context, cartID, lineID string, quantity int) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[lineID]
	if !ok || l.line.CartID != cartID || !m.activeLocked(cartID) {
		return nil, nil
	}
	l.line.Quantity = quantity
	cp := l.line
	return &cp, nil
}

func (m *memRepo) DeleteLine(_ context.Context, cartID, lineID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[lineID]
	if !ok || l.line.CartID != cartID || !m.activeLocked(cartID) {
		return false, nil
	}
	delete(m.lines, lineID)
	return true, nil
}

func (m *memRepo) Lines(_ context.Context, cartID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*memLine
	for _, l := range m.lines {
		if l.line.CartID == cartID {
			found = append(found, l)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	lines := make([]domain.CartLine, 0, len(found))
	for _, l := range found {
		lines = append(lines, l.line)
	}
	return lines, nil
}

func (m *memRepo) TotalPrice(ctx context.Context, cartID string) (decimal.Decimal, error) {
	lines, _ := m.Lines(ctx, cartID)
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total, nil
}
