package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/store"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

// MaxQuantity is the largest quantity a cart line column can hold.
const MaxQuantity = math.MaxInt32

var ErrQuantityOutOfRange = errors.New("quantity out of range")

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Store struct {
	repo     Repository
	products ProductLookup
	metrics  *telemetry.ShopMetrics
	logger   *slog.Logger
}

func NewStore(repo Repository, products ProductLookup, metrics *telemetry.ShopMetrics, logger *slog.Logger) *Store {
	return &Store{
		repo:     repo,
		products: products,
		metrics:  metrics,
		logger:   logger,
	}
}

type AddResult struct {
	Line    *domain.CartLine
	Created bool
}

// ParseQuantity reads a requested add quantity. Anything that is not an
// integer in [1, MaxQuantity] becomes 1.
func ParseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return normalizeQuantity(n)
}

func normalizeQuantity(quantity int) int {
	if quantity < 1 || quantity > MaxQuantity {
		return 1
	}
	return quantity
}

func (s *Store) GetOrCreateActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.ActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	if err := s.repo.CreateActiveCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	cart, err = s.repo.ActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("no active cart for user %s after create", userID)
	}

	s.logger.Info("cart created", "cart_id", cart.ID, "user_id", userID)
	return cart, nil
}

// AddItem merges quantity into the cart's line for the product, creating the
// line at the current catalog price when there is none.
func (s *Store) AddItem(ctx context.Context, cart *domain.Cart, productID string, quantity int) (AddResult, error) {
	quantity = normalizeQuantity(quantity)

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return AddResult{}, err
	}

	line, err := s.repo.IncrementLine(ctx, cart.ID, product.ID, quantity)
	if err != nil {
		return AddResult{}, incrementError(err)
	}
	if line != nil {
		s.metrics.RecordItemAdded(ctx, false)
		return AddResult{Line: line}, nil
	}

	line, err = s.repo.InsertLine(ctx, cart.ID, product, quantity)
	if err == nil {
		s.metrics.RecordItemAdded(ctx, true)
		return AddResult{Line: line, Created: true}, nil
	}
	if !store.IsUniqueViolation(err) {
		return AddResult{}, err
	}

	// Lost the insert race: another request created the line first.
	line, err = s.repo.IncrementLine(ctx, cart.ID, product.ID, quantity)
	if err != nil {
		return AddResult{}, incrementError(err)
	}
	if line == nil {
		return AddResult{}, fmt.Errorf("cart line for product %s vanished after unique violation", product.ID)
	}

	s.metrics.RecordItemAdded(ctx, false)
	return AddResult{Line: line}, nil
}

// incrementError maps a merge that would push the line past MaxQuantity to
// ErrQuantityOutOfRange.
func incrementError(err error) error {
	if store.IsNumericOutOfRange(err) {
		return ErrQuantityOutOfRange
	}
	return err
}

// SetItemQuantity overwrites a line's quantity. A quantity of zero or less
// removes the line and returns a nil line.
func (s *Store) SetItemQuantity(ctx context.Context, cart *domain.Cart, lineID string, quantity int) (*domain.CartLine, error) {
	if quantity > MaxQuantity {
		return nil, ErrQuantityOutOfRange
	}
	if quantity <= 0 {
		deleted, err := s.repo.DeleteLine(ctx, cart.ID, lineID)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return nil, ErrLineNotFound
		}
		return nil, nil
	}

	line, err := s.repo.SetLineQuantity(ctx, cart.ID, lineID, quantity)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, ErrLineNotFound
	}

	return line, nil
}

func (s *Store) TotalPrice(ctx context.Context, cart *domain.Cart) (decimal.Decimal, error) {
	return s.repo.TotalPrice(ctx, cart.ID)
}

// View returns the user's active cart with its lines and total, creating an
// empty cart on first use.
func (s *Store) View(ctx context.Context, userID string) (*domain.Cart, decimal.Decimal, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	lines, err := s.repo.Lines(ctx, cart.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	cart.Lines = lines

	total, err := s.TotalPrice(ctx, cart)
	if err != nil {
		return nil, decimal.Zero, err
	}

	return cart, total, nil
}
