package repository

import (
	"context"
	"errors"

	"github.com/fjod/cartsync/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the storage implementations
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem merges into the line with the same product id and kind, or appends a new line
	// with a freshly assigned id.
	AddItem(ctx context.Context, userID string, item domain.LineItem) error
	// UpdateItemQuantity deletes the line when quantity is zero or negative.
	UpdateItemQuantity(ctx context.Context, userID string, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID string, itemID int64) error
	// RemoveProduct deletes every line of a product and reports how many went away.
	RemoveProduct(ctx context.Context, userID string, productID domain.ProductID) (int, error)
	DeleteCart(ctx context.Context, userID string) error
}

func sameLine(a, b domain.LineItem) bool {
	return a.ProductID == b.ProductID && a.Kind == b.Kind
}
