package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/cartsync/internal/domain"
)

// MemoryRepository keeps carts in process memory. Used for local runs and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
		now:   time.Now,
	}
}

func (m *MemoryRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (m *MemoryRepository) AddItem(_ context.Context, userID string, item domain.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID, CreatedAt: now}
		m.carts[userID] = cart
	}
	cart.UpdatedAt = now

	for i := range cart.Items {
		existing := &cart.Items[i]
		if sameLine(*existing, item) {
			existing.Quantity += item.Quantity
			existing.Name = item.Name
			existing.UnitPrice = item.UnitPrice
			existing.Image = item.Image
			existing.ContainerType = item.ContainerType
			existing.AddedAt = now
			return nil
		}
	}

	cart.NextItemID++
	item.ID = cart.NextItemID
	item.AddedAt = now
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *MemoryRepository) UpdateItemQuantity(_ context.Context, userID string, itemID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ID != itemID {
			continue
		}
		if quantity <= 0 {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		} else {
			cart.Items[i].Quantity = quantity
		}
		cart.UpdatedAt = m.now()
		return nil
	}
	return ErrItemNotFound
}

func (m *MemoryRepository) RemoveItem(_ context.Context, userID string, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.UpdatedAt = m.now()
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *MemoryRepository) RemoveProduct(_ context.Context, userID string, productID domain.ProductID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[userID]
	if !ok {
		return 0, ErrItemNotFound
	}
	kept := make([]domain.LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	removed := len(cart.Items) - len(kept)
	if removed == 0 {
		return 0, ErrItemNotFound
	}
	cart.Items = kept
	cart.UpdatedAt = m.now()
	return removed, nil
}

func (m *MemoryRepository) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[userID]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = make([]domain.LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
