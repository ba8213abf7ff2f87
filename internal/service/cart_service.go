package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/cartsync/internal/cache"
	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/repository"
	"github.com/fjod/cartsync/pkg/logger"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
	log   logrus.FieldLogger
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, log logrus.FieldLogger) *CartService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CartService{
		repo:  repo,
		cache: c,
		log:   log,
	}
}

// GetCart returns the user's cart, an empty one when the user has none yet.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContext(ctx, s.log).WithError(err).Warn("cache get error") // continue with the repository
		}

		cart, err = s.repo.GetCart(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrCartNotFound): // not found cart return empty cart
			return emptyCart(userID), nil
		case err != nil:
			return nil, err
		}
		s.cacheAsync(userID, cart)
		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem adds req to the cart and returns the cart as stored afterwards.
func (s *CartService) AddItem(ctx context.Context, userID string, req domain.AddItemRequest) (*domain.Cart, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.KindPredefined
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	item := domain.LineItem{
		ProductID:     req.ProductID,
		ProductType:   kind,
		Name:          req.Name,
		UnitPrice:     req.UnitPrice,
		Quantity:      qty,
		Image:         req.Image,
		ContainerType: req.ContainerType,
		Kind:          kind,
	}
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Error("repo add item error")
		return nil, err
	}

	s.invalidateCache(ctx, userID)
	return s.readCart(ctx, userID)
}

// UpdateQuantity sets an item's quantity; zero or less removes the item.
func (s *CartService) UpdateQuantity(ctx context.Context, userID string, itemID int64, quantity int) (*domain.Cart, error) {
	if err := s.repo.UpdateItemQuantity(ctx, userID, itemID, quantity); err != nil {
		if !errors.Is(err, repository.ErrItemNotFound) {
			logger.FromContext(ctx, s.log).WithError(err).Error("repo update item quantity error")
		}
		return nil, err
	}

	s.invalidateCache(ctx, userID)
	return s.readCart(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, itemID int64) (*domain.Cart, error) {
	if err := s.repo.RemoveItem(ctx, userID, itemID); err != nil {
		if !errors.Is(err, repository.ErrItemNotFound) {
			logger.FromContext(ctx, s.log).WithError(err).Error("repo remove item error")
		}
		return nil, err
	}

	s.invalidateCache(ctx, userID)
	return s.readCart(ctx, userID)
}

// RemoveProduct deletes every line of a product and reports how many lines went away.
func (s *CartService) RemoveProduct(ctx context.Context, userID string, productID domain.ProductID) (*domain.Cart, int, error) {
	removed, err := s.repo.RemoveProduct(ctx, userID, productID)
	if err != nil {
		if !errors.Is(err, repository.ErrItemNotFound) {
			logger.FromContext(ctx, s.log).WithError(err).Error("repo remove product error")
		}
		return nil, 0, err
	}

	s.invalidateCache(ctx, userID)
	cart, err := s.readCart(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return cart, removed, nil
}

// ClearCart drops the whole cart. A user without a cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		logger.FromContext(ctx, s.log).WithError(err).Error("repo delete cart error")
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// readCart reads straight from the repository, outside the singleflight group, so a read after
// a write never joins a read that started before it. Only GetCart fills the cache: a write leaves
// it empty until the next miss.
func (s *CartService) readCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return emptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func emptyCart(userID string) *domain.Cart {
	now := time.Now()
	return &domain.Cart{
		UserID:    userID,
		Items:     []domain.LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *CartService) cacheAsync(userID string, cart *domain.Cart) {
	go func(cart *domain.Cart) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.cache.Set(ctx, userID, cart); err != nil {
			s.log.WithError(err).Warn("cache set error")
		}
	}(cloneCart(cart))
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Warn("cache invalidate error")
	}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = make([]domain.LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
