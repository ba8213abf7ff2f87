package cartclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/logger"
)

const DefaultLoginURL = "/login"

// Redirector sends the user to another page, typically the login page.
type Redirector interface {
	Redirect(ctx context.Context, target string)
}

type RedirectFunc func(ctx context.Context, target string)

func (f RedirectFunc) Redirect(ctx context.Context, target string) { f(ctx, target) }

// Client keeps a local mirror of the server-held cart.
//
// The local list is only ever replaced with what the server returned; it is never patched
// locally. Mutating calls are serialized, Load calls are collapsed into one request.
type Client struct {
	svc      CartService
	redirect Redirector
	loginURL string
	log      logrus.FieldLogger

	mu      sync.RWMutex
	items   []domain.LineItem
	pending []int // counts not yet handed to listeners

	loads singleflight.Group
	opMu  sync.Mutex

	listenersMu sync.Mutex
	listeners   []func(count int)
}

type Option func(*Client)

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithRedirector sets where a 401 on Add sends the user.
func WithRedirector(r Redirector, loginURL string) Option {
	return func(c *Client) {
		c.redirect = r
		if loginURL != "" {
			c.loginURL = loginURL
		}
	}
}

func New(svc CartService, opts ...Option) *Client {
	c := &Client{
		svc:      svc,
		redirect: RedirectFunc(func(context.Context, string) {}),
		loginURL: DefaultLoginURL,
		log:      logger.Discard(),
		items:    []domain.LineItem{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers a listener called with the new item count after every state replacement.
// Listeners run on the goroutine that changed the cart once the Client's locks are released,
// so a listener may call back into the Client.
func (c *Client) OnChange(fn func(count int)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Load replaces the local cart with the server's. On failure the local cart becomes empty.
// Concurrent callers share a single request and its result; the shared request outlives a
// caller that gives up, bounded by the HTTP client timeout.
func (c *Client) Load(ctx context.Context) error {
	err := c.load(ctx)
	c.flush()
	return err
}

func (c *Client) load(ctx context.Context) error {
	_, err, _ := c.loads.Do("cart", func() (interface{}, error) {
		items, err := c.svc.FetchCart(context.WithoutCancel(ctx))
		if err != nil {
			logger.FromContext(ctx, c.log).WithError(err).Error("load cart failed")
			c.replace(nil)
			return nil, err
		}
		c.replace(items)
		return nil, nil
	})
	return err
}

// Add sends an item to the server. Callers are expected to have checked the login status first;
// a 401 still redirects to the login page.
func (c *Client) Add(ctx context.Context, req domain.AddItemRequest) error {
	if req.Quantity < 1 {
		return fmt.Errorf("add %s: %w", req.ProductID, ErrInvalidQuantity)
	}
	if req.Kind == "" {
		req.Kind = domain.KindPredefined
	}

	unlock := c.lockOps()
	defer unlock()

	log := logger.FromContext(ctx, c.log).WithField("product_id", req.ProductID)
	items, err := c.svc.AddItem(ctx, req)
	if err != nil {
		log.WithError(err).Error("add to cart failed")
		if errors.Is(err, ErrAuthRequired) {
			c.redirect.Redirect(ctx, c.loginURL)
		}
		return err
	}

	c.replace(items)
	log.WithField("quantity", req.Quantity).Debug("item added to cart")
	return nil
}

// Remove deletes every line of the item's product. A failed removal reloads the cart.
func (c *Client) Remove(ctx context.Context, itemID int64) error {
	unlock := c.lockOps()
	defer unlock()
	return c.remove(ctx, itemID)
}

func (c *Client) remove(ctx context.Context, itemID int64) error {
	log := logger.FromContext(ctx, c.log).WithField("item_id", itemID)

	item, ok := c.find(itemID)
	if !ok {
		log.Warn("item missing from local cart, reloading")
		_ = c.load(ctx)
		return fmt.Errorf("remove item %d: %w", itemID, ErrLocalStateMiss)
	}

	items, err := c.svc.RemoveProduct(ctx, item.ProductID)
	if err != nil {
		log.WithError(err).WithField("product_id", item.ProductID).Error("remove from cart failed, reloading")
		_ = c.load(ctx)
		return err
	}

	c.replace(items)
	return nil
}

// UpdateQuantity sets the quantity of an item. Unlike Remove, a failure leaves the local cart as is.
func (c *Client) UpdateQuantity(ctx context.Context, itemID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("update item %d: %w", itemID, ErrInvalidQuantity)
	}

	unlock := c.lockOps()
	defer unlock()

	log := logger.FromContext(ctx, c.log).WithField("item_id", itemID)

	item, ok := c.find(itemID)
	if !ok {
		log.Warn("item missing from local cart")
		return fmt.Errorf("update item %d: %w", itemID, ErrLocalStateMiss)
	}

	item.Quantity = quantity
	items, err := c.svc.UpdateItem(ctx, item)
	if err != nil {
		log.WithError(err).Error("update cart quantity failed")
		return err
	}

	c.replace(items)
	return nil
}

// Clear removes the items present at call time one by one. It keeps going after a failure
// and returns all failures joined; a partial failure leaves a partially cleared cart.
// Lines sharing a product already removed in this pass are skipped.
func (c *Client) Clear(ctx context.Context) error {
	unlock := c.lockOps()
	defer unlock()

	var errs []error
	removed := make(map[domain.ProductID]bool)
	for _, item := range c.Items() {
		if removed[item.ProductID] {
			continue
		}
		if err := c.remove(ctx, item.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed[item.ProductID] = true
	}
	return errors.Join(errs...)
}

// Items returns a copy of the current cart.
func (c *Client) Items() []domain.LineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Client) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

// Total is the cart value; see TotalDecimal for the exact figure.
func (c *Client) Total() float64 {
	return c.TotalDecimal().InexactFloat64()
}

func (c *Client) TotalDecimal() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := decimal.Zero
	for _, item := range c.items {
		line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

func (c *Client) find(itemID int64) (domain.LineItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.ID == itemID {
			return item, true
		}
	}
	return domain.LineItem{}, false
}

// lockOps serializes a mutation; the returned func releases it and then notifies listeners.
func (c *Client) lockOps() func() {
	c.opMu.Lock()
	return func() {
		c.opMu.Unlock()
		c.flush()
	}
}

func (c *Client) replace(items []domain.LineItem) {
	next := make([]domain.LineItem, len(items))
	copy(next, items)

	count := 0
	for _, item := range next {
		count += item.Quantity
	}

	c.mu.Lock()
	c.items = next
	c.pending = append(c.pending, count)
	c.mu.Unlock()
}

func (c *Client) flush() {
	c.mu.Lock()
	counts := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, count := range counts {
		c.publish(count)
	}
}

func (c *Client) publish(count int) {
	c.listenersMu.Lock()
	listeners := make([]func(int), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(count)
	}
}
