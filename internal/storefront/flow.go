package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fjod/cartsync/internal/cartclient"
	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/logger"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
)

// Cart is the part of cartclient.Client the storefront needs.
type Cart interface {
	Add(ctx context.Context, req domain.AddItemRequest) error
}

type Product struct {
	ID        domain.ProductID
	Name      string
	Price     float64
	Image     string
	Container string
}

func (p Product) addRequest() domain.AddItemRequest {
	return domain.AddItemRequest{
		ProductID:     p.ID,
		Name:          p.Name,
		UnitPrice:     p.Price,
		Image:         p.Image,
		ContainerType: p.Container,
		Kind:          domain.KindPredefined,
		Quantity:      1,
	}
}

// Flow drives the "add to cart" buttons: it checks the login status before touching the cart
// and turns every outcome into a notification.
type Flow struct {
	cart     Cart
	auth     cartclient.AuthProbe
	notify   Notifier
	redirect cartclient.Redirector
	loginURL string
	log      logrus.FieldLogger
}

func NewFlow(cart Cart, auth cartclient.AuthProbe, notify Notifier, redirect cartclient.Redirector, loginURL string, log logrus.FieldLogger) *Flow {
	if loginURL == "" {
		loginURL = cartclient.DefaultLoginURL
	}
	return &Flow{
		cart:     cart,
		auth:     auth,
		notify:   notify,
		redirect: redirect,
		loginURL: loginURL,
		log:      log,
	}
}

// AddToCart adds one unit of a product.
func (f *Flow) AddToCart(ctx context.Context, p Product) error {
	if err := f.ensureLoggedIn(ctx); err != nil {
		return err
	}

	if err := f.cart.Add(ctx, p.addRequest()); err != nil {
		f.notify.Notify(ctx, LevelError, "Could not add the product to the cart, please try again.")
		return err
	}
	f.notify.Notify(ctx, LevelSuccess, "Product added to the cart!")
	return nil
}

// AddToCartDetail adds qty units one at a time, as the product page does.
func (f *Flow) AddToCartDetail(ctx context.Context, p Product, qty int) error {
	if qty < MinQuantity || qty > MaxQuantity {
		return fmt.Errorf("quantity %d outside %d..%d: %w", qty, MinQuantity, MaxQuantity, cartclient.ErrInvalidQuantity)
	}
	if err := f.ensureLoggedIn(ctx); err != nil {
		return err
	}

	log := logger.FromContext(ctx, f.log).WithField("product_id", p.ID)
	added := 0
	var errs []error
	for i := 0; i < qty; i++ {
		err := f.cart.Add(ctx, p.addRequest())
		if err != nil {
			log.WithError(err).WithField("unit", i+1).Warn("detail add failed")
			errs = append(errs, err)
			if errors.Is(err, cartclient.ErrAuthRequired) {
				break
			}
			continue
		}
		added++
	}

	if len(errs) > 0 {
		f.notify.Notify(ctx, LevelError, fmt.Sprintf("Added %d of %d products to the cart.", added, qty))
		return errors.Join(errs...)
	}
	f.notify.Notify(ctx, LevelSuccess, fmt.Sprintf("%d %s added to the cart!", qty, plural(qty, "product", "products")))
	return nil
}

func (f *Flow) ensureLoggedIn(ctx context.Context) error {
	status, err := f.auth.LoginStatus(ctx)
	if err != nil {
		logger.FromContext(ctx, f.log).WithError(err).Error("login status check failed")
		f.notify.Notify(ctx, LevelError, "Connection error, please try again.")
		return err
	}
	if !status.LoggedIn {
		f.notify.Notify(ctx, LevelError, "Please log in to add products to the cart.")
		f.redirect.Redirect(ctx, f.loginURL)
		return cartclient.ErrAuthRequired
	}
	return nil
}

// StepQuantity applies the +/- control; steps leaving 1..10 are ignored.
func StepQuantity(current, delta int) int {
	next := current + delta
	if next < MinQuantity || next > MaxQuantity {
		return current
	}
	return next
}

func plural(n int, one, many string) string {
	if n > 1 {
		return many
	}
	return one
}
