package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/cartsync/internal/domain"
)

func vanilla(qty int) domain.LineItem {
	return domain.LineItem{ProductID: "12", Name: "Vanille", UnitPrice: 2500, Quantity: qty, Kind: domain.KindPredefined, ProductType: domain.KindPredefined}
}

func honey(qty int) domain.LineItem {
	return domain.LineItem{ProductID: "product_7", Name: "Miel", UnitPrice: 4000, Quantity: qty, Kind: domain.KindPredefined, ProductType: domain.KindPredefined}
}

// testRepositoryContract runs the behaviour every CartRepository must share.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) CartRepository) {
	ctx := context.Background()

	t.Run("GetCart not found", func(t *testing.T) {
		repo := newRepo(t)
		cart, err := repo.GetCart(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("AddItem creates cart and assigns ids", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
		require.NoError(t, repo.AddItem(ctx, "a@b.km", honey(2)))

		cart, err := repo.GetCart(ctx, "a@b.km")
		require.NoError(t, err)
		require.Len(t, cart.Items, 2)
		assert.Equal(t, int64(1), cart.Items[0].ID)
		assert.Equal(t, int64(2), cart.Items[1].ID)
		assert.Equal(t, "Miel", cart.Items[1].Name)
		assert.False(t, cart.Items[0].AddedAt.IsZero())
	})

	t.Run("AddItem merges same product and kind", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
		updated := vanilla(2)
		updated.UnitPrice = 2700
		require.NoError(t, repo.AddItem(ctx, "a@b.km", updated))

		custom := vanilla(1)
		custom.Kind = domain.KindCustom
		require.NoError(t, repo.AddItem(ctx, "a@b.km", custom))

		cart, err := repo.GetCart(ctx, "a@b.km")
		require.NoError(t, err)
		require.Len(t, cart.Items, 2)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.Equal(t, 2700.0, cart.Items[0].UnitPrice)
		assert.Equal(t, domain.KindCustom, cart.Items[1].Kind)
	})

	t.Run("concurrent first adds of a product share one line", func(t *testing.T) {
		repo := newRepo(t)
		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
			}()
		}
		wg.Wait()

		cart, err := repo.GetCart(ctx, "a@b.km")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, writers, cart.Items[0].Quantity)
	})

	t.Run("UpdateItemQuantity sets and deletes", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
		require.NoError(t, repo.AddItem(ctx, "a@b.km", honey(1)))

		require.NoError(t, repo.UpdateItemQuantity(ctx, "a@b.km", 1, 4))
		require.NoError(t, repo.UpdateItemQuantity(ctx, "a@b.km", 2, 0))

		cart, err := repo.GetCart(ctx, "a@b.km")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 4, cart.Items[0].Quantity)

		assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, "a@b.km", 99, 1), ErrItemNotFound)
		assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, "nobody", 1, 1), ErrItemNotFound)
	})

	t.Run("RemoveItem", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
		require.NoError(t, repo.AddItem(ctx, "a@b.km", honey(1)))

		require.NoError(t, repo.RemoveItem(ctx, "a@b.km", 1))
		assert.ErrorIs(t, repo.RemoveItem(ctx, "a@b.km", 1), ErrItemNotFound)

		cart, err := repo.GetCart(ctx, "a@b.km")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, domain.ProductID("product_7"), cart.Items[0].ProductID)
	})

	t.Run("RemoveProduct removes every line of the product", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
		custom := vanilla(1)
		custom.Kind = domain.KindCustom
		require.NoError(t, repo.AddItem(ctx, "a@b.km", custom))
		require.NoError(t, repo.AddItem(ctx, "a@b.km", honey(1)))

		n, err := repo.RemoveProduct(ctx, "a@b.km", "12")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = repo.RemoveProduct(ctx, "a@b.km", "12")
		assert.ErrorIs(t, err, ErrItemNotFound)

		cart, err := repo.GetCart(ctx, "a@b.km")
		require.NoError(t, err)
		assert.Len(t, cart.Items, 1)
	})

	t.Run("ids are not reused after removal", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
		require.NoError(t, repo.RemoveItem(ctx, "a@b.km", 1))
		require.NoError(t, repo.AddItem(ctx, "a@b.km", honey(1)))

		cart, err := repo.GetCart(ctx, "a@b.km")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, int64(2), cart.Items[0].ID)
	})

	t.Run("DeleteCart", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))

		require.NoError(t, repo.DeleteCart(ctx, "a@b.km"))
		_, err := repo.GetCart(ctx, "a@b.km")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.ErrorIs(t, repo.DeleteCart(ctx, "a@b.km"), ErrCartNotFound)
	})

	t.Run("carts are per user", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddItem(ctx, "a@b.km", vanilla(1)))
		require.NoError(t, repo.AddItem(ctx, "c@d.km", honey(5)))

		cart, err := repo.GetCart(ctx, "c@d.km")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, int64(1), cart.Items[0].ID)
		assert.Equal(t, 5, cart.Items[0].Quantity)
	})
}
