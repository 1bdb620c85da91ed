package storefront

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/storefront-e2e/internal/fixtures"
	"github.com/kuitang/storefront-e2e/internal/steps"
)

func TestStorefront_ProductDetails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	env := SetupStorefrontTestEnv(t)
	if !env.UsesFakeStore() {
		t.Skip("catalog-specific assertion")
	}
	run := env.NewRun(t)
	product := run.Suite.Pages().Product

	err := run.Scenario(t, "read product details", func(ctx context.Context) error {
		if err := run.Session.Goto(ctx, "/product/cronus-yoga-pant"); err != nil {
			return err
		}
		title, err := product.Title(ctx)
		require.NoError(t, err)
		require.Equal(t, "Cronus Yoga Pant", title)

		price, err := product.Price(ctx)
		require.NoError(t, err)
		require.Equal(t, "$48.00", price)

		description, err := product.Description(ctx)
		require.NoError(t, err)
		require.Contains(t, description, "Cronus Yoga Pant")
		require.NotContains(t, description, "**")
		return nil
	})
	require.NoError(t, err)
}

func TestStorefront_WishlistAndCompare(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	env := SetupStorefrontTestEnv(t)
	if !env.UsesFakeStore() {
		t.Skip("wishlist needs a shopper that is not logged in")
	}
	run := env.NewRun(t)
	product := run.Suite.Pages().Product

	err := run.Scenario(t, "wishlist and compare", func(ctx context.Context) error {
		if err := run.Session.Goto(ctx, "/product/aim-analog-watch"); err != nil {
			return err
		}
		require.NoError(t, product.AddToWishlist(ctx))
		require.NoError(t, product.WaitForPageToLoad(ctx, 0))
		require.False(t, product.IsSuccessMessageDisplayed(ctx), "guests cannot use the wishlist")

		require.NoError(t, product.AddToCompare(ctx))
		require.NoError(t, product.WaitForPageToLoad(ctx, 0))
		require.True(t, product.IsSuccessMessageDisplayed(ctx))
		return nil
	})
	require.NoError(t, err)
}

func TestStorefront_AddRandomOptions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	env := SetupStorefrontTestEnv(t)
	if !env.UsesFakeStore() {
		t.Skip("catalog-specific assertion")
	}
	opts := fixtures.RandomProductOptions()
	run := env.NewRun(t, steps.WithProductOptions(opts))
	product := run.Suite.Pages().Product

	err := run.Scenario(t, "add radiant tee with random options", func(ctx context.Context) error {
		if err := run.Session.Goto(ctx, "/product/radiant-tee"); err != nil {
			return err
		}
		added, err := product.AddToCart(ctx, opts)
		if err != nil {
			return err
		}
		require.True(t, added)
		return run.Suite.ShouldSeeItemCount(ctx, 1)
	})
	require.NoError(t, err)
}

func TestStorefront_CheckoutStartsOnShipping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	env := SetupStorefrontTestEnv(t)
	run := env.NewRun(t)
	s := run.Suite

	err := run.Scenario(t, "checkout starts on shipping", func(ctx context.Context) error {
		if err := s.EnsureProductInCart(ctx); err != nil {
			return err
		}
		if err := s.OpenCart(ctx); err != nil {
			return err
		}
		if err := s.ProceedToCheckout(ctx); err != nil {
			return err
		}
		step, err := s.Pages().Checkout.CurrentStep(ctx)
		require.NoError(t, err)
		require.Equal(t, "Shipping", step)
		return nil
	})
	require.NoError(t, err)
}
