// Package steps binds storefront scenario steps to a browser through the
// resilient executor. Every step is one named action, retried as a unit.
package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kuitang/storefront-e2e/internal/fixtures"
	"github.com/kuitang/storefront-e2e/internal/obs"
	"github.com/kuitang/storefront-e2e/internal/pages"
	"github.com/kuitang/storefront-e2e/internal/resilient"
)

// ensureAttempts bounds the inner add-to-cart loop of EnsureProductInCart.
const ensureAttempts = 2

// ensureSearchTerm finds products with size and color options.
const ensureSearchTerm = "pants"

// Browser is what the steps drive. *browser.Session implements it.
type Browser interface {
	resilient.Session
	pages.Driver
	ClearCookies() error
}

// Suite runs steps against one browser. It is not safe for concurrent use.
type Suite struct {
	exec     *resilient.Executor
	browser  Browser
	pages    *pages.Set
	customer fixtures.Customer
	options  fixtures.ProductOptions
}

// Option configures a Suite.
type Option func(*Suite)

// WithCustomer sets the checkout customer. The default is fixtures.TestCustomer.
func WithCustomer(c fixtures.Customer) Option { return func(s *Suite) { s.customer = c } }

// WithProductOptions sets the size, color and quantity used when adding products.
func WithProductOptions(o fixtures.ProductOptions) Option {
	return func(s *Suite) { s.options = o }
}

// WithPages replaces the page objects, for example to change element timeouts.
func WithPages(set *pages.Set) Option { return func(s *Suite) { s.pages = set } }

func NewSuite(exec *resilient.Executor, b Browser, opts ...Option) *Suite {
	s := &Suite{
		exec:     exec,
		browser:  b,
		pages:    pages.NewSet(pages.NewPage(b)),
		customer: fixtures.TestCustomer(),
		options:  fixtures.DefaultProductOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pages exposes the page objects for assertions outside the step set.
func (s *Suite) Pages() *pages.Set { return s.pages }

// BeginScenario tags ctx so every log line of the scenario carries its name.
func (s *Suite) BeginScenario(ctx context.Context, name string) context.Context {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Scenario: name})
	obs.From(ctx).With("pkg", "steps").Info("scenario started")
	return ctx
}

// AfterScenario deletes cookies so the next scenario starts with an empty cart.
func (s *Suite) AfterScenario(ctx context.Context) error {
	if err := s.browser.ClearCookies(); err != nil {
		obs.From(ctx).With("pkg", "steps").Warn("clear cookies failed", "error", err)
		return fmt.Errorf("clear cookies: %w", err)
	}
	obs.From(ctx).With("pkg", "steps").Info("scenario finished")
	return nil
}

func (s *Suite) run(ctx context.Context, action string, fn func(ctx context.Context, log *slog.Logger) error, opts ...resilient.CallOption) error {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Step: action})
	return s.exec.Do(ctx, action, func(ctx context.Context) error {
		return fn(ctx, obs.From(ctx).With("pkg", "steps"))
	}, opts...)
}

// OpenHomePage: "I am on the home page".
func (s *Suite) OpenHomePage(ctx context.Context) error {
	return s.run(ctx, "open home page", func(ctx context.Context, _ *slog.Logger) error {
		return s.pages.Home.Open(ctx)
	})
}

// SearchFor: "I search for {term}".
func (s *Suite) SearchFor(ctx context.Context, term string) error {
	return s.run(ctx, "search for "+term, func(ctx context.Context, _ *slog.Logger) error {
		return s.pages.Home.SearchProduct(ctx, term)
	})
}

// ShouldSeeSearchResults: "I should see search results".
func (s *Suite) ShouldSeeSearchResults(ctx context.Context) error {
	return s.run(ctx, "check search results", func(ctx context.Context, log *slog.Logger) error {
		title, err := s.pages.Home.PageTitle(ctx)
		if err != nil {
			return err
		}
		log.Info("page title", "title", title)
		if !strings.Contains(title, pages.SearchTitlePrefix) {
			return fmt.Errorf("page title %q does not include %q", title, pages.SearchTitlePrefix)
		}
		return nil
	})
}

// SearchResultsShouldContain: "the search results should contain {term} products".
func (s *Suite) SearchResultsShouldContain(ctx context.Context, term string) error {
	return s.run(ctx, fmt.Sprintf("check search results contain %s", term), func(ctx context.Context, log *slog.Logger) error {
		names, err := s.pages.Home.ResultNames(ctx)
		if err != nil {
			return err
		}
		log.Info("search results", "term", term, "count", len(names), "names", strings.Join(names, ", "))
		return pages.CheckSearchResults(names, term)
	})
}

// OpenCart: "I am on the shopping cart page".
func (s *Suite) OpenCart(ctx context.Context) error {
	return s.run(ctx, "open cart page", func(ctx context.Context, _ *slog.Logger) error {
		return s.pages.Cart.Open(ctx)
	})
}

// ClickFirstProduct: "I click on the first product in the search results".
func (s *Suite) ClickFirstProduct(ctx context.Context) error {
	return s.run(ctx, "click first product", func(ctx context.Context, _ *slog.Logger) error {
		return s.pages.Home.ClickFirstResult(ctx)
	})
}

// AddProductToCart: "I add the product to my cart".
func (s *Suite) AddProductToCart(ctx context.Context) error {
	return s.run(ctx, "add product to cart", func(ctx context.Context, _ *slog.Logger) error {
		ok, err := s.pages.Product.AddToCart(ctx, s.options)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("product was not added to cart successfully")
		}
		return nil
	})
}

// ShouldHaveItemsInCart: "I should have items in my shopping cart".
func (s *Suite) ShouldHaveItemsInCart(ctx context.Context) error {
	return s.run(ctx, "check cart has items", func(ctx context.Context, _ *slog.Logger) error {
		if err := s.pages.Cart.Open(ctx); err != nil {
			return err
		}
		n, err := s.pages.Cart.NumberOfItems(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("shopping cart is empty")
		}
		return nil
	})
}

// EnsureProductInCart: "I have a product in my shopping cart". It does
// nothing when the cart already has rows, otherwise it searches for pants
// and adds the first result, trying twice within each executor attempt.
func (s *Suite) EnsureProductInCart(ctx context.Context) error {
	return s.run(ctx, "add product to cart for scenario", func(ctx context.Context, log *slog.Logger) error {
		if err := s.pages.Cart.Open(ctx); err != nil {
			return err
		}
		if !s.pages.Cart.IsCartEmpty(ctx) {
			log.Info("cart already has items, skipping adding products")
			return nil
		}
		log.Info("cart is empty, will add a product")

		for attempt := 1; attempt <= ensureAttempts; attempt++ {
			log.Info("adding product for scenario", "attempt", attempt, "max_attempts", ensureAttempts)
			added, err := s.addFirstResult(ctx, log)
			if err != nil {
				return err
			}
			if !added {
				log.Info("failed to add product to cart, will retry")
				continue
			}
			if err := s.pages.Cart.Open(ctx); err != nil {
				return err
			}
			n, err := s.pages.Cart.NumberOfItems(ctx)
			if err != nil {
				return err
			}
			log.Info("verified items in cart", "count", n)
			return nil
		}
		return fmt.Errorf("failed to add product to cart after %d attempts", ensureAttempts)
	}, resilient.WithMaxRetries(3))
}

func (s *Suite) addFirstResult(ctx context.Context, log *slog.Logger) (bool, error) {
	if err := s.pages.Home.Open(ctx); err != nil {
		return false, err
	}
	if err := s.pages.Home.SearchProduct(ctx, ensureSearchTerm); err != nil {
		return false, err
	}
	results, err := s.pages.Home.SearchResults(ctx)
	if err != nil {
		return false, err
	}
	if len(results) == 0 {
		log.Info("no search results found", "term", ensureSearchTerm)
		return false, nil
	}
	if err := s.pages.Home.ClickFirstResult(ctx); err != nil {
		return false, err
	}
	return s.pages.Product.AddToCart(ctx, s.options)
}

// ShouldSeeItemCount: "I should see {n} item(s) in my shopping cart".
func (s *Suite) ShouldSeeItemCount(ctx context.Context, want int) error {
	return s.run(ctx, fmt.Sprintf("check for %d items in cart", want), func(ctx context.Context, _ *slog.Logger) error {
		if err := s.pages.Cart.Open(ctx); err != nil {
			return err
		}
		got, err := s.pages.Cart.NumberOfItems(ctx)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("expected %d items in cart, found %d", want, got)
		}
		return nil
	})
}

// UpdateFirstQuantity: "I update the product quantity to {qty}".
func (s *Suite) UpdateFirstQuantity(ctx context.Context, qty int) error {
	return s.run(ctx, fmt.Sprintf("update quantity to %d", qty), func(ctx context.Context, _ *slog.Logger) error {
		name, err := s.pages.Cart.FirstItemName(ctx)
		if err != nil {
			return err
		}
		_, err = s.pages.Cart.UpdateItemQuantity(ctx, name, qty)
		return err
	})
}

// UpdateQuantityOf: "I update the quantity of {name} to {qty}".
func (s *Suite) UpdateQuantityOf(ctx context.Context, name string, qty int) error {
	return s.run(ctx, fmt.Sprintf("update quantity of %s to %d", name, qty), func(ctx context.Context, _ *slog.Logger) error {
		updated, err := s.pages.Cart.UpdateItemQuantity(ctx, name, qty)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("failed to update quantity of %s", name)
		}
		return nil
	})
}

// RemoveNamedProduct: "I remove {name} from my shopping cart". The row is
// found by a two-way contains match and must be gone afterwards.
func (s *Suite) RemoveNamedProduct(ctx context.Context, name string) error {
	return s.run(ctx, fmt.Sprintf("remove %s from cart", name), func(ctx context.Context, log *slog.Logger) error {
		names, err := s.pages.Cart.ItemNames(ctx)
		if err != nil {
			return err
		}
		match, ok := pages.ClosestName(names, name)
		if !ok {
			return fmt.Errorf("no matching product found for %q", name)
		}
		log.Info("found matching product", "wanted", name, "match", match)
		if _, err := s.pages.Cart.RemoveItemByName(ctx, match); err != nil {
			return err
		}
		still, err := s.pages.Cart.IsProductInCart(ctx, match)
		if err != nil {
			return err
		}
		if still {
			return fmt.Errorf("product %s is still in the cart", match)
		}
		return nil
	}, resilient.WithMaxRetries(3))
}

// RemoveProduct: "I remove the product from my shopping cart". It removes
// the first row and checks that the cart shrank.
func (s *Suite) RemoveProduct(ctx context.Context) error {
	return s.run(ctx, "remove product from cart", func(ctx context.Context, log *slog.Logger) error {
		before, err := s.pages.Cart.ItemNames(ctx)
		if err != nil {
			return err
		}
		if len(before) == 0 {
			return errors.New("no items in cart to remove")
		}
		log.Info("removing first product", "product", before[0])
		if _, err := s.pages.Cart.RemoveItemByName(ctx, before[0]); err != nil {
			return err
		}
		after, err := s.pages.Cart.ItemNames(ctx)
		if err != nil {
			return err
		}
		if len(after) >= len(before) {
			return errors.New("failed to remove an item from cart")
		}
		return nil
	}, resilient.WithMaxRetries(3))
}

// ShouldSeeInCart: "I should see {name} in my shopping cart".
func (s *Suite) ShouldSeeInCart(ctx context.Context, name string) error {
	return s.run(ctx, fmt.Sprintf("check if %s is in cart", name), func(ctx context.Context, _ *slog.Logger) error {
		in, err := s.pages.Cart.IsProductInCart(ctx, name)
		if err != nil {
			return err
		}
		if !in {
			return fmt.Errorf("%s is not in the cart", name)
		}
		return nil
	})
}

// CartShouldBeEmpty: "my shopping cart should be empty".
func (s *Suite) CartShouldBeEmpty(ctx context.Context) error {
	return s.run(ctx, "check if cart is empty", func(ctx context.Context, _ *slog.Logger) error {
		if !s.pages.Cart.IsCartEmpty(ctx) {
			return errors.New("shopping cart is not empty")
		}
		return nil
	})
}

// ProceedToCheckout: "I proceed to checkout".
func (s *Suite) ProceedToCheckout(ctx context.Context) error {
	return s.run(ctx, "proceed to checkout", func(ctx context.Context, _ *slog.Logger) error {
		return s.pages.Cart.ProceedToCheckout(ctx)
	})
}

// CompleteCheckout fills the guest checkout and places the order. It
// returns the order number. A retry reopens checkout from the cart.
func (s *Suite) CompleteCheckout(ctx context.Context) (string, error) {
	var number string
	attempted := false
	err := s.run(ctx, "complete checkout", func(ctx context.Context, log *slog.Logger) error {
		if attempted {
			if err := s.browser.Goto(ctx, "/checkout/"); err != nil {
				return err
			}
		}
		attempted = true
		if err := s.pages.Checkout.CompleteDefaultCheckout(ctx, s.customer); err != nil {
			return err
		}
		title, err := s.pages.Checkout.OrderConfirmationTitle(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(strings.ToLower(title), "thank you") {
			return fmt.Errorf("unexpected confirmation title %q", title)
		}
		number, err = s.pages.Checkout.OrderNumber(ctx)
		if err != nil {
			return err
		}
		log.Info("order placed", "order_number", number)
		return nil
	})
	return number, err
}
