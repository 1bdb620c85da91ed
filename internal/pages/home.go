package pages

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Home page and search results selectors.
const (
	SelSearchInput    = "#search"
	SelSearchButton   = ".action.search"
	SelSearchResults  = ".product-items .product-item"
	SelResultName     = ".product-item-name"
	SelResultLink     = ".product-item-link"
	SelPageTitle      = ".page-title-wrapper h1.page-title"
	SearchTitlePrefix = "Search results for"
)

// HomePage is the storefront landing page and its search box.
type HomePage struct {
	Page
}

func NewHomePage(base Page) *HomePage {
	return &HomePage{Page: base}
}

func (h *HomePage) Open(ctx context.Context) error {
	return h.Page.Open(ctx, "")
}

// SearchProduct types term into the search box and submits it.
func (h *HomePage) SearchProduct(ctx context.Context, term string) error {
	h.log.Info("searching", "term", term)
	if err := h.SetValue(ctx, "search", h.Locator(SelSearchInput), term); err != nil {
		return err
	}
	if err := h.Click(ctx, h.Locator(SelSearchButton)); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	return h.WaitForPageToLoad(ctx, 0)
}

// SearchResults returns one locator per product tile.
func (h *HomePage) SearchResults(ctx context.Context) ([]playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results, err := h.Locator(SelSearchResults).All()
	if err != nil {
		return nil, fmt.Errorf("list search results: %w", err)
	}
	h.log.Info("search results found", "count", len(results))
	return results, nil
}

// ResultNames returns the product names of all search results.
func (h *HomePage) ResultNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := texts(h.Locator(SelSearchResults + " " + SelResultName))
	if err != nil {
		return nil, fmt.Errorf("read result names: %w", err)
	}
	return names, nil
}

// ProductExists reports whether any result name contains name.
func (h *HomePage) ProductExists(ctx context.Context, name string) (bool, error) {
	names, err := h.ResultNames(ctx)
	if err != nil {
		return false, err
	}
	return containsName(names, name), nil
}

// PageTitle reads the main heading.
func (h *HomePage) PageTitle(ctx context.Context) (string, error) {
	return h.GetText(ctx, h.Locator(SelPageTitle))
}

// ClickFirstResult opens the first product in the results.
func (h *HomePage) ClickFirstResult(ctx context.Context) error {
	results, err := h.SearchResults(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no products found in search results")
	}
	if err := h.Click(ctx, results[0].Locator(SelResultLink)); err != nil {
		return fmt.Errorf("open first result: %w", err)
	}
	return h.WaitForPageToLoad(ctx, 0)
}
