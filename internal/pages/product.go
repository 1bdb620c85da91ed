package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/storefront-e2e/internal/fixtures"
)

// Product page selectors.
const (
	SelProductTitle       = ".page-title-wrapper .page-title span"
	SelProductPrice       = ".product-info-price .price-wrapper .price"
	SelProductDescription = ".product.attribute.description .value"
	SelAddToCartButton    = "#product-addtocart-button"
	SelSizeOptions        = ".swatch-attribute.size .swatch-option"
	SelColorOptions       = ".swatch-attribute.color .swatch-option"
	SelQuantityInput      = "#qty"
	SelAddToWishlist      = ".action.towishlist"
	SelAddToCompare       = ".action.tocompare"
	SelSuccessMessage     = ".messages .message-success, .page.messages .message-success"
	SelCartCounter        = ".counter-number"
)

const (
	addToCartClickAttempts = 3
	addToCartNotReadyPause = 2 * time.Second
	addToCartErrorPause    = time.Second
	successMessageTimeout  = 5 * time.Second
)

// ProductPage is a single product detail page.
type ProductPage struct {
	Page
}

func NewProductPage(base Page) *ProductPage {
	return &ProductPage{Page: base}
}

func (p *ProductPage) Title(ctx context.Context) (string, error) {
	return p.GetText(ctx, p.Locator(SelProductTitle))
}

func (p *ProductPage) Price(ctx context.Context) (string, error) {
	return p.GetText(ctx, p.Locator(SelProductPrice))
}

func (p *ProductPage) Description(ctx context.Context) (string, error) {
	return p.GetText(ctx, p.Locator(SelProductDescription))
}

// SelectSize clicks the swatch whose label equals size, ignoring case, or
// the first swatch when none does. Products without sizes are left alone.
func (p *ProductPage) SelectSize(ctx context.Context, size string) error {
	return p.selectSwatch(ctx, "size", SelSizeOptions, size, func(opt playwright.Locator) []string {
		text, _ := opt.InnerText()
		return []string{strings.TrimSpace(text)}
	})
}

// SelectColor matches color against the swatch title, option-label and
// aria-label attributes, falling back to the first swatch.
func (p *ProductPage) SelectColor(ctx context.Context, color string) error {
	return p.selectSwatch(ctx, "color", SelColorOptions, color, func(opt playwright.Locator) []string {
		var labels []string
		for _, attr := range []string{"title", "option-label", "aria-label"} {
			if v, err := opt.GetAttribute(attr); err == nil && v != "" {
				labels = append(labels, v)
			}
		}
		return labels
	})
}

func (p *ProductPage) selectSwatch(ctx context.Context, kind, selector, want string, labels func(playwright.Locator) []string) error {
	options, err := p.Locator(selector).All()
	if err != nil {
		return fmt.Errorf("list %s options: %w", kind, err)
	}
	if len(options) == 0 {
		p.log.Info("no swatch options on product", "kind", kind)
		return nil
	}
	if want != "" {
		for _, opt := range options {
			for _, label := range labels(opt) {
				if strings.EqualFold(label, want) {
					p.log.Info("swatch selected", "kind", kind, "value", want)
					return p.Click(ctx, opt)
				}
			}
		}
		p.log.Info("swatch not found, selecting first available", "kind", kind, "wanted", want)
	}
	return p.Click(ctx, options[0])
}

// SetQuantity replaces the quantity field.
func (p *ProductPage) SetQuantity(ctx context.Context, qty int) error {
	return p.SetValue(ctx, "qty", p.Locator(SelQuantityInput), strconv.Itoa(qty))
}

// AddToCart applies opts and clicks "Add to Cart", trying the click up to
// three times. It reports whether the page confirmed the addition.
// Option selection problems are logged and skipped, as the store itself
// rejects incomplete configurations.
func (p *ProductPage) AddToCart(ctx context.Context, opts fixtures.ProductOptions) (bool, error) {
	if title, err := p.Title(ctx); err == nil {
		p.log.Info("adding product to cart", "product", title, "size", opts.Size, "color", opts.Color, "qty", opts.Quantity)
	}

	if err := p.SelectSize(ctx, opts.Size); err != nil {
		p.log.Warn("could not select size, continuing", "error", err)
	}
	if err := p.SelectColor(ctx, opts.Color); err != nil {
		p.log.Warn("could not select color, continuing", "error", err)
	}
	if opts.Quantity > 1 {
		if err := p.SetQuantity(ctx, opts.Quantity); err != nil {
			p.log.Warn("could not set quantity, continuing with default", "error", err)
		}
	}

	button := p.Locator(SelAddToCartButton)
	clicked := false
	for attempt := 1; attempt <= addToCartClickAttempts && !clicked; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		p.log.Info("clicking add to cart", "attempt", attempt, "max_attempts", addToCartClickAttempts)
		enabled, err := button.IsEnabled()
		switch {
		case err != nil:
			p.log.Warn("add to cart button lookup failed", "error", err)
			_ = p.clock.Sleep(ctx, addToCartErrorPause)
		case !enabled:
			_ = p.clock.Sleep(ctx, addToCartNotReadyPause)
		default:
			if err := p.Click(ctx, button); err != nil {
				p.log.Warn("add to cart click failed", "error", err)
				_ = p.clock.Sleep(ctx, addToCartErrorPause)
				continue
			}
			clicked = true
		}
	}
	if !clicked {
		p.log.Warn("add to cart button never became clickable")
		return false, nil
	}
	if err := p.WaitForPageToLoad(ctx, 0); err != nil {
		p.log.Warn("page after add to cart did not finish loading", "error", err)
	}
	return p.IsSuccessMessageDisplayed(ctx), nil
}

// IsSuccessMessageDisplayed checks for the success banner, falling back to
// a mini-cart counter above zero.
func (p *ProductPage) IsSuccessMessageDisplayed(ctx context.Context) bool {
	msg := p.Locator(SelSuccessMessage)
	if err := p.WaitForDisplayed(ctx, msg, successMessageTimeout); err == nil {
		if text, err := msg.First().InnerText(); err == nil {
			p.log.Info("success message found", "message", strings.TrimSpace(text))
		}
		return true
	}
	counter := p.Locator(SelCartCounter)
	if p.Exists(counter) {
		text, err := counter.First().InnerText()
		if err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil && n > 0 {
				p.log.Info("cart counter shows items", "count", n)
				return true
			}
		}
	}
	p.log.Info("no success message or cart update found")
	return false
}

func (p *ProductPage) AddToWishlist(ctx context.Context) error {
	return p.Click(ctx, p.Locator(SelAddToWishlist))
}

func (p *ProductPage) AddToCompare(ctx context.Context) error {
	return p.Click(ctx, p.Locator(SelAddToCompare))
}
