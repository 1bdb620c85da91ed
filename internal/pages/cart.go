package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Cart page selectors.
const (
	CartPath               = "/checkout/cart/"
	SelCartSummary         = ".cart-summary"
	SelCartItems           = ".cart.item"
	SelCartItemName        = ".product-item-name a"
	SelCartItemQty         = "input.qty"
	SelCartItemDelete      = ".action-delete, .action.delete, a.action.delete"
	SelProceedToCheckout   = ".action.primary.checkout"
	SelEmptyCartMessage    = ".cart-empty"
	cartEmptyCheckTimeout  = 2 * time.Second
	cartItemLookupTimeout  = 5 * time.Second
	cartUpdateClickTimeout = 5 * time.Second
)

// updateButtons are tried in order when applying quantity changes.
var updateButtons = []string{
	"button.update",
	".action.update",
	`button[data-role="proceed-to-checkout"]`,
}

// CartPage is the shopping cart.
type CartPage struct {
	Page
}

func NewCartPage(base Page) *CartPage {
	return &CartPage{Page: base}
}

func (c *CartPage) Open(ctx context.Context) error {
	if err := c.Page.Open(ctx, CartPath); err != nil {
		return err
	}
	return c.WaitForPageToLoad(ctx, 0)
}

func (c *CartPage) NumberOfItems(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.Locator(SelCartItems).Count()
	if err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	c.log.Info("cart items counted", "count", n)
	return n, nil
}

// IsCartEmpty reports whether the empty-cart message is shown.
func (c *CartPage) IsCartEmpty(ctx context.Context) bool {
	msg := c.Locator(SelEmptyCartMessage)
	err := msg.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(cartEmptyCheckTimeout.Milliseconds())),
	})
	return err == nil
}

func (c *CartPage) ItemNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := texts(c.Locator(SelCartItems + " " + SelCartItemName))
	if err != nil {
		return nil, fmt.Errorf("read cart item names: %w", err)
	}
	c.log.Info("cart items", "names", strings.Join(names, ", "))
	return names, nil
}

// IsProductInCart is a case-sensitive substring check over item names.
func (c *CartPage) IsProductInCart(ctx context.Context, name string) (bool, error) {
	names, err := c.ItemNames(ctx)
	if err != nil {
		return false, err
	}
	return containsName(names, name), nil
}

// RemoveItemByName deletes the first row whose name matches name in
// either direction, ignoring case. An empty name, or no match, removes the
// first row. It returns false only when the cart has no rows.
func (c *CartPage) RemoveItemByName(ctx context.Context, name string) (bool, error) {
	items, err := c.Locator(SelCartItems).All()
	if err != nil {
		return false, fmt.Errorf("list cart items: %w", err)
	}
	if len(items) == 0 {
		c.log.Info("no items in cart to remove")
		return false, nil
	}

	target := items[0]
	if name != "" {
		names, err := c.ItemNames(ctx)
		if err != nil {
			return false, err
		}
		if match, ok := ClosestName(names, name); ok {
			for i, n := range names {
				if n == match && i < len(items) {
					target = items[i]
					break
				}
			}
		} else {
			c.log.Info("no cart item matches, removing first item", "wanted", name)
		}
	}

	if err := c.Click(ctx, target.Locator(SelCartItemDelete)); err != nil {
		return false, fmt.Errorf("click remove: %w", err)
	}
	if err := c.WaitForPageToLoad(ctx, 0); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateItemQuantity sets the quantity of the first row whose name contains
// name, ignoring case, then applies it with the first update button found.
func (c *CartPage) UpdateItemQuantity(ctx context.Context, name string, qty int) (bool, error) {
	items, err := c.Locator(SelCartItems).All()
	if err != nil {
		return false, fmt.Errorf("list cart items: %w", err)
	}
	updated := false
	for i, item := range items {
		nameLoc := item.Locator(SelCartItemName)
		if err := c.WaitForDisplayed(ctx, nameLoc, cartItemLookupTimeout); err != nil {
			c.log.Warn("cart item name not found", "index", i, "error", err)
			continue
		}
		itemName, err := nameLoc.First().InnerText()
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(itemName), strings.ToLower(name)) {
			continue
		}
		if err := c.SetValue(ctx, "qty", item.Locator(SelCartItemQty), strconv.Itoa(qty)); err != nil {
			return false, err
		}
		c.log.Info("quantity updated", "product", strings.TrimSpace(itemName), "qty", qty)
		updated = true
		break
	}
	if !updated {
		c.log.Info("no cart item to update", "wanted", name)
		return false, nil
	}

	for _, selector := range updateButtons {
		button := c.Locator(selector)
		if err := c.WaitForClickable(ctx, button, cartUpdateClickTimeout); err != nil {
			c.log.Info("update button not available", "selector", selector)
			continue
		}
		if err := c.Click(ctx, button); err != nil {
			continue
		}
		if err := c.WaitForPageToLoad(ctx, 0); err != nil {
			return false, err
		}
		return true, nil
	}
	c.log.Warn("could not find any update button")
	return false, nil
}

// FirstItemName returns the name of the first row.
func (c *CartPage) FirstItemName(ctx context.Context) (string, error) {
	items, err := c.Locator(SelCartItems).All()
	if err != nil {
		return "", fmt.Errorf("list cart items: %w", err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("cannot update quantity: no items in cart")
	}
	return c.GetText(ctx, items[0].Locator(SelCartItemName))
}

func (c *CartPage) ProceedToCheckout(ctx context.Context) error {
	if err := c.Click(ctx, c.Locator(SelCartSummary+" "+SelProceedToCheckout)); err != nil {
		return fmt.Errorf("proceed to checkout: %w", err)
	}
	return c.WaitForPageToLoad(ctx, 0)
}
