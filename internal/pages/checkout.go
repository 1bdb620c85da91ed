package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/fixtures"
)

// Checkout selectors, shipping step then payment step then confirmation.
const (
	SelCheckoutStep       = ".opc-progress-bar-item._active span"
	SelEmailInput         = "#customer-email"
	SelFirstName          = `input[name="firstname"]`
	SelLastName           = `input[name="lastname"]`
	SelStreet             = `input[name="street[0]"]`
	SelCity               = `input[name="city"]`
	SelRegion             = `select[name="region_id"]`
	SelPostcode           = `input[name="postcode"]`
	SelCountry            = `select[name="country_id"]`
	SelTelephone          = `input[name="telephone"]`
	SelShippingMethods    = ".table-checkout-shipping-method tbody tr"
	SelNextButton         = ".button.action.continue.primary"
	SelPaymentMethods     = ".payment-method"
	SelPaymentRadios      = `.payment-method input[type="radio"]`
	SelPlaceOrder         = ".action.primary.checkout"
	SelConfirmationTitle  = ".page-title-wrapper .page-title"
	SelOrderNumber        = ".checkout-success .order-number strong"
	confirmationTimeout   = 15 * time.Second
	checkoutDefaultMethod = 0
)

// CheckoutPage is the guest one-page checkout.
type CheckoutPage struct {
	Page
}

func NewCheckoutPage(base Page) *CheckoutPage {
	return &CheckoutPage{Page: base}
}

func (c *CheckoutPage) CurrentStep(ctx context.Context) (string, error) {
	return c.GetText(ctx, c.Locator(SelCheckoutStep))
}

func (c *CheckoutPage) FillEmail(ctx context.Context, email string) error {
	return c.SetValue(ctx, "email", c.Locator(SelEmailInput), email)
}

// FillShippingAddress fills every shipping field and picks region and country.
func (c *CheckoutPage) FillShippingAddress(ctx context.Context, addr fixtures.Address) error {
	fields := []struct {
		name, selector, value string
	}{
		{"firstname", SelFirstName, addr.FirstName},
		{"lastname", SelLastName, addr.LastName},
		{"street", SelStreet, addr.Street},
		{"city", SelCity, addr.City},
	}
	for _, f := range fields {
		if err := c.SetValue(ctx, f.name, c.Locator(f.selector), f.value); err != nil {
			return fmt.Errorf("fill shipping address: %w", err)
		}
	}
	if err := c.selectValue(ctx, "region_id", SelRegion, addr.RegionID); err != nil {
		return err
	}
	if err := c.SetValue(ctx, "postcode", c.Locator(SelPostcode), addr.ZipCode); err != nil {
		return fmt.Errorf("fill shipping address: %w", err)
	}
	if err := c.selectValue(ctx, "country_id", SelCountry, addr.CountryID); err != nil {
		return err
	}
	if err := c.SetValue(ctx, "telephone", c.Locator(SelTelephone), addr.PhoneNumber); err != nil {
		return fmt.Errorf("fill shipping address: %w", err)
	}
	c.log.Info("shipping address filled")
	return nil
}

func (c *CheckoutPage) selectValue(ctx context.Context, field, selector, value string) error {
	loc := c.Locator(selector)
	if err := c.WaitForDisplayed(ctx, loc, 0); err != nil {
		return fmt.Errorf("select %s: %w", field, err)
	}
	if _, err := loc.First().SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice(value),
	}); err != nil {
		return fmt.Errorf("select %s=%s: %w", field, value, err)
	}
	return nil
}

// SelectShippingMethod picks the radio in row index.
func (c *CheckoutPage) SelectShippingMethod(ctx context.Context, index int) error {
	rows, err := c.Locator(SelShippingMethods).All()
	if err != nil {
		return fmt.Errorf("list shipping methods: %w", err)
	}
	if index < 0 || index >= len(rows) {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("shipping method index %d is invalid, only %d methods available", index, len(rows)))
	}
	if err := c.Click(ctx, rows[index].Locator(`input[type="radio"]`)); err != nil {
		return fmt.Errorf("select shipping method: %w", err)
	}
	return nil
}

// GoToNextStep moves from shipping to payment.
func (c *CheckoutPage) GoToNextStep(ctx context.Context) error {
	if err := c.Click(ctx, c.Locator(SelNextButton)); err != nil {
		return fmt.Errorf("go to payment step: %w", err)
	}
	return c.WaitForDisplayed(ctx, c.Locator(SelPaymentMethods), 0)
}

// SelectPaymentMethod picks the payment radio at index.
func (c *CheckoutPage) SelectPaymentMethod(ctx context.Context, index int) error {
	radios, err := c.Locator(SelPaymentRadios).All()
	if err != nil {
		return fmt.Errorf("list payment methods: %w", err)
	}
	if index < 0 || index >= len(radios) {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("payment method index %d is invalid, only %d methods available", index, len(radios)))
	}
	if err := c.Click(ctx, radios[index]); err != nil {
		return fmt.Errorf("select payment method: %w", err)
	}
	return nil
}

func (c *CheckoutPage) PlaceOrder(ctx context.Context) error {
	if err := c.Click(ctx, c.Locator(SelPlaceOrder)); err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	return c.WaitForPageToLoad(ctx, 0)
}

// OrderConfirmationTitle waits up to 15s for the success page heading.
func (c *CheckoutPage) OrderConfirmationTitle(ctx context.Context) (string, error) {
	title := c.Locator(SelConfirmationTitle)
	if err := c.WaitForDisplayed(ctx, title, confirmationTimeout); err != nil {
		return "", fmt.Errorf("order confirmation title not found, the order may not have been placed: %w", err)
	}
	return c.GetText(ctx, title)
}

func (c *CheckoutPage) OrderNumber(ctx context.Context) (string, error) {
	return c.GetText(ctx, c.Locator(SelOrderNumber))
}

// CompleteCheckout runs the whole guest checkout.
func (c *CheckoutPage) CompleteCheckout(ctx context.Context, customer fixtures.Customer, shippingIndex, paymentIndex int) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"fill email", func() error { return c.FillEmail(ctx, customer.Email) }},
		{"fill shipping address", func() error { return c.FillShippingAddress(ctx, customer.Address) }},
		{"select shipping method", func() error { return c.SelectShippingMethod(ctx, shippingIndex) }},
		{"go to payment step", func() error { return c.GoToNextStep(ctx) }},
		{"select payment method", func() error { return c.SelectPaymentMethod(ctx, paymentIndex) }},
		{"place order", func() error { return c.PlaceOrder(ctx) }},
	}
	for i, step := range steps {
		c.log.Info("checkout step", "n", i+1, "step", step.name)
		if err := step.run(); err != nil {
			return fmt.Errorf("checkout step %q: %w", step.name, err)
		}
	}
	c.log.Info("checkout completed")
	return nil
}

// CompleteDefaultCheckout uses the first shipping and payment methods.
func (c *CheckoutPage) CompleteDefaultCheckout(ctx context.Context, customer fixtures.Customer) error {
	return c.CompleteCheckout(ctx, customer, checkoutDefaultMethod, checkoutDefaultMethod)
}
