package pages

// Set bundles the page objects of one browser session.
type Set struct {
	Home     *HomePage
	Product  *ProductPage
	Cart     *CartPage
	Checkout *CheckoutPage
}

// NewSet builds every page object on top of base.
func NewSet(base Page) *Set {
	return &Set{
		Home:     NewHomePage(base),
		Product:  NewProductPage(base),
		Cart:     NewCartPage(base),
		Checkout: NewCheckoutPage(base),
	}
}
