package fakestore

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type shopper struct {
	t    *testing.T
	base string
	http *http.Client
}

func newShopper(t *testing.T, base string) *shopper {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &shopper{t: t, base: base, http: &http.Client{Jar: jar}}
}

func (s *shopper) get(path string) (int, string) {
	s.t.Helper()
	resp, err := s.http.Get(s.base + path)
	require.NoError(s.t, err)
	return readBody(s.t, resp)
}

func (s *shopper) post(path string, form url.Values) (int, string) {
	s.t.Helper()
	resp, err := s.http.PostForm(s.base+path, form)
	require.NoError(s.t, err)
	return readBody(s.t, resp)
}

func readBody(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (s *shopper) addRadiantTee(qty string) string {
	s.t.Helper()
	status, body := s.post("/checkout/cart/add", url.Values{
		"product": {"4"}, "size": {"M"}, "color": {"Blue"}, "qty": {qty},
	})
	require.Equal(s.t, http.StatusOK, status)
	return body
}

func TestCatalog_Search(t *testing.T) {
	c, err := NewCatalog(DefaultCatalog())
	require.NoError(t, err)

	names := func(ps []Product) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}

	assert.ElementsMatch(t, []string{
		"Cronus Yoga Pant", "Geo Insulated Jogging Pant", "Ida Workout Parachute Leggings",
	}, names(c.Search("pants")))
	assert.Equal(t, []string{"Aim Analog Watch"}, names(c.Search("Watches")))
	assert.Equal(t, []string{"Selene Yoga Hoodie"}, names(c.Search("yoga hoodie")))
	assert.Empty(t, c.Search("spaceship"))
	assert.Empty(t, c.Search("   "))
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Product{{ID: 1, Slug: "a"}, {ID: 1, Slug: "b"}})
	assert.Error(t, err)
	_, err = NewCatalog([]Product{{ID: 1, Slug: "a"}, {ID: 2, Slug: "a"}})
	assert.Error(t, err)
}

func TestServer_HomeAndSearch(t *testing.T) {
	_, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	status, body := s.get("/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `id="search"`)
	assert.Contains(t, body, "Home Page")

	status, body = s.get("/catalogsearch/result/?q=pants")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Search results for: &#39;pants&#39;")
	assert.Equal(t, 3, strings.Count(body, `class="product-item-link"`))

	_, body = s.get("/catalogsearch/result/?q=spaceship")
	assert.Contains(t, body, "Your search returned no results.")
	assert.NotContains(t, body, "product-item-link")
}

func TestServer_ProductPage(t *testing.T) {
	_, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	status, body := s.get("/product/cronus-yoga-pant")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `id="product-addtocart-button"`)
	assert.Contains(t, body, `option-label="Black"`)
	assert.Contains(t, body, "<strong>Cronus Yoga Pant</strong>")

	status, _ = s.get("/product/no-such-thing")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_DescriptionIsSanitized(t *testing.T) {
	_, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	_, body := s.get("/product/affirm-water-bottle")
	assert.Contains(t, body, "Stay hydrated.")
	assert.NotContains(t, body, "alert('x')")
}

func TestServer_AddToCart(t *testing.T) {
	_, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	body := s.addRadiantTee("2")
	assert.Contains(t, body, "message-success")
	assert.Contains(t, body, "You added Radiant Tee to your shopping cart.")
	assert.Contains(t, body, `<span class="counter-number">2</span>`)

	// The banner is shown once.
	_, body = s.get("/product/radiant-tee")
	assert.NotContains(t, body, "message-success")

	_, body = s.get("/checkout/cart/")
	assert.Equal(t, 1, strings.Count(body, `<tbody class="cart item">`))
	assert.Contains(t, body, `value="2"`)
	assert.NotContains(t, body, "cart-empty")
}

func TestServer_AddToCartRequiresOptions(t *testing.T) {
	_, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	_, body := s.post("/checkout/cart/add", url.Values{"product": {"1"}, "qty": {"1"}})
	assert.Contains(t, body, "You need to choose options for your item.")
	assert.NotContains(t, body, "counter-number")

	_, body = s.get("/checkout/cart/")
	assert.Contains(t, body, "cart-empty")
}

func TestServer_AddSimpleProductWithoutOptions(t *testing.T) {
	_, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	_, body := s.post("/checkout/cart/add", url.Values{"product": {"8"}})
	assert.Contains(t, body, "You added Joust Duffle Bag to your shopping cart.")
}

func TestServer_UpdateAndDelete(t *testing.T) {
	_, ts := TestServer(t)
	s := newShopper(t, ts.URL)
	s.addRadiantTee("1")
	s.post("/checkout/cart/add", url.Values{"product": {"8"}})

	_, body := s.post("/checkout/cart/updatePost", url.Values{"qty[1]": {"5"}})
	assert.Contains(t, body, `name="qty[1]" value="5"`)
	assert.Contains(t, body, `<span class="counter-number">6</span>`)

	_, body = s.post("/checkout/cart/delete", url.Values{"id": {"1"}})
	assert.NotContains(t, body, "Radiant Tee")
	assert.Contains(t, body, "Joust Duffle Bag")

	_, body = s.post("/checkout/cart/updatePost", url.Values{"qty[2]": {"0"}})
	assert.Contains(t, body, "cart-empty")
}

func checkoutForm() url.Values {
	return url.Values{
		"email":           {"jane@example.com"},
		"firstname":       {"Jane"},
		"lastname":        {"Doe"},
		"street[0]":       {"1 Main St"},
		"city":            {"New York"},
		"region_id":       {"43"},
		"postcode":        {"10001"},
		"country_id":      {"US"},
		"telephone":       {"555-123-4567"},
		"shipping_method": {"flatrate_flatrate"},
		"payment_method":  {"checkmo"},
	}
}

func TestServer_Checkout(t *testing.T) {
	store, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	_, body := s.get("/checkout/")
	assert.Contains(t, body, "cart-empty", "empty cart redirects back to the cart")

	s.addRadiantTee("1")
	status, body := s.get("/checkout/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "table-checkout-shipping-method")
	assert.Contains(t, body, `class="payment-method"`)

	status, body = s.post("/checkout/placeOrder", checkoutForm())
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Thank you for your purchase!")
	assert.Contains(t, body, "<strong>000000001</strong>")

	orders := store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "jane@example.com", orders[0].Email)
	assert.InDelta(t, 22.0, orders[0].Total, 0.001)

	_, body = s.get("/checkout/cart/")
	assert.Contains(t, body, "cart-empty")
}

func TestServer_CheckoutRejectsMissingFields(t *testing.T) {
	store, ts := TestServer(t)
	s := newShopper(t, ts.URL)
	s.addRadiantTee("1")

	form := checkoutForm()
	form.Del("city")
	form.Del("payment_method")
	status, body := s.post("/checkout/placeOrder", form)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "This is a required field: city, payment_method")
	assert.Empty(t, store.Orders())
}

func TestServer_SessionsAreIsolated(t *testing.T) {
	_, ts := TestServer(t)
	alice := newShopper(t, ts.URL)
	bob := newShopper(t, ts.URL)

	alice.addRadiantTee("1")
	_, body := bob.get("/checkout/cart/")
	assert.Contains(t, body, "cart-empty")
}

func TestServer_FailNext(t *testing.T) {
	store, ts := TestServer(t)
	s := newShopper(t, ts.URL)

	store.FailNext("/", 2)
	status, _ := s.get("/")
	assert.Equal(t, http.StatusInternalServerError, status)
	status, _ = s.get("/")
	assert.Equal(t, http.StatusInternalServerError, status)
	status, _ = s.get("/")
	assert.Equal(t, http.StatusOK, status)

	store.FailNext("/", 1)
	store.Reset()
	status, _ = s.get("/")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_EchoesRequestID(t *testing.T) {
	_, ts := TestServer(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
}

func testSession_CountIsSumOfQuantities(t *rapid.T) {
	products := DefaultCatalog()
	sess := &session{}
	want := 0
	n := rapid.IntRange(1, 30).Draw(t, "adds")
	for i := 0; i < n; i++ {
		p := products[rapid.IntRange(0, len(products)-1).Draw(t, "product")]
		size := rapid.SampledFrom([]string{"", "S", "M"}).Draw(t, "size")
		qty := rapid.IntRange(1, 5).Draw(t, "qty")
		sess.add(p, size, "", qty)
		want += qty
	}
	if got := sess.count(); got != want {
		t.Fatalf("count = %d, want %d", got, want)
	}
	seen := map[[2]any]bool{}
	for _, it := range sess.items {
		key := [2]any{it.ProductID, it.Size}
		if seen[key] {
			t.Fatalf("duplicate row for product %d size %q", it.ProductID, it.Size)
		}
		seen[key] = true
	}
}

func TestSession_CountIsSumOfQuantities(t *testing.T) {
	rapid.Check(t, testSession_CountIsSumOfQuantities)
}
