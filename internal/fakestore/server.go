package fakestore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kuitang/storefront-e2e/internal/logutil"
	"github.com/kuitang/storefront-e2e/internal/obs"
)

// SessionCookie names the cookie carrying the cart session.
const SessionCookie = "fakestore_session"

// Region and country choices on the shipping form.
var (
	regions = []option{
		{"12", "California"},
		{"43", "New York"},
		{"57", "Texas"},
	}
	countries = []option{
		{"US", "United States"},
		{"CA", "Canada"},
		{"GB", "United Kingdom"},
	}
	shippingMethods = []shippingMethod{
		{Code: "flatrate_flatrate", Carrier: "Flat Rate", Title: "Fixed", Price: 5},
		{Code: "tablerate_bestway", Carrier: "Best Way", Title: "Table Rate", Price: 10},
	}
	paymentMethods = []option{
		{"checkmo", "Check / Money order"},
		{"cashondelivery", "Cash On Delivery"},
	}
)

var checkoutRequired = []string{
	"email", "firstname", "lastname", "street[0]", "city",
	"region_id", "postcode", "country_id", "telephone",
	"shipping_method", "payment_method",
}

type option struct {
	Value string
	Label string
}

type shippingMethod struct {
	Code    string
	Carrier string
	Title   string
	Price   float64
}

// View is the data every page template receives.
type View struct {
	Title     string
	Query     string
	CartCount int
	Messages  []Message

	Products  []Product
	Product   *Product
	Items     []CartItem
	Total     float64
	Order     *Order
	Regions   []option
	Countries []option
	Shipping  []shippingMethod
	Payments  []option
}

// Server is the fake storefront. The zero value is not usable; use New.
type Server struct {
	catalog  *Catalog
	renderer *Renderer
	store    *store
	handler  http.Handler

	faultsMu sync.Mutex
	faults   map[string]int
}

// New builds a storefront over products, or DefaultCatalog when nil.
func New(products []Product) (*Server, error) {
	if products == nil {
		products = DefaultCatalog()
	}
	catalog, err := NewCatalog(products)
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(templateFS)
	if err != nil {
		return nil, err
	}
	s := &Server{
		catalog:  catalog,
		renderer: renderer,
		store:    newStore(),
		faults:   make(map[string]int),
	}
	s.handler = obs.RequestContextMiddleware(obs.AccessLogMiddleware("fakestore", s.injectFaults(s.sessions(s.routes()))))
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /catalogsearch/result/{$}", s.handleSearch)
	mux.HandleFunc("GET /product/{slug}", s.handleProduct)
	mux.HandleFunc("POST /checkout/cart/add", s.handleAddToCart)
	mux.HandleFunc("GET /checkout/cart/{$}", s.handleCart)
	mux.HandleFunc("POST /checkout/cart/updatePost", s.handleUpdateCart)
	mux.HandleFunc("POST /checkout/cart/delete", s.handleDeleteItem)
	mux.HandleFunc("GET /checkout/{$}", s.handleCheckout)
	mux.HandleFunc("POST /checkout/placeOrder", s.handlePlaceOrder)
	mux.HandleFunc("GET /checkout/onepage/success/{$}", s.handleSuccess)
	mux.HandleFunc("POST /wishlist/index/add", s.handleWishlist)
	mux.HandleFunc("POST /catalog/product_compare/add", s.handleCompare)
	return mux
}

// FailNext makes the next n requests to path answer 500.
func (s *Server) FailNext(path string, n int) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	if n <= 0 {
		delete(s.faults, path)
		return
	}
	s.faults[path] = n
}

// Reset drops every session and order.
func (s *Server) Reset() {
	s.store.reset()
	s.faultsMu.Lock()
	s.faults = make(map[string]int)
	s.faultsMu.Unlock()
}

// Orders returns the orders placed so far.
func (s *Server) Orders() []Order {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return append([]Order(nil), s.store.orders...)
}

// Catalog exposes the products being served.
func (s *Server) Catalog() *Catalog { return s.catalog }

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.faultsMu.Lock()
		n := s.faults[r.URL.Path]
		if n > 0 {
			s.faults[r.URL.Path] = n - 1
		}
		s.faultsMu.Unlock()
		if n > 0 {
			reqLog(r).Warn("injected fault", "path", r.URL.Path, "remaining", n-1)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func reqLog(r *http.Request) *slog.Logger {
	return obs.From(r.Context()).With("pkg", "fakestore")
}

type sessionKey struct{}

// sessions resolves the cart session cookie, issuing one on first contact.
func (s *Server) sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func (s *Server) withSession(r *http.Request, fn func(*session)) {
	id, _ := r.Context().Value(sessionKey{}).(string)
	s.store.with(id, fn)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, view View) {
	s.withSession(r, func(sess *session) {
		view.CartCount = sess.count()
		view.Messages = append(view.Messages, sess.takeFlash()...)
	})
	if err := s.renderer.Render(w, status, name, view); err != nil {
		reqLog(r).Error("render failed", "template", name, "error", err)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home.html", View{
		Title:    "Home Page",
		Products: s.catalog.Featured(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		redirect(w, r, "/")
		return
	}
	results := s.catalog.Search(q)
	reqLog(r).Info("search", "q", q, "results", len(results))
	s.render(w, r, http.StatusOK, "search.html", View{
		Title:    fmt.Sprintf("Search results for: '%s'", q),
		Query:    q,
		Products: results,
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.catalog.BySlug(r.PathValue("slug"))
	if !ok {
		s.render(w, r, http.StatusNotFound, "notfound.html", View{Title: "Whoops, our bad..."})
		return
	}
	s.render(w, r, http.StatusOK, "product.html", View{Title: p.Name, Product: &p})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	id, _ := strconv.Atoi(r.PostForm.Get("product"))
	p, ok := s.catalog.ByID(id)
	if !ok {
		http.Error(w, "unknown product", http.StatusBadRequest)
		return
	}
	size := r.PostForm.Get("size")
	color := r.PostForm.Get("color")
	qty, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("qty")))
	if err != nil || qty < 1 {
		qty = 1
	}

	var msg Message
	switch {
	case len(p.Sizes) > 0 && size == "", len(p.Colors) > 0 && color == "":
		msg = Message{Type: "error", Text: "You need to choose options for your item."}
	default:
		msg = Message{Type: "success", Text: fmt.Sprintf("You added %s to your shopping cart.", p.Name)}
	}
	s.withSession(r, func(sess *session) {
		if msg.Type == "success" {
			sess.add(p, size, color, qty)
		}
		sess.flash = append(sess.flash, msg)
	})
	reqLog(r).Info("add to cart", "product", p.SKU, "size", size, "color", color, "qty", qty, "result", msg.Type)
	redirect(w, r, p.Path())
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	view := View{Title: "Shopping Cart"}
	s.withSession(r, func(sess *session) {
		view.Items = append([]CartItem(nil), sess.items...)
		view.Total = sess.total()
	})
	s.render(w, r, http.StatusOK, "cart.html", view)
}

func (s *Server) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	updates := map[int]int{}
	for key, values := range r.PostForm {
		if !strings.HasPrefix(key, "qty[") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		itemID, err := strconv.Atoi(key[len("qty[") : len(key)-1])
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil {
			continue
		}
		updates[itemID] = qty
	}
	s.withSession(r, func(sess *session) {
		for itemID, qty := range updates {
			sess.setQty(itemID, qty)
		}
	})
	reqLog(r).Info("cart updated", "rows", len(updates))
	redirect(w, r, "/checkout/cart/")
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, _ := strconv.Atoi(r.PostFormValue("id"))
	removed := false
	s.withSession(r, func(sess *session) {
		removed = sess.remove(itemID)
	})
	reqLog(r).Info("cart item removed", "item", itemID, "removed", removed)
	redirect(w, r, "/checkout/cart/")
}

func (s *Server) checkoutView() View {
	return View{
		Title:     "Checkout",
		Regions:   regions,
		Countries: countries,
		Shipping:  shippingMethods,
		Payments:  paymentMethods,
	}
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	empty := false
	view := s.checkoutView()
	s.withSession(r, func(sess *session) {
		empty = len(sess.items) == 0
		view.Items = append([]CartItem(nil), sess.items...)
		view.Total = sess.total()
	})
	if empty {
		redirect(w, r, "/checkout/cart/")
		return
	}
	s.render(w, r, http.StatusOK, "checkout.html", view)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	fields := make(map[string]string, len(checkoutRequired))
	var missing []string
	for _, name := range checkoutRequired {
		v := strings.TrimSpace(r.PostForm.Get(name))
		fields[name] = v
		if v == "" {
			missing = append(missing, name)
		}
	}
	reqLog(r).Info("place order", "fields", logutil.FormatFieldsForLog(fields))

	if len(missing) > 0 {
		view := s.checkoutView()
		view.Messages = []Message{{Type: "error", Text: "This is a required field: " + strings.Join(missing, ", ")}}
		s.render(w, r, http.StatusBadRequest, "checkout.html", view)
		return
	}

	var order *Order
	s.withSession(r, func(sess *session) {
		if len(sess.items) == 0 {
			return
		}
		o := s.store.placeOrder(sess, fields["email"], fields["shipping_method"], fields["payment_method"])
		order = &o
	})
	if order == nil {
		redirect(w, r, "/checkout/cart/")
		return
	}
	reqLog(r).Info("order placed", "order", order.Number, "items", len(order.Items))
	redirect(w, r, "/checkout/onepage/success/?"+url.Values{"order": {order.Number}}.Encode())
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	var order *Order
	s.withSession(r, func(sess *session) {
		order = sess.lastOrder
		sess.lastOrder = nil
	})
	if order == nil {
		redirect(w, r, "/checkout/cart/")
		return
	}
	s.render(w, r, http.StatusOK, "success.html", View{Title: "Thank you for your purchase!", Order: order})
}

func (s *Server) productFromForm(r *http.Request) (Product, bool) {
	id, _ := strconv.Atoi(r.PostFormValue("product"))
	return s.catalog.ByID(id)
}

func (s *Server) handleWishlist(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromForm(r)
	if !ok {
		http.Error(w, "unknown product", http.StatusBadRequest)
		return
	}
	s.withSession(r, func(sess *session) {
		sess.flash = append(sess.flash, Message{Type: "error", Text: "You must login or register to add items to your wishlist."})
	})
	redirect(w, r, p.Path())
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromForm(r)
	if !ok {
		http.Error(w, "unknown product", http.StatusBadRequest)
		return
	}
	s.withSession(r, func(sess *session) {
		sess.flash = append(sess.flash, Message{Type: "success", Text: fmt.Sprintf("You added product %s to the comparison list.", p.Name)})
	})
	redirect(w, r, p.Path())
}
