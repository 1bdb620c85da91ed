package fakestore

import (
	"fmt"
	"sync"
)

// CartItem is one cart row. Rows with the same product and options merge.
type CartItem struct {
	ID        int
	ProductID int
	Name      string
	Slug      string
	Size      string
	Color     string
	Qty       int
	Price     float64
}

func (i CartItem) Subtotal() float64 { return i.Price * float64(i.Qty) }

// Message is a one-shot banner shown on the next rendered page.
type Message struct {
	Type string // success, error, notice
	Text string
}

// Order is a placed order.
type Order struct {
	Number         string
	Email          string
	ShippingMethod string
	PaymentMethod  string
	Items          []CartItem
	Total          float64
}

type session struct {
	id        string
	items     []CartItem
	nextItem  int
	flash     []Message
	lastOrder *Order
}

func (s *session) count() int {
	n := 0
	for _, it := range s.items {
		n += it.Qty
	}
	return n
}

func (s *session) total() float64 {
	var t float64
	for _, it := range s.items {
		t += it.Subtotal()
	}
	return t
}

// store holds sessions and orders keyed by the session cookie.
type store struct {
	mu       sync.Mutex
	sessions map[string]*session
	orders   []Order
}

func newStore() *store {
	return &store{sessions: make(map[string]*session)}
}

// with runs fn on the session for id under the store lock, creating it when
// missing.
func (st *store) with(id string, fn func(*session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		s = &session{id: id}
		st.sessions[id] = s
	}
	fn(s)
}

func (st *store) reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[string]*session)
	st.orders = nil
}

// placeOrder must run with st.mu held.
func (st *store) placeOrder(s *session, email, shipping, payment string) Order {
	order := Order{
		Number:         fmt.Sprintf("%09d", len(st.orders)+1),
		Email:          email,
		ShippingMethod: shipping,
		PaymentMethod:  payment,
		Items:          append([]CartItem(nil), s.items...),
		Total:          s.total(),
	}
	st.orders = append(st.orders, order)
	s.items = nil
	s.lastOrder = &order
	return order
}

func (s *session) add(p Product, size, color string, qty int) {
	for i := range s.items {
		it := &s.items[i]
		if it.ProductID == p.ID && it.Size == size && it.Color == color {
			it.Qty += qty
			return
		}
	}
	s.nextItem++
	s.items = append(s.items, CartItem{
		ID:        s.nextItem,
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Size:      size,
		Color:     color,
		Qty:       qty,
		Price:     p.Price,
	})
}

// setQty updates a row. Zero removes it.
func (s *session) setQty(itemID, qty int) bool {
	for i := range s.items {
		if s.items[i].ID != itemID {
			continue
		}
		if qty <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		} else {
			s.items[i].Qty = qty
		}
		return true
	}
	return false
}

func (s *session) remove(itemID int) bool {
	return s.setQty(itemID, 0)
}

func (s *session) takeFlash() []Message {
	msgs := s.flash
	s.flash = nil
	return msgs
}
