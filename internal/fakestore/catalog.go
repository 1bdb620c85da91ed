// Package fakestore is an in-process storefront that serves the markup the
// page objects expect, so suites can run without the public demo store.
package fakestore

import (
	"fmt"
	"strings"
)

// Product is one catalog entry. Description is markdown.
type Product struct {
	ID          int
	SKU         string
	Name        string
	Slug        string
	Price       float64
	Description string
	Sizes       []string
	Colors      []string
	Keywords    []string
}

// Configurable reports whether the product needs size or color choices.
func (p Product) Configurable() bool {
	return len(p.Sizes) > 0 || len(p.Colors) > 0
}

// Path is the product page URL path.
func (p Product) Path() string {
	return "/product/" + p.Slug
}

func (p Product) matches(term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) {
		return true
	}
	for _, kw := range p.Keywords {
		if kw == term {
			return true
		}
	}
	return false
}

var apparelSizes = []string{"XS", "S", "M", "L", "XL"}

// DefaultCatalog is a small slice of the demo store's catalog.
func DefaultCatalog() []Product {
	return []Product{
		{
			ID: 1, SKU: "MP01", Name: "Cronus Yoga Pant", Slug: "cronus-yoga-pant", Price: 48,
			Description: "The **Cronus Yoga Pant** is built for *comfort* and flexibility.\n\n- Relaxed fit\n- Elastic waistband\n- 87% Organic cotton",
			Sizes:       []string{"32", "33", "34", "36"}, Colors: []string{"Black", "Blue", "Red"},
			Keywords: []string{"pants", "yoga", "men"},
		},
		{
			ID: 2, SKU: "MP02", Name: "Geo Insulated Jogging Pant", Slug: "geo-insulated-jogging-pant", Price: 51,
			Description: "Warm, *water-resistant* jogging pants for cold morning runs.",
			Sizes:       []string{"32", "33", "34"}, Colors: []string{"Black", "Green", "Red"},
			Keywords: []string{"pants", "jogger", "men"},
		},
		{
			ID: 3, SKU: "WP01", Name: "Ida Workout Parachute Leggings", Slug: "ida-workout-parachute-leggings", Price: 48,
			Description: "Lightweight leggings with a [moisture-wicking](https://example.com/fabric) finish.",
			Sizes:       []string{"28", "29", "30"}, Colors: []string{"Black", "Blue"},
			Keywords: []string{"pants", "yoga", "women"},
		},
		{
			ID: 4, SKU: "MS01", Name: "Radiant Tee", Slug: "radiant-tee", Price: 22,
			Description: "A soft crew-neck tee. Layer it or wear it on its own.",
			Sizes:       apparelSizes, Colors: []string{"Blue", "Orange", "Purple"},
			Keywords: []string{"shirt", "tee", "women"},
		},
		{
			ID: 5, SKU: "MS02", Name: "Tiberius Gym Tank", Slug: "tiberius-gym-tank", Price: 18,
			Description: "A breathable tank for the gym.",
			Sizes:       apparelSizes, Colors: []string{"Black", "Gray", "Yellow"},
			Keywords: []string{"shirt", "tank", "men"},
		},
		{
			ID: 6, SKU: "WJ01", Name: "Juno Jacket", Slug: "juno-jacket", Price: 77,
			Description: "# Juno Jacket\n\nA packable jacket for changing weather.",
			Sizes:       apparelSizes, Colors: []string{"Blue", "Green", "Purple"},
			Keywords: []string{"jacket", "women"},
		},
		{
			ID: 7, SKU: "WH01", Name: "Selene Yoga Hoodie", Slug: "selene-yoga-hoodie", Price: 42,
			Description: "A cozy hoodie for after class.",
			Sizes:       apparelSizes, Colors: []string{"Orange", "Purple", "White"},
			Keywords: []string{"yoga", "hoodie", "jacket", "women"},
		},
		{
			ID: 8, SKU: "24-MB01", Name: "Joust Duffle Bag", Slug: "joust-duffle-bag", Price: 34,
			Description: "A roomy duffle with a shoe compartment.",
			Keywords:    []string{"bag", "gear"},
		},
		{
			ID: 9, SKU: "24-MB04", Name: "Push It Messenger Bag", Slug: "push-it-messenger-bag", Price: 45,
			Description: "Carry your laptop and your lunch.",
			Keywords:    []string{"bag", "gear"},
		},
		{
			ID: 10, SKU: "24-MG04", Name: "Aim Analog Watch", Slug: "aim-analog-watch", Price: 45,
			Description: "A water-resistant analog watch.",
			Keywords:    []string{"watch", "gear"},
		},
		{
			ID: 11, SKU: "24-UG06", Name: "Affirm Water Bottle", Slug: "affirm-water-bottle", Price: 7,
			Description: "<script>alert('x')</script>Stay hydrated.",
			Keywords:    []string{"gear", "bottle"},
		},
	}
}

// Catalog indexes products for lookup and search.
type Catalog struct {
	products []Product
	byID     map[int]Product
	bySlug   map[string]Product
}

func NewCatalog(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: products,
		byID:     make(map[int]Product, len(products)),
		bySlug:   make(map[string]Product, len(products)),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %d", p.ID)
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("duplicate product slug %q", p.Slug)
		}
		c.byID[p.ID] = p
		c.bySlug[p.Slug] = p
	}
	return c, nil
}

func (c *Catalog) All() []Product { return c.products }

func (c *Catalog) ByID(id int) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *Catalog) BySlug(slug string) (Product, bool) {
	p, ok := c.bySlug[slug]
	return p, ok
}

// Search matches every word of query against names and keywords. A
// trailing "s" is ignored so "watches" still finds watches.
func (c *Catalog) Search(query string) []Product {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil
	}
	var out []Product
	for _, p := range c.products {
		all := true
		for _, w := range words {
			if !p.matches(w) && !p.matches(strings.TrimSuffix(w, "s")) && !p.matches(strings.TrimSuffix(w, "es")) {
				all = false
				break
			}
		}
		if all {
			out = append(out, p)
		}
	}
	return out
}

// Featured is what the home page shows.
func (c *Catalog) Featured() []Product {
	n := 4
	if len(c.products) < n {
		n = len(c.products)
	}
	return c.products[:n]
}
