// Package fixtures generates the customer, search and product data the
// suite feeds into the storefront.
package fixtures

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Address is a shipping address in the shape the checkout form expects.
type Address struct {
	FirstName   string
	LastName    string
	Street      string
	City        string
	RegionID    string
	ZipCode     string
	CountryID   string
	PhoneNumber string
}

// Customer is a guest checkout identity.
type Customer struct {
	Email   string
	Address Address
}

// ProductOptions are the configurable choices made before adding to cart.
// Zero values mean "take whatever the page offers first".
type ProductOptions struct {
	Size     string
	Color    string
	Quantity int
}

// FilterOptions lists the catalog's layered-navigation values.
type FilterOptions struct {
	Prices []string
	Colors []string
	Sizes  []string
}

// RandomString returns n characters from [A-Za-z0-9].
func RandomString(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphanumeric[rand.IntN(len(alphanumeric))])
	}
	return b.String()
}

// RandomEmail returns an address like "Ab3dEf9h@xY7zq.com".
func RandomEmail() string {
	return RandomString(8) + "@" + RandomString(5) + ".com"
}

// RandomPhoneNumber returns a US number formatted as (XXX) XXX-XXXX.
func RandomPhoneNumber() string {
	digits := make([]byte, 10)
	for i := range digits {
		digits[i] = byte('0' + rand.IntN(10))
	}
	d := string(digits)
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
}

// TestCustomer returns a New York guest with a fresh email and phone.
func TestCustomer() Customer {
	return Customer{
		Email: RandomEmail(),
		Address: Address{
			FirstName:   "John",
			LastName:    "Tester",
			Street:      "123 Test Street",
			City:        "New York",
			RegionID:    "43", // New York
			ZipCode:     "10001",
			CountryID:   "US",
			PhoneNumber: RandomPhoneNumber(),
		},
	}
}

func ProductSearchTerms() []string {
	return []string{"shirt", "yoga", "jacket", "pants", "watch", "bag"}
}

func Categories() []string {
	return []string{"What's New", "Women", "Men", "Gear", "Training", "Sale"}
}

func ProductFilterOptions() FilterOptions {
	return FilterOptions{
		Prices: []string{
			"$0.00 - $49.99",
			"$50.00 - $99.99",
			"$100.00 - $149.99",
			"$150.00 - $199.99",
			"$200.00 and above",
		},
		Colors: []string{"Black", "Blue", "Brown", "Gray", "Green", "Orange", "Purple", "Red", "White", "Yellow"},
		Sizes:  []string{"XS", "S", "M", "L", "XL"},
	}
}

// RandomItem picks one element. It panics on an empty slice.
func RandomItem[T any](items []T) T {
	return items[rand.IntN(len(items))]
}

// RandomProductOptions picks a size, a color and a quantity in 1..3.
func RandomProductOptions() ProductOptions {
	filters := ProductFilterOptions()
	return ProductOptions{
		Size:     RandomItem(filters.Sizes),
		Color:    RandomItem(filters.Colors),
		Quantity: rand.IntN(3) + 1,
	}
}

// DefaultProductOptions is the size M, black, single item choice the cart
// scenarios use.
func DefaultProductOptions() ProductOptions {
	return ProductOptions{Size: "M", Color: "Black", Quantity: 1}
}
