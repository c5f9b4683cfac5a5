// Package catalog is the trusted price source. Prices reaching the processor
// always come from here, never from the storefront request.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrUnknownProduct = errors.New("unknown product")

type Product struct {
	Ref      string
	Name     string
	Price    decimal.Decimal
	Currency string
}

type PriceSource interface {
	Lookup(ref string) (Product, error)
}

// Static serves a fixed product list loaded at startup.
type Static struct {
	mu       sync.RWMutex
	products map[string]Product
}

func NewStatic(products []Product) (*Static, error) {
	s := &Static{products: make(map[string]Product, len(products))}
	for _, p := range products {
		if err := validate(p); err != nil {
			return nil, err
		}
		p.Currency = strings.ToUpper(p.Currency)
		s.products[p.Ref] = p
	}
	return s, nil
}

// Demo returns the single-product catalog used by the sandbox storefront.
func Demo() *Static {
	s, _ := NewStatic([]Product{{
		Ref:      "sku1",
		Name:     "Sample Product",
		Price:    decimal.RequireFromString("1.00"),
		Currency: "USD",
	}})
	return s
}

func (s *Static) Lookup(ref string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[ref]
	if !ok {
		return Product{}, fmt.Errorf("%w: %q", ErrUnknownProduct, ref)
	}
	return p, nil
}

func validate(p Product) error {
	if strings.TrimSpace(p.Ref) == "" {
		return fmt.Errorf("product ref is required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %s: negative price", p.Ref)
	}
	if !p.Price.Equal(p.Price.Round(2)) {
		return fmt.Errorf("product %s: price has more than two fractional digits", p.Ref)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("product %s: currency must be an ISO 4217 code", p.Ref)
	}
	return nil
}
