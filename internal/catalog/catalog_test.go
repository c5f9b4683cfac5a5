package catalog

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDemoCatalog(t *testing.T) {
	p, err := Demo().Lookup("sku1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.Price.StringFixed(2) != "1.00" || p.Currency != "USD" {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Demo().Lookup("nope")
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestNewStaticValidation(t *testing.T) {
	cases := []Product{
		{Ref: "", Price: decimal.NewFromInt(1), Currency: "USD"},
		{Ref: "a", Price: decimal.NewFromInt(-1), Currency: "USD"},
		{Ref: "a", Price: decimal.RequireFromString("1.005"), Currency: "USD"},
		{Ref: "a", Price: decimal.NewFromInt(1), Currency: "US"},
	}
	for _, c := range cases {
		if _, err := NewStatic([]Product{c}); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}

	s, err := NewStatic([]Product{{Ref: "a", Price: decimal.RequireFromString("2.500"), Currency: "eur"}})
	if err != nil {
		t.Fatalf("new static: %v", err)
	}
	p, _ := s.Lookup("a")
	if p.Currency != "EUR" {
		t.Fatalf("expected upper-cased currency, got %s", p.Currency)
	}
}
