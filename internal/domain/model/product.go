package model

// Product is the catalog lookup contract. Pricing data itself lives in the
// product catalog collaborator; the billing core only consults duration,
// per-currency price and the recurring flag.
type Product struct {
	ID           string
	Name         string
	DurationDays int
	// Prices maps currency code to price in that currency's minor unit
	// (e.g. "RUB" -> kopeks, "XTR" -> stars).
	Prices      map[string]int64
	IsRecurring bool
}

// Price returns the product price in currency, or false when the product is
// not sold in that currency.
func (p *Product) Price(currency string) (int64, bool) {
	v, ok := p.Prices[currency]
	return v, ok
}
