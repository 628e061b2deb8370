package money

import "github.com/shopspring/decimal"

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Sum accumulates amounts without float drift.
type Sum struct {
	total decimal.Decimal
}

func (s *Sum) Add(v float64) {
	s.total = s.total.Add(decimal.NewFromFloat(v))
}

func (s *Sum) AddDecimal(v decimal.Decimal) {
	s.total = s.total.Add(v)
}

func (s Sum) Decimal() decimal.Decimal {
	return s.total
}

func (s Sum) Rounded() float64 {
	return s.total.Round(2).InexactFloat64()
}

// PerUnit returns round2(round2(total) / qty), or 0 when qty is not positive.
func PerUnit(total decimal.Decimal, qty int64) float64 {
	if qty <= 0 {
		return 0
	}
	return total.Round(2).Div(decimal.NewFromInt(qty)).Round(2).InexactFloat64()
}

// Parse reads a decimal string as written by a float increment.
func Parse(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}
