package domain

import "github.com/shopspring/decimal"

// Round2 rounds the exact binary value of v half away from zero to two
// decimal places, so 1.005 (stored as 1.00499...) becomes 1.
func Round2(v float64) float64 {
	return decimal.NewFromFloatWithExponent(v, -2).InexactFloat64()
}

// Float returns a pointer to v, used for optional series fields.
func Float(v float64) *float64 {
	return &v
}
