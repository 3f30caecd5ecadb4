package shopcache

import "math"

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// cents rounds a price to two decimals.
func cents(v float64) float64 { return math.Round(v*100) / 100 }
