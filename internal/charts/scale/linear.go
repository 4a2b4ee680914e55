// Package scale maps data domains onto pixel ranges.
package scale

import "math"

// Linear maps a continuous domain onto a continuous range.
type Linear struct {
	d0, d1 float64
	r0, r1 float64
}

// NewLinear builds a linear scale from domain [min, max] to range [r0, r1].
// The range may be inverted, as it is for a y axis growing upwards.
func NewLinear(domain, rng [2]float64) Linear {
	return Linear{d0: domain[0], d1: domain[1], r0: rng[0], r1: rng[1]}
}

// Map converts v from domain to range. A degenerate domain (min == max) maps
// every value to the start of the range.
func (s Linear) Map(v float64) float64 {
	span := s.d1 - s.d0
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return s.r0
	}
	return s.r0 + (v-s.d0)/span*(s.r1-s.r0)
}

// Domain returns the configured domain bounds.
func (s Linear) Domain() [2]float64 {
	return [2]float64{s.d0, s.d1}
}

// Range returns the configured range bounds.
func (s Linear) Range() [2]float64 {
	return [2]float64{s.r0, s.r1}
}
