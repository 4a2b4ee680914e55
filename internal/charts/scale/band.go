package scale

import "math"

// Band divides a range into equal, padded bands, one per label.
type Band struct {
	index     map[string]int
	labels    []string
	start     float64
	step      float64
	bandwidth float64
	padding   float64
}

// NewBand builds a band scale. padding is used both between bands and at the
// outer edges, with the bands centered in the range; values outside [0, 1)
// are treated as zero.
func NewBand(domain []string, rng [2]float64, padding float64) Band {
	if math.IsNaN(padding) || padding < 0 || padding >= 1 {
		padding = 0
	}
	labels := make([]string, 0, len(domain))
	index := make(map[string]int, len(domain))
	for _, label := range domain {
		if _, dup := index[label]; dup {
			continue
		}
		index[label] = len(labels)
		labels = append(labels, label)
	}

	n := float64(len(labels))
	span := rng[1] - rng[0]
	step := span / math.Max(1, n+padding)
	start := rng[0] + (span-step*(n-padding))/2
	return Band{
		index:     index,
		labels:    labels,
		start:     start,
		step:      step,
		bandwidth: step * (1 - padding),
		padding:   padding,
	}
}

// Position returns the offset of the band for label and whether label is part
// of the domain.
func (b Band) Position(label string) (float64, bool) {
	i, ok := b.index[label]
	if !ok {
		return 0, false
	}
	return b.start + b.step*float64(i), true
}

// Center returns the midpoint of the band for label.
func (b Band) Center(label string) (float64, bool) {
	pos, ok := b.Position(label)
	if !ok {
		return 0, false
	}
	return pos + b.bandwidth/2, true
}

// Bandwidth returns the width of every band.
func (b Band) Bandwidth() float64 {
	return b.bandwidth
}

// Step returns the distance between the starts of adjacent bands.
func (b Band) Step() float64 {
	return b.step
}

// Domain returns the labels in band order.
func (b Band) Domain() []string {
	out := make([]string, len(b.labels))
	copy(out, b.labels)
	return out
}
