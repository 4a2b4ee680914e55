package scale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestLinearInvertedRange(t *testing.T) {
	s := NewLinear([2]float64{0, 10}, [2]float64{100, 0})
	assert.InDelta(t, 100, s.Map(0), eps)
	assert.InDelta(t, 0, s.Map(10), eps)
	assert.InDelta(t, 50, s.Map(5), eps)
}

func TestLinearDegenerateDomainMapsToRangeStart(t *testing.T) {
	s := NewLinear([2]float64{3, 3}, [2]float64{220, 0})
	for _, v := range []float64{-1, 3, 10} {
		got := s.Map(v)
		assert.False(t, math.IsNaN(got))
		assert.InDelta(t, 220, got, eps)
	}
}

func TestBandOrderingAndWidths(t *testing.T) {
	b := NewBand([]string{"Low", "Medium", "High"}, [2]float64{0, 300}, 0.3)
	low, ok := b.Position("Low")
	assert.True(t, ok)
	medium, _ := b.Position("Medium")
	high, _ := b.Position("High")
	assert.Less(t, low, medium)
	assert.Less(t, medium, high)

	assert.InDelta(t, medium-low, high-medium, eps)
	assert.InDelta(t, 300/3.3*0.7, b.Bandwidth(), eps)
	assert.InDelta(t, 300/3.3*0.3, low, eps)
	assert.LessOrEqual(t, high+b.Bandwidth(), 300.0)
}

func TestBandDeterministic(t *testing.T) {
	a := NewBand([]string{"a", "b"}, [2]float64{0, 100}, 0.2)
	b := NewBand([]string{"a", "b"}, [2]float64{0, 100}, 0.2)
	pa, _ := a.Position("b")
	pb, _ := b.Position("b")
	assert.Equal(t, pa, pb)
	assert.Equal(t, a.Bandwidth(), b.Bandwidth())
}

func TestBandUnknownLabelAndBadPadding(t *testing.T) {
	b := NewBand([]string{"x"}, [2]float64{0, 100}, 1.5)
	_, ok := b.Position("y")
	assert.False(t, ok)
	assert.InDelta(t, 100, b.Bandwidth(), eps)
	center, ok := b.Center("x")
	assert.True(t, ok)
	assert.InDelta(t, 50, center, eps)
}

func TestBandEmptyDomain(t *testing.T) {
	b := NewBand(nil, [2]float64{0, 100}, 0.3)
	assert.Empty(t, b.Domain())
	assert.False(t, math.IsNaN(b.Bandwidth()))
}

func TestTicks(t *testing.T) {
	ticks := Ticks(4, 5)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, ticks)

	ticks = Ticks(3, 0)
	assert.Len(t, ticks, DefaultTickCount)
	assert.Equal(t, 0.0, ticks[0])
	assert.Equal(t, 3.0, ticks[len(ticks)-1])
	for i := 1; i < len(ticks); i++ {
		assert.Greater(t, ticks[i], ticks[i-1])
	}

	assert.Equal(t, []float64{0}, Ticks(0, 5))
}
