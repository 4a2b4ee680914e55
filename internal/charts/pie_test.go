package charts

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

const angleEps = 1e-12

func counts(pairs ...interface{}) []compliance.CategoryCount {
	out := make([]compliance.CategoryCount, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, compliance.CategoryCount{Label: pairs[i].(string), Value: pairs[i+1].(int)})
	}
	return out
}

func TestPieLayoutPartitionsFullTurn(t *testing.T) {
	inputs := [][]compliance.CategoryCount{
		counts("pending", 1),
		counts("pending", 3, "approved", 1),
		counts("approved", 7, "pending", 2, "rejected", 5, "in_review", 11),
		counts("a", 1, "b", 1, "c", 1, "d", 1, "e", 1, "f", 1, "g", 1),
	}
	for _, in := range inputs {
		pie := PieLayout(in, PieOptions{})
		require.Len(t, pie.Slices, len(in))
		assert.Equal(t, 0.0, pie.Slices[0].StartAngle)
		assert.Equal(t, FullTurn, pie.Slices[len(pie.Slices)-1].EndAngle)
		sum := 0.0
		for i, s := range pie.Slices {
			assert.Equal(t, in[i].Label, s.Label, "input order preserved")
			assert.Less(t, s.StartAngle, s.EndAngle)
			if i > 0 {
				assert.Equal(t, pie.Slices[i-1].EndAngle, s.StartAngle, "slices are contiguous")
			}
			sum += s.EndAngle - s.StartAngle
		}
		assert.InDelta(t, FullTurn, sum, 1e-9)
	}
}

func TestPieLayoutProportions(t *testing.T) {
	pie := PieLayout(counts("pending", 1, "approved", 3), PieOptions{})
	require.Len(t, pie.Slices, 2)
	assert.InDelta(t, math.Pi/2, pie.Slices[0].EndAngle, angleEps)
	assert.Equal(t, 4, pie.Total)
	assert.Equal(t, "approved (3)", pie.Slices[1].LabelText)
}

func TestPieLayoutZeroTotal(t *testing.T) {
	pie := PieLayout(counts("Low", 0, "Medium", 0, "High", 0), PieOptions{})
	assert.True(t, pie.Empty())
	assert.Equal(t, 0, pie.Total)

	pie = PieLayout(nil, PieOptions{})
	assert.True(t, pie.Empty())
}

func TestPieLayoutSkipsZeroValues(t *testing.T) {
	pie := PieLayout(counts("Low", 2, "Medium", 0, "High", 2), PieOptions{})
	require.Len(t, pie.Slices, 2)
	assert.Equal(t, "Low", pie.Slices[0].Label)
	assert.Equal(t, "High", pie.Slices[1].Label)
	assert.Equal(t, pie.Slices[0].EndAngle, pie.Slices[1].StartAngle)
}

func TestPieColorsAreKeyedByLabel(t *testing.T) {
	a := PieLayout(counts("pending", 1, "approved", 1), PieOptions{})
	b := PieLayout(counts("approved", 5), PieOptions{})
	assert.Equal(t, a.Slices[1].Color, b.Slices[0].Color)
	assert.Equal(t, "#4CAF50", b.Slices[0].Color)
	assert.Equal(t, NeutralColor, ColorFor("unknown"))
}

func TestPieLabelAnchorOutsideSlices(t *testing.T) {
	pie := PieLayout(counts("pending", 1, "approved", 1), PieOptions{})
	assert.InDelta(t, 120, pie.OuterRadius, angleEps)
	for _, s := range pie.Slices {
		r := math.Hypot(s.LabelAnchor.X, s.LabelAnchor.Y)
		assert.Greater(t, r, pie.OuterRadius)
	}
	// first slice spans [0, pi]; its midpoint sits at three o'clock.
	assert.InDelta(t, pie.LabelRadius, pie.Slices[0].LabelAnchor.X, 1e-9)
	assert.InDelta(t, 0, pie.Slices[0].LabelAnchor.Y, 1e-9)
}

func TestPieAnimationSchedule(t *testing.T) {
	pie := PieLayout(counts("pending", 1), PieOptions{})
	assert.Equal(t, PieSweepDuration, pie.ArcAnimation.Duration)
	assert.Zero(t, pie.ArcAnimation.Delay)
	assert.GreaterOrEqual(t, pie.LabelAnimation.Delay, pie.ArcAnimation.Delay+pie.ArcAnimation.Duration)
	assert.Equal(t, PieLabelFade, pie.LabelAnimation.Duration)
}

func TestArcPathFullTurnIsClosed(t *testing.T) {
	path := ArcPath(0, 100, 0, FullTurn)
	assert.Equal(t, 2, strings.Count(path, "M"))
	assert.True(t, strings.HasSuffix(path, "Z"))
	assert.NotContains(t, path, "NaN")
}
