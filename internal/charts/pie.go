package charts

import (
	"fmt"
	"math"
	"strings"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// FullTurn is the angular extent of a complete pie, in radians.
const FullTurn = 2 * math.Pi

// PieOptions configures the pie viewport. Zero values fall back to defaults;
// a negative Margin means no margin.
type PieOptions struct {
	Width       float64
	Height      float64
	Margin      float64
	InnerRatio  float64
	LabelRatio  float64
	WithoutHole bool
}

// PieSlice is one angular wedge. Angles are radians measured clockwise from
// twelve o'clock; coordinates are relative to the pie center.
type PieSlice struct {
	Label       string  `json:"label"`
	Value       int     `json:"value"`
	StartAngle  float64 `json:"start_angle"`
	EndAngle    float64 `json:"end_angle"`
	Color       string  `json:"color"`
	Path        string  `json:"path"`
	LabelAnchor Point   `json:"label_anchor"`
	LabelText   string  `json:"label_text"`
}

// Pie is a complete pie layout.
type Pie struct {
	Width          float64    `json:"width"`
	Height         float64    `json:"height"`
	Center         Point      `json:"center"`
	OuterRadius    float64    `json:"outer_radius"`
	InnerRadius    float64    `json:"inner_radius"`
	LabelRadius    float64    `json:"label_radius"`
	Total          int        `json:"total"`
	Slices         []PieSlice `json:"slices"`
	ArcAnimation   Animation  `json:"arc_animation"`
	LabelAnimation Animation  `json:"label_animation"`
}

// Empty reports whether the layout has nothing to draw.
func (p Pie) Empty() bool {
	return len(p.Slices) == 0
}

func (o PieOptions) withDefaults() PieOptions {
	if o.Width <= 0 {
		o.Width = 280
	}
	if o.Height <= 0 {
		o.Height = 280
	}
	if o.Margin < 0 {
		o.Margin = 0
	} else if o.Margin == 0 {
		o.Margin = 20
	}
	if o.InnerRatio <= 0 || o.InnerRatio >= 1 {
		o.InnerRatio = 0.6
	}
	if o.WithoutHole {
		o.InnerRatio = 0
	}
	if o.LabelRatio <= 1 {
		o.LabelRatio = 1.15
	}
	return o
}

// PieLayout partitions the full turn among counts in input order. Counts with
// a non-positive value get no slice; a zero total yields an empty layout.
func PieLayout(counts []compliance.CategoryCount, opts PieOptions) Pie {
	opts = opts.withDefaults()
	radius := math.Min(opts.Width, opts.Height)/2 - opts.Margin
	if radius < 0 {
		radius = 0
	}
	pie := Pie{
		Width:          opts.Width,
		Height:         opts.Height,
		Center:         Point{X: opts.Width / 2, Y: opts.Height / 2},
		OuterRadius:    radius,
		InnerRadius:    radius * opts.InnerRatio,
		LabelRadius:    radius * opts.LabelRatio,
		ArcAnimation:   Animation{Duration: PieSweepDuration},
		LabelAnimation: Animation{Delay: PieLabelDelay, Duration: PieLabelFade},
	}

	total := 0
	for _, c := range counts {
		if c.Value > 0 {
			total += c.Value
		}
	}
	pie.Total = total
	if total == 0 {
		return pie
	}

	slices := make([]PieSlice, 0, len(counts))
	cumulative := 0
	for _, c := range counts {
		if c.Value <= 0 {
			continue
		}
		start := FullTurn * (float64(cumulative) / float64(total))
		cumulative += c.Value
		end := FullTurn * (float64(cumulative) / float64(total))
		mid := (start + end) / 2
		slices = append(slices, PieSlice{
			Label:       c.Label,
			Value:       c.Value,
			StartAngle:  start,
			EndAngle:    end,
			Color:       ColorFor(c.Label),
			Path:        ArcPath(pie.InnerRadius, pie.OuterRadius, start, end),
			LabelAnchor: polar(pie.LabelRadius, mid),
			LabelText:   fmt.Sprintf("%s (%d)", c.Label, c.Value),
		})
	}
	pie.Slices = slices
	return pie
}

func polar(r, angle float64) Point {
	return Point{X: r * math.Sin(angle), Y: -r * math.Cos(angle)}
}

// ArcPath returns the SVG path of an annular sector between start and end.
// A full turn is drawn as two half arcs because a single SVG arc cannot
// close on itself.
func ArcPath(inner, outer, start, end float64) string {
	if end-start >= FullTurn-1e-9 {
		mid := start + math.Pi
		return joinPath(
			sector(inner, outer, start, mid),
			sector(inner, outer, mid, end),
		)
	}
	return sector(inner, outer, start, end)
}

func sector(inner, outer, start, end float64) string {
	large := 0
	if end-start > math.Pi {
		large = 1
	}
	o0 := polar(outer, start)
	o1 := polar(outer, end)
	var b strings.Builder
	fmt.Fprintf(&b, "M%s,%s", num(o0.X), num(o0.Y))
	fmt.Fprintf(&b, "A%s,%s 0 %d,1 %s,%s", num(outer), num(outer), large, num(o1.X), num(o1.Y))
	if inner <= 0 {
		b.WriteString("L0,0Z")
		return b.String()
	}
	i1 := polar(inner, end)
	i0 := polar(inner, start)
	fmt.Fprintf(&b, "L%s,%s", num(i1.X), num(i1.Y))
	fmt.Fprintf(&b, "A%s,%s 0 %d,0 %s,%s", num(inner), num(inner), large, num(i0.X), num(i0.Y))
	b.WriteString("Z")
	return b.String()
}

func joinPath(parts ...string) string {
	return strings.Join(parts, "")
}

func num(v float64) string {
	if math.Abs(v) < 5e-4 {
		v = 0
	}
	return fmt.Sprintf("%.3f", v)
}
