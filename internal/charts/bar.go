package charts

import (
	"time"

	"github.com/odyssey-erp/riskdesk/internal/charts/scale"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// BarOptions configures the bar viewport. Zero values fall back to defaults.
type BarOptions struct {
	Width   float64
	Height  float64
	Margin  Margin
	Padding float64
	Ticks   int
}

// Bar is one rectangle in plot-area pixel space. All bars share the baseline
// Y+Height == BarChart.PlotHeight.
type Bar struct {
	Label  string        `json:"label"`
	Value  int           `json:"value"`
	X      float64       `json:"x"`
	Width  float64       `json:"width"`
	Y      float64       `json:"y"`
	Height float64       `json:"height"`
	Color  string        `json:"color"`
	LabelX float64       `json:"label_x"`
	Delay  time.Duration `json:"delay"`
	Grow   time.Duration `json:"grow"`
}

// Tick is a y-axis gridline.
type Tick struct {
	Value float64 `json:"value"`
	Y     float64 `json:"y"`
}

// BarChart is a complete bar layout.
type BarChart struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Margin     Margin  `json:"margin"`
	PlotWidth  float64 `json:"plot_width"`
	PlotHeight float64 `json:"plot_height"`
	DomainMax  float64 `json:"domain_max"`
	Bars       []Bar   `json:"bars"`
	Ticks      []Tick  `json:"ticks"`
}

func (o BarOptions) withDefaults() BarOptions {
	if o.Width <= 0 {
		o.Width = 380
	}
	if o.Height <= 0 {
		o.Height = 280
	}
	if o.Margin == (Margin{}) {
		o.Margin = Margin{Top: 20, Right: 20, Bottom: 40, Left: 50}
	}
	if o.Padding <= 0 || o.Padding >= 1 {
		o.Padding = DefaultBarPadding
	}
	if o.Ticks <= 0 {
		o.Ticks = scale.DefaultTickCount
	}
	return o
}

// BarLayout places one bar per count, left to right in input order. The y
// domain is [0, max+1] so all-zero data still has a usable axis.
func BarLayout(counts []compliance.CategoryCount, opts BarOptions) BarChart {
	opts = opts.withDefaults()
	plotW := opts.Width - opts.Margin.Left - opts.Margin.Right
	plotH := opts.Height - opts.Margin.Top - opts.Margin.Bottom
	if plotW < 0 {
		plotW = 0
	}
	if plotH < 0 {
		plotH = 0
	}

	maxValue := 0
	labels := make([]string, 0, len(counts))
	for _, c := range counts {
		if c.Value > maxValue {
			maxValue = c.Value
		}
		labels = append(labels, c.Label)
	}
	domainMax := float64(maxValue + 1)

	x := scale.NewBand(labels, [2]float64{0, plotW}, opts.Padding)
	y := scale.NewLinear([2]float64{0, domainMax}, [2]float64{plotH, 0})

	chart := BarChart{
		Width:      opts.Width,
		Height:     opts.Height,
		Margin:     opts.Margin,
		PlotWidth:  plotW,
		PlotHeight: plotH,
		DomainMax:  domainMax,
		Bars:       make([]Bar, 0, len(counts)),
	}
	for i, c := range counts {
		value := c.Value
		if value < 0 {
			value = 0
		}
		pos, _ := x.Position(c.Label)
		top := y.Map(float64(value))
		chart.Bars = append(chart.Bars, Bar{
			Label:  c.Label,
			Value:  value,
			X:      pos,
			Width:  x.Bandwidth(),
			Y:      top,
			Height: plotH - top,
			Color:  ColorFor(c.Label),
			LabelX: pos + x.Bandwidth()/2,
			Delay:  time.Duration(i) * BarStaggerStep,
			Grow:   BarGrowDuration,
		})
	}
	for _, v := range scale.Ticks(domainMax, opts.Ticks) {
		chart.Ticks = append(chart.Ticks, Tick{Value: v, Y: y.Map(v)})
	}
	return chart
}
