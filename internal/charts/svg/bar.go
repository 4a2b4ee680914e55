package svg

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/odyssey-erp/riskdesk/internal/charts"
)

// Bars renders a bar layout. Each bar grows upward from the shared baseline
// after its stagger delay.
func Bars(c charts.BarChart, opts Opts) (template.HTML, error) {
	if c.PlotWidth <= 0 || c.PlotHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")
	titleID := makeID(opts.Title, "bar-title")
	descID := makeID(opts.Title, "bar-desc")

	var b strings.Builder
	header(&b, c.Width, c.Height, titleID, descID, fallback(opts.Title, "Bar chart"), fallback(opts.Description, "Count by category"))
	if len(c.Bars) == 0 {
		placeholder(&b, c.Width, c.Height, axisColor, fallback(opts.EmptyText, "No data"))
		b.WriteString("</svg>")
		return template.HTML(b.String()), nil
	}

	b.WriteString(fmt.Sprintf("<g transform=\"translate(%.2f,%.2f)\">", c.Margin.Left, c.Margin.Top))
	for _, tick := range c.Ticks {
		b.WriteString(fmt.Sprintf("<line x1=\"0\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\"></line>", tick.Y, c.PlotWidth, tick.Y, gridColor))
		b.WriteString(fmt.Sprintf("<text x=\"-6\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", tick.Y+4, axisColor, escape(formatTick(tick.Value))))
	}

	// Axes
	b.WriteString(fmt.Sprintf("<g stroke=\"%s\" aria-label=\"Axes\">", axisColor))
	b.WriteString(fmt.Sprintf("<line x1=\"0\" y1=\"0\" x2=\"0\" y2=\"%.2f\" stroke-width=\"1\"></line>", c.PlotHeight))
	b.WriteString(fmt.Sprintf("<line x1=\"0\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", c.PlotHeight, c.PlotWidth, c.PlotHeight))
	b.WriteString("</g>")

	for _, bar := range c.Bars {
		label := fmt.Sprintf("%s (%d)", bar.Label, bar.Value)
		if opts.Static {
			b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" aria-label=\"%s\"></rect>", bar.X, bar.Y, bar.Width, bar.Height, bar.Color, escape(label)))
		} else {
			b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"0\" fill=\"%s\" aria-label=\"%s\">", bar.X, c.PlotHeight, bar.Width, bar.Color, escape(label)))
			b.WriteString(fmt.Sprintf("<animate attributeName=\"y\" from=\"%.2f\" to=\"%.2f\" begin=\"%s\" dur=\"%s\" fill=\"freeze\"></animate>", c.PlotHeight, bar.Y, ms(bar.Delay), ms(bar.Grow)))
			b.WriteString(fmt.Sprintf("<animate attributeName=\"height\" from=\"0\" to=\"%.2f\" begin=\"%s\" dur=\"%s\" fill=\"freeze\"></animate>", bar.Height, ms(bar.Delay), ms(bar.Grow)))
			b.WriteString("</rect>")
		}
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", bar.LabelX, c.PlotHeight+14, axisColor, escape(bar.Label)))
	}
	b.WriteString("</g></svg>")
	return template.HTML(b.String()), nil
}
