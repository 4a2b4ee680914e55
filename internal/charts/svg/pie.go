package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/odyssey-erp/riskdesk/internal/charts"
)

// Pie renders a pie or donut layout. The sweep is drawn by a mask whose
// stroke grows clockwise from twelve o'clock; labels fade in afterwards.
func Pie(p charts.Pie, opts Opts) (template.HTML, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	axisColor := fallback(opts.AxisColor, "#475569")
	titleID := makeID(opts.Title, "pie-title")
	descID := makeID(opts.Title, "pie-desc")

	var b strings.Builder
	header(&b, p.Width, p.Height, titleID, descID, fallback(opts.Title, "Pie chart"), fallback(opts.Description, "Share by category"))
	if p.Empty() {
		placeholder(&b, p.Width, p.Height, axisColor, fallback(opts.EmptyText, "No data"))
		b.WriteString("</svg>")
		return template.HTML(b.String()), nil
	}

	maskID := makeID(opts.Title, "pie-sweep")
	if !opts.Static {
		// a stroke of width r on a circle of radius r/2 covers the whole disc
		r := p.OuterRadius / 2
		circumference := 2 * math.Pi * r
		b.WriteString(fmt.Sprintf("<defs><mask id=\"%s\"><circle cx=\"0\" cy=\"0\" r=\"%.3f\" fill=\"none\" stroke=\"#fff\" stroke-width=\"%.3f\" stroke-dasharray=\"0 %.3f\" transform=\"rotate(-90)\">", maskID, r, p.OuterRadius+2, circumference))
		b.WriteString(fmt.Sprintf("<animate attributeName=\"stroke-dasharray\" from=\"0 %.3f\" to=\"%.3f 0\" begin=\"%s\" dur=\"%s\" fill=\"freeze\"></animate>", circumference, circumference, ms(p.ArcAnimation.Delay), ms(p.ArcAnimation.Duration)))
		b.WriteString("</circle></mask></defs>")
	}

	b.WriteString(fmt.Sprintf("<g transform=\"translate(%.2f,%.2f)\">", p.Center.X, p.Center.Y))
	if opts.Static {
		b.WriteString("<g>")
	} else {
		b.WriteString(fmt.Sprintf("<g mask=\"url(#%s)\">", maskID))
	}
	for _, s := range p.Slices {
		b.WriteString(fmt.Sprintf("<path d=\"%s\" fill=\"%s\" stroke=\"#fff\" stroke-width=\"1\" aria-label=\"%s\"></path>", s.Path, s.Color, escape(s.LabelText)))
	}
	b.WriteString("</g>")

	for _, s := range p.Slices {
		anchor := "start"
		switch {
		case almostEqual(s.LabelAnchor.X, 0):
			anchor = "middle"
		case s.LabelAnchor.X < 0:
			anchor = "end"
		}
		if opts.Static {
			b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"%s\" dominant-baseline=\"middle\">%s</text>", s.LabelAnchor.X, s.LabelAnchor.Y, axisColor, anchor, escape(s.LabelText)))
			continue
		}
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"%s\" dominant-baseline=\"middle\" opacity=\"0\">%s", s.LabelAnchor.X, s.LabelAnchor.Y, axisColor, anchor, escape(s.LabelText)))
		b.WriteString(fmt.Sprintf("<animate attributeName=\"opacity\" from=\"0\" to=\"1\" begin=\"%s\" dur=\"%s\" fill=\"freeze\"></animate></text>", ms(p.LabelAnimation.Delay), ms(p.LabelAnimation.Duration)))
	}
	b.WriteString("</g></svg>")
	return template.HTML(b.String()), nil
}

func escape(s string) string {
	return template.HTMLEscapeString(s)
}
