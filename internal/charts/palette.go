package charts

// NeutralColor is used for labels missing from the palette.
const NeutralColor = "#9E9E9E"

// palette keys colours by category label so a category keeps its colour no
// matter which other categories are present.
var palette = map[string]string{
	"pending":   "#2196F3",
	"in_review": "#FFC107",
	"approved":  "#4CAF50",
	"rejected":  "#F44336",
	"Low":       "#4CAF50",
	"Medium":    "#FFC107",
	"High":      "#F44336",
}

// ColorFor returns the palette colour for label.
func ColorFor(label string) string {
	if c, ok := palette[label]; ok {
		return c
	}
	return NeutralColor
}
