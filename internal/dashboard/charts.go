package dashboard

import (
	"html/template"

	"github.com/odyssey-erp/riskdesk/internal/charts"
	"github.com/odyssey-erp/riskdesk/internal/charts/svg"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// Charts holds both dashboard charts computed from one record set.
type Charts struct {
	ByStatus []compliance.CategoryCount `json:"by_status"`
	ByRisk   []compliance.CategoryCount `json:"by_risk"`
	Pie      charts.Pie                 `json:"pie"`
	Bars     charts.BarChart            `json:"bars"`
}

// RenderedCharts is the inline SVG markup for Charts.
type RenderedCharts struct {
	Status template.HTML
	Risk   template.HTML
}

// BuildCharts aggregates records and lays out the status pie and the risk
// bars.
func BuildCharts(records []compliance.RequestRecord) Charts {
	return ChartsFromCounts(compliance.AggregateByStatus(records), compliance.AggregateByRiskBucket(records))
}

// ChartsFromCounts lays out already aggregated counts.
func ChartsFromCounts(byStatus, byRisk []compliance.CategoryCount) Charts {
	return Charts{
		ByStatus: byStatus,
		ByRisk:   byRisk,
		Pie:      charts.PieLayout(byStatus, charts.PieOptions{}),
		Bars:     charts.BarLayout(byRisk, charts.BarOptions{}),
	}
}

// Render draws both charts. prefix keeps element ids unique when several
// chart pairs share a page; static drops the animations.
func (c Charts) Render(prefix string, static bool) (RenderedCharts, error) {
	status, err := svg.Pie(c.Pie, svg.Opts{
		Title:       prefix + " status",
		Description: "Requests by status",
		EmptyText:   "No requests",
		Static:      static,
	})
	if err != nil {
		return RenderedCharts{}, err
	}
	risk, err := svg.Bars(c.Bars, svg.Opts{
		Title:       prefix + " risk",
		Description: "Requests by risk level",
		Static:      static,
	})
	if err != nil {
		return RenderedCharts{}, err
	}
	return RenderedCharts{Status: status, Risk: risk}, nil
}
