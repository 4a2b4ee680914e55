package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// HTMLRenderer converts an HTML document into PDF bytes.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// DashboardPayload is the content of a dashboard PDF.
type DashboardPayload struct {
	GeneratedAt time.Time
	Filters     []FilterLine
	Page        int
	TotalPages  int
	Total       int
	Records     []compliance.RequestRecord
	StatusSVG   template.HTML
	RiskSVG     template.HTML
}

// FilterLine is one active filter printed above the table.
type FilterLine struct {
	Label string
	Value string
}

// PDFExporter renders dashboard payloads through an HTML-to-PDF service.
type PDFExporter struct {
	renderer HTMLRenderer
}

// NewPDFExporter wraps renderer.
func NewPDFExporter(renderer HTMLRenderer) *PDFExporter {
	return &PDFExporter{renderer: renderer}
}

// RenderDashboard builds the document and returns the PDF bytes.
func (p *PDFExporter) RenderDashboard(ctx context.Context, payload DashboardPayload) ([]byte, error) {
	if p == nil || p.renderer == nil {
		return nil, fmt.Errorf("pdf exporter not initialised")
	}
	html, err := BuildHTML(payload)
	if err != nil {
		return nil, err
	}
	return p.renderer.RenderHTML(ctx, html)
}

var documentTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"bucket": compliance.RiskBucket,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("02 Jan 2006")
	},
}).Parse(`<html><head><meta charset="utf-8"><style>
body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}
table{width:100%;border-collapse:collapse;margin-top:16px;}
th,td{border:1px solid #ddd;padding:6px;text-align:left;}th{background:#f5f5f5;}
.charts{display:flex;gap:24px;}.charts svg{width:45%;height:auto;}
</style></head><body>
<h1>Compliance Requests</h1>
<p>Generated {{date .GeneratedAt}}. Page {{.Page}} of {{.TotalPages}}, {{.Total}} matching requests.</p>
{{if .Filters}}<ul>{{range .Filters}}<li>{{.Label}}: {{.Value}}</li>{{end}}</ul>{{end}}
<div class="charts">{{.StatusSVG}}{{.RiskSVG}}</div>
<table><thead><tr><th>ID</th><th>Company</th><th>Status</th><th>Risk</th><th>Created</th></tr></thead><tbody>
{{range .Records}}<tr><td>{{.ShortID}}</td><td>{{.CompanyName}}</td><td>{{.Status}}</td><td>{{.RiskScore}} ({{bucket .RiskScore}})</td><td>{{date .CreatedAt}}</td></tr>
{{else}}<tr><td colspan="5">No requests found.</td></tr>
{{end}}</tbody></table>
</body></html>`))

// BuildHTML renders the standalone document sent to the PDF service.
func BuildHTML(payload DashboardPayload) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("export: build html: %w", err)
	}
	return buf.String(), nil
}
