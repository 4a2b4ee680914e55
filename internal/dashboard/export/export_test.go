package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

func sampleRecords() []compliance.RequestRecord {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return []compliance.RequestRecord{
		{ID: "11111111-aaaa", Status: compliance.StatusPending, RiskScore: 70, CreatedAt: created, Company: compliance.Company{Name: "Acme, Inc.", Country: "DE"}},
		{ID: "22222222-bbbb", Status: compliance.StatusApproved, RiskScore: 10, Company: compliance.Company{Name: "<Globex>", Country: "FR"}},
	}
}

func TestWriteRequestsCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteRequestsCSV(buf, sampleRecords()))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, RequestsHeader, rows[0])
	assert.Equal(t, []string{"11111111-aaaa", "Acme, Inc.", "DE", "pending", "70", "High", "2024-03-01T09:30:00Z"}, rows[1])
	assert.Equal(t, "Low", rows[2][5])
	assert.Equal(t, "", rows[2][6])
}

func TestWriteCountsCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteCountsCSV(buf, "Status", []compliance.CategoryCount{{Label: "pending", Value: 3}}))
	assert.Equal(t, "Status,Count\npending,3\n", buf.String())
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("PDF"), nil
}

func TestPDFExporterRender(t *testing.T) {
	renderer := &fakeRenderer{}
	exporter := NewPDFExporter(renderer)
	data, err := exporter.RenderDashboard(context.Background(), DashboardPayload{
		Page:       1,
		TotalPages: 1,
		Total:      2,
		Filters:    []FilterLine{{Label: "Status", Value: "pending"}},
		Records:    sampleRecords(),
		StatusSVG:  "<svg id=\"status\"></svg>",
	})
	require.NoError(t, err)
	assert.Equal(t, "PDF", string(data))
	assert.Contains(t, renderer.html, "<svg id=\"status\"></svg>")
	assert.Contains(t, renderer.html, "&lt;Globex&gt;")
	assert.Contains(t, renderer.html, "70 (High)")
	assert.Contains(t, renderer.html, "Status: pending")
}

func TestPDFExporterPropagatesRendererError(t *testing.T) {
	exporter := NewPDFExporter(&fakeRenderer{err: errors.New("gotenberg down")})
	_, err := exporter.RenderDashboard(context.Background(), DashboardPayload{})
	require.Error(t, err)

	var nilExporter *PDFExporter
	_, err = nilExporter.RenderDashboard(context.Background(), DashboardPayload{})
	require.Error(t, err)
}
