// Package export writes the dashboard's current page in download formats.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// RequestsHeader is the column row of WriteRequestsCSV.
var RequestsHeader = []string{"ID", "Company", "Country", "Status", "Risk Score", "Risk Level", "Created At"}

// WriteRequestsCSV serialises records, one row each, in the given order.
func WriteRequestsCSV(w io.Writer, records []compliance.RequestRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(RequestsHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write([]string{
			rec.ID,
			rec.CompanyName(),
			rec.Company.Country,
			string(rec.Status),
			strconv.Itoa(rec.RiskScore),
			compliance.RiskBucket(rec.RiskScore),
			formatTime(rec.CreatedAt),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCountsCSV emits one labelled tally per row.
func WriteCountsCSV(w io.Writer, title string, counts []compliance.CategoryCount) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{title, "Count"}); err != nil {
		return err
	}
	for _, c := range counts {
		if err := writer.Write([]string{c.Label, strconv.Itoa(c.Value)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
