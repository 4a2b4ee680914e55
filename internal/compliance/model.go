package compliance

import (
	"context"
	"net/url"
	"time"

	"github.com/odyssey-erp/riskdesk/internal/auth"
)

// Status is the workflow state of a compliance request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists the workflow states in display order.
var Statuses = []Status{StatusPending, StatusInReview, StatusApproved, StatusRejected}

// Valid reports whether s is a known workflow state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// RiskInputs are the facts a risk score is derived from.
type RiskInputs struct {
	PEPFlag        bool `json:"pep_flag"`
	SanctionListed bool `json:"sanction_list"`
	LatePayments   int  `json:"late_payments"`
}

// Company is the subject of compliance requests.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id,omitempty"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestRecord is a single compliance request as returned by the data source.
type RequestRecord struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	RiskScore  int        `json:"risk_score"`
	RiskInputs RiskInputs `json:"risk_inputs"`
	CreatedAt  time.Time  `json:"created_at"`
	Company    Company    `json:"company"`
}

// CompanyName is a convenience accessor used by list views.
func (r RequestRecord) CompanyName() string {
	return r.Company.Name
}

// ShortID returns the first eight characters of the identifier.
func (r RequestRecord) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}

// CompanyInput is the editable part of a company.
type CompanyInput struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id,omitempty"`
	Country string `json:"country"`
}

// RequestInput files a new request. The risk score is derived from the
// inputs by the data source; new requests start pending.
type RequestInput struct {
	CompanyID  string     `json:"company_id"`
	RiskInputs RiskInputs `json:"risk_inputs"`
}

// ResultPage is one page of a filtered listing. Total counts every record
// matching the filter, not just the ones in Items.
type ResultPage struct {
	Items []RequestRecord `json:"items"`
	Total int             `json:"total"`
}

// Source is the backend the dashboard reads compliance data from.
type Source interface {
	FetchList(ctx context.Context, cred auth.Credential, query url.Values) (ResultPage, error)
	AllRequests(ctx context.Context, cred auth.Credential) ([]RequestRecord, error)
	Companies(ctx context.Context, cred auth.Credential) ([]Company, error)
	UpdateStatus(ctx context.Context, cred auth.Credential, id string, status Status) (RequestRecord, error)
	CreateRequest(ctx context.Context, cred auth.Credential, in RequestInput) (RequestRecord, error)
	DeleteRequest(ctx context.Context, cred auth.Credential, id string) error
	CreateCompany(ctx context.Context, cred auth.Credential, in CompanyInput) (Company, error)
	UpdateCompany(ctx context.Context, cred auth.Credential, id string, in CompanyInput) (Company, error)
	DeleteCompany(ctx context.Context, cred auth.Credential, id string) error
	Login(ctx context.Context, email, password string) (auth.Credential, error)
}
