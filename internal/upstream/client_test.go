package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

var testCred = auth.Credential{Token: "tok"}

func TestFetchListSendsQueryAndBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/requests/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "approved", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": 11, "page": 2, "page_size": 10,
			"items": []map[string]any{{
				"id": "0b7c1a9e-1111-2222-3333-444455556666", "status": "approved", "risk_score": 40,
				"risk_inputs": map[string]any{"pep_flag": false, "sanction_list": true, "late_payments": 0},
				"created_at":  "2025-03-01T10:00:00Z",
				"company":     map[string]any{"id": "c1", "name": "Acme", "country": "CL", "created_at": "2025-01-01T00:00:00Z"},
			}},
		})
	}))
	defer srv.Close()

	q := url.Values{"status": {"approved"}, "page": {"2"}, "page_size": {"10"}}
	page, err := NewClient(srv.URL, time.Second).FetchList(context.Background(), testCred, q)
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, compliance.StatusApproved, item.Status)
	assert.True(t, item.RiskInputs.SanctionListed)
	assert.Equal(t, "Acme", item.CompanyName())
	assert.Equal(t, "0b7c1a9e", item.ShortID())
}

func TestUnauthorizedMapsToAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchList(context.Background(), testCred, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, compliance.ErrAuthExpired))
}

func TestMissingCredentialFailsLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Companies(context.Background(), auth.Credential{})
	assert.ErrorIs(t, err, compliance.ErrAuthExpired)
	assert.False(t, called)
}

func TestServerErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"value is not a valid integer"}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchList(context.Background(), testCred, nil)
	var reqErr *compliance.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnprocessableEntity, reqErr.Status)
	assert.Equal(t, "value is not a valid integer", reqErr.Detail)
	assert.ErrorIs(t, err, compliance.ErrRequestFailed)
}

func TestAllRequestsWalksPages(t *testing.T) {
	const total = 230
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		assert.Equal(t, FetchAllPageSize, size)
		items := []map[string]any{}
		for i := (page - 1) * size; i < page*size && i < total; i++ {
			items = append(items, map[string]any{"id": fmt.Sprintf("r-%d", i), "status": "pending", "risk_score": i % 100})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"total": total, "page": page, "page_size": size, "items": items})
	}))
	defer srv.Close()

	all, err := NewClient(srv.URL, time.Second).AllRequests(context.Background(), testCred)
	require.NoError(t, err)
	assert.Len(t, all, total)
	assert.Equal(t, 3, pages)
	assert.Equal(t, "r-229", all[total-1].ID)
}

func TestUpdateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/requests/r-1", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rejected", body["status"])
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "r-1", "status": "rejected"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	rec, err := c.UpdateStatus(context.Background(), testCred, "r-1", compliance.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, compliance.StatusRejected, rec.Status)

	_, err = c.UpdateStatus(context.Background(), testCred, "r-1", compliance.Status("archived"))
	assert.Error(t, err)
}

func TestUpdateStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"request does not exist"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).UpdateStatus(context.Background(), testCred, "missing", compliance.StatusApproved)
	assert.ErrorIs(t, err, compliance.ErrNotFound)
}

func TestLogin(t *testing.T) {
	signer := auth.NewSigner("secret", time.Hour)
	issued, err := signer.Issue("ana@example.com", "analyst")
	require.NoError(t, err)
	token := issued.Token

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "ana@example.com" || r.PostForm.Get("password") != "s3cret-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": token, "token_type": "bearer"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	cred, err := c.Login(context.Background(), "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, token, cred.Token)
	assert.Equal(t, "ana@example.com", cred.Subject)
	assert.Equal(t, "analyst", cred.Role)
	assert.False(t, cred.ExpiresAt.IsZero())

	_, err = c.Login(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestCreateRequestPostsInputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/requests/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["company_id"])
		inputs := body["risk_inputs"].(map[string]any)
		assert.Equal(t, true, inputs["pep_flag"])
		assert.EqualValues(t, 2, inputs["late_payments"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "r-new", "status": "pending", "risk_score": 80,
			"created_at": "2025-03-01T10:00:00Z",
			"company":    map[string]any{"id": "c1", "name": "Acme", "country": "CL", "created_at": "2025-01-01T00:00:00Z"},
		})
	}))
	defer srv.Close()

	rec, err := NewClient(srv.URL, time.Second).CreateRequest(context.Background(), testCred, compliance.RequestInput{
		CompanyID:  "c1",
		RiskInputs: compliance.RiskInputs{PEPFlag: true, LatePayments: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "r-new", rec.ID)
	assert.Equal(t, 80, rec.RiskScore)
	assert.Equal(t, compliance.StatusPending, rec.Status)
}

func TestCreateRequestUnknownCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"company does not exist"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).CreateRequest(context.Background(), testCred, compliance.RequestInput{CompanyID: "nope"})
	assert.ErrorIs(t, err, compliance.ErrNotFound)
	var reqErr *compliance.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "company does not exist", reqErr.Detail)
}

func TestCompanyWrites(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost, http.MethodPut:
			var in compliance.CompanyInput
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			if in.Name == "Taken" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail":"a company with this name already exists"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(compliance.Company{ID: "c9", Name: in.Name, TaxID: in.TaxID, Country: in.Country})
		}
	}))
	defer srv.Close()
	client := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	created, err := client.CreateCompany(ctx, testCred, compliance.CompanyInput{Name: "Initech", Country: "US"})
	require.NoError(t, err)
	assert.Equal(t, "c9", created.ID)

	updated, err := client.UpdateCompany(ctx, testCred, "c9", compliance.CompanyInput{Name: "Initech LLC", TaxID: "12-3", Country: "US"})
	require.NoError(t, err)
	assert.Equal(t, "Initech LLC", updated.Name)

	_, err = client.CreateCompany(ctx, testCred, compliance.CompanyInput{Name: "Taken", Country: "CL"})
	var reqErr *compliance.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
	assert.Equal(t, "a company with this name already exists", reqErr.Detail)

	require.NoError(t, client.DeleteCompany(ctx, testCred, "c9"))
	require.NoError(t, client.DeleteRequest(ctx, testCred, "r 1"))

	assert.Equal(t, []string{
		"POST /companies/",
		"PUT /companies/c9",
		"POST /companies/",
		"DELETE /companies/c9",
		"DELETE /requests/r 1",
	}, calls)
}
