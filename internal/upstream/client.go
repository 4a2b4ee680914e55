// Package upstream talks to the compliance REST API over HTTP.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// FetchAllPageSize is the page size used when walking a whole collection.
const FetchAllPageSize = 100

// Client wraps the compliance API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type paginated[T any] struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Items    []T `json:"items"`
}

type problem struct {
	Detail json.RawMessage `json:"detail"`
}

// FetchList loads one filtered page of requests.
func (c *Client) FetchList(ctx context.Context, cred auth.Credential, query url.Values) (compliance.ResultPage, error) {
	var page paginated[compliance.RequestRecord]
	if err := c.do(ctx, cred, "list requests", http.MethodGet, "/requests/", query, nil, &page); err != nil {
		return compliance.ResultPage{}, err
	}
	return compliance.ResultPage{Items: page.Items, Total: page.Total}, nil
}

// AllRequests walks every page of the request collection.
func (c *Client) AllRequests(ctx context.Context, cred auth.Credential) ([]compliance.RequestRecord, error) {
	return fetchAll[compliance.RequestRecord](ctx, c, cred, "/requests/")
}

// Companies walks every page of the company collection.
func (c *Client) Companies(ctx context.Context, cred auth.Credential) ([]compliance.Company, error) {
	return fetchAll[compliance.Company](ctx, c, cred, "/companies/")
}

// UpdateStatus moves a request to status.
func (c *Client) UpdateStatus(ctx context.Context, cred auth.Credential, id string, status compliance.Status) (compliance.RequestRecord, error) {
	if !status.Valid() {
		return compliance.RequestRecord{}, fmt.Errorf("upstream: update status: unknown status %q", status)
	}
	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return compliance.RequestRecord{}, err
	}
	var record compliance.RequestRecord
	path := "/requests/" + url.PathEscape(id)
	if err := c.do(ctx, cred, "update status", http.MethodPut, path, nil, bytes.NewReader(body), &record); err != nil {
		return compliance.RequestRecord{}, err
	}
	return record, nil
}

// CreateRequest files a new request. The API scores it.
func (c *Client) CreateRequest(ctx context.Context, cred auth.Credential, in compliance.RequestInput) (compliance.RequestRecord, error) {
	var record compliance.RequestRecord
	if err := c.sendJSON(ctx, cred, "create request", http.MethodPost, "/requests/", in, &record); err != nil {
		return compliance.RequestRecord{}, err
	}
	return record, nil
}

// DeleteRequest removes a request.
func (c *Client) DeleteRequest(ctx context.Context, cred auth.Credential, id string) error {
	return c.do(ctx, cred, "delete request", http.MethodDelete, "/requests/"+url.PathEscape(id), nil, nil, nil)
}

// CreateCompany registers a company. Names are unique on the API side.
func (c *Client) CreateCompany(ctx context.Context, cred auth.Credential, in compliance.CompanyInput) (compliance.Company, error) {
	var company compliance.Company
	if err := c.sendJSON(ctx, cred, "create company", http.MethodPost, "/companies/", in, &company); err != nil {
		return compliance.Company{}, err
	}
	return company, nil
}

// UpdateCompany replaces a company's editable fields.
func (c *Client) UpdateCompany(ctx context.Context, cred auth.Credential, id string, in compliance.CompanyInput) (compliance.Company, error) {
	var company compliance.Company
	if err := c.sendJSON(ctx, cred, "update company", http.MethodPut, "/companies/"+url.PathEscape(id), in, &company); err != nil {
		return compliance.Company{}, err
	}
	return company, nil
}

// DeleteCompany removes a company together with its requests.
func (c *Client) DeleteCompany(ctx context.Context, cred auth.Credential, id string) error {
	return c.do(ctx, cred, "delete company", http.MethodDelete, "/companies/"+url.PathEscape(id), nil, nil, nil)
}

// Login exchanges an email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Credential, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return auth.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return auth.Credential{}, &compliance.RequestError{Op: "login", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return auth.Credential{}, auth.ErrInvalidCredentials
	}
	if resp.StatusCode >= 300 {
		return auth.Credential{}, requestError("login", resp)
	}
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return auth.Credential{}, &compliance.RequestError{Op: "login", Status: resp.StatusCode, Err: err}
	}
	if token.AccessToken == "" {
		return auth.Credential{}, &compliance.RequestError{Op: "login", Status: resp.StatusCode, Detail: "empty access token"}
	}
	return auth.ParseCredential(token.AccessToken), nil
}

// fetchAll pages through path until every item the server counted has been
// collected or a page comes back empty.
func fetchAll[T any](ctx context.Context, c *Client, cred auth.Credential, path string) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(FetchAllPageSize))
		var batch paginated[T]
		if err := c.do(ctx, cred, "fetch all "+strings.Trim(path, "/"), http.MethodGet, path, q, nil, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch.Items...)
		if len(batch.Items) == 0 || len(out) >= batch.Total {
			return out, nil
		}
	}
}

func (c *Client) sendJSON(ctx context.Context, cred auth.Credential, op, method, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("upstream: %s: encode: %w", op, err)
	}
	return c.do(ctx, cred, op, method, path, nil, bytes.NewReader(body), dest)
}

func (c *Client) do(ctx context.Context, cred auth.Credential, op, method, path string, query url.Values, body io.Reader, dest any) error {
	if !cred.Valid() {
		return fmt.Errorf("upstream: %s: %w", op, compliance.ErrAuthExpired)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &compliance.RequestError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("upstream: %s: %w", op, compliance.ErrAuthExpired)
	case resp.StatusCode == http.StatusNotFound:
		return &compliance.RequestError{Op: op, Status: resp.StatusCode, Detail: readDetail(resp.Body), Err: compliance.ErrNotFound}
	case resp.StatusCode >= 300:
		return requestError(op, resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &compliance.RequestError{Op: op, Status: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return nil
}

func requestError(op string, resp *http.Response) error {
	detail := readDetail(resp.Body)
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &compliance.RequestError{Op: op, Status: resp.StatusCode, Detail: detail}
}

// readDetail pulls the API's "detail" field: a string for handled errors or
// a list of objects for validation failures.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var p problem
	if err := json.Unmarshal(data, &p); err != nil || len(p.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(p.Detail, &text); err == nil {
		return text
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(p.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

var _ compliance.Source = (*Client)(nil)
