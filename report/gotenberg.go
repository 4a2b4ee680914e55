// Package report renders HTML documents to PDF through Gotenberg.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrRenderFailed wraps every non-2xx answer from Gotenberg.
var ErrRenderFailed = errors.New("report: render failed")

// PageLayout is the paper setup passed to Chromium. Sizes are in inches.
type PageLayout struct {
	Landscape    bool
	PaperWidth   float64
	PaperHeight  float64
	MarginInches float64
}

// DashboardLayout is A4 landscape, wide enough for the request table.
var DashboardLayout = PageLayout{Landscape: true, PaperWidth: 8.27, PaperHeight: 11.7, MarginInches: 0.4}

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	layout     PageLayout
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout bounds every Gotenberg call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLayout overrides the page layout.
func WithLayout(l PageLayout) Option {
	return func(c *Client) {
		c.layout = l
	}
}

// NewClient constructs a new client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		layout:     DashboardLayout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts a self-contained HTML document into a PDF.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, strings.NewReader(html)); err != nil {
		return nil, err
	}
	for name, value := range c.layout.fields() {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report: gotenberg: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRenderFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return io.ReadAll(resp.Body)
}

func (l PageLayout) fields() map[string]string {
	fields := map[string]string{"printBackground": "true"}
	if l.Landscape {
		fields["landscape"] = "true"
	}
	if l.PaperWidth > 0 && l.PaperHeight > 0 {
		fields["paperWidth"] = inches(l.PaperWidth)
		fields["paperHeight"] = inches(l.PaperHeight)
	}
	if l.MarginInches > 0 {
		m := inches(l.MarginInches)
		for _, side := range []string{"marginTop", "marginBottom", "marginLeft", "marginRight"} {
			fields[side] = m
		}
	}
	return fields
}

func inches(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
