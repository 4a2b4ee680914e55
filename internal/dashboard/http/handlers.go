package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
	"github.com/odyssey-erp/riskdesk/internal/dashboard"
	"github.com/odyssey-erp/riskdesk/internal/dashboard/export"
	"github.com/odyssey-erp/riskdesk/internal/overview"
	"github.com/odyssey-erp/riskdesk/internal/platform/httpx"
	"github.com/odyssey-erp/riskdesk/internal/query"
	"github.com/odyssey-erp/riskdesk/internal/shared"
	"github.com/odyssey-erp/riskdesk/internal/view"
)

const (
	requestTimeout    = 5 * time.Second
	defaultSettleWait = 2 * time.Second
	loginPath         = "/auth/login"
	dashboardPath     = "/requests"
	companiesPath     = "/companies"
)

const expiredMessage = "Your session has expired. Please sign in again."

var formFields = []struct {
	name  string
	label string
	field query.Field
}{
	{"search", "Search", query.FieldFreeText},
	{"status", "Status", query.FieldStatus},
	{"risk_min", "Min risk", query.FieldRiskMin},
	{"risk_max", "Max risk", query.FieldRiskMax},
	{"page_size", "Per page", query.FieldPageSize},
}

// Source is the write and lookup side of the data source.
type Source interface {
	Companies(ctx context.Context, cred auth.Credential) ([]compliance.Company, error)
	UpdateStatus(ctx context.Context, cred auth.Credential, id string, status compliance.Status) (compliance.RequestRecord, error)
	CreateRequest(ctx context.Context, cred auth.Credential, in compliance.RequestInput) (compliance.RequestRecord, error)
	DeleteRequest(ctx context.Context, cred auth.Credential, id string) error
	CreateCompany(ctx context.Context, cred auth.Credential, in compliance.CompanyInput) (compliance.Company, error)
	UpdateCompany(ctx context.Context, cred auth.Credential, id string, in compliance.CompanyInput) (compliance.Company, error)
	DeleteCompany(ctx context.Context, cred auth.Credential, id string) error
}

// OverviewService provides the portfolio-wide aggregates.
type OverviewService interface {
	Load(ctx context.Context, cred auth.Credential) (overview.Overview, error)
	Invalidate(ctx context.Context) error
}

// PDFService renders dashboard content to PDF bytes.
type PDFService interface {
	RenderDashboard(ctx context.Context, payload export.DashboardPayload) ([]byte, error)
}

// Handler serves the compliance request dashboard.
type Handler struct {
	logger     *slog.Logger
	registry   *dashboard.Registry
	source     Source
	overview   OverviewService
	templates  *view.Engine
	csrf       *shared.CSRFManager
	pdf        PDFService
	validator  *validator.Validate
	settleWait time.Duration
	csvPool    sync.Pool
	now        func() time.Time
}

// NewHandler constructs the dashboard handler. A non-positive settleWait
// uses the default.
func NewHandler(logger *slog.Logger, registry *dashboard.Registry, source Source, overviews OverviewService, templates *view.Engine, csrf *shared.CSRFManager, pdf PDFService, settleWait time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if settleWait <= 0 {
		settleWait = defaultSettleWait
	}
	h := &Handler{
		logger:     logger,
		registry:   registry,
		source:     source,
		overview:   overviews,
		templates:  templates,
		csrf:       csrf,
		pdf:        pdf,
		validator:  validator.New(),
		settleWait: settleWait,
		now:        time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type overviewModel struct {
	Total       int
	GeneratedAt time.Time
	Charts      dashboard.RenderedCharts
}

type pageModel struct {
	View          query.View
	Charts        dashboard.RenderedCharts
	Overview      *overviewModel
	OverviewError string
	Companies     []compliance.Company
}

func (h *Handler) handleRequests(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	ctrl, _ := h.registry.Controller(sess.ID, token)
	v := h.settle(r.Context(), ctrl)
	if v.NeedsLogin {
		h.expire(w, r, sess, v.Message)
		return
	}

	model := pageModel{View: v}
	charts, err := dashboard.BuildCharts(v.Items).Render("page", false)
	if err != nil {
		h.handleServerError(w, "render charts", err)
		return
	}
	model.Charts = charts

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ov, companies, err := h.loadExtras(ctx, auth.ParseCredential(token))
	switch {
	case errors.Is(err, compliance.ErrAuthExpired):
		h.expire(w, r, sess, expiredMessage)
		return
	case err != nil:
		h.logger.Warn("load overview", slog.Any("error", err))
		model.OverviewError = "The portfolio overview is unavailable right now."
	default:
		rendered, err := dashboard.ChartsFromCounts(ov.ByStatus, ov.ByRisk).Render("overview", false)
		if err != nil {
			h.handleServerError(w, "render overview charts", err)
			return
		}
		model.Overview = &overviewModel{Total: ov.Total, GeneratedAt: ov.GeneratedAt, Charts: rendered}
		model.Companies = companies
	}

	data := view.TemplateData{
		Title:       "Compliance Requests",
		CSRFToken:   h.csrfToken(r.Context(), sess),
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        model,
	}
	if err := h.templates.Render(w, "pages/requests.html", data); err != nil {
		h.handleServerError(w, "render template", err)
	}
}

func (h *Handler) loadExtras(ctx context.Context, cred auth.Credential) (overview.Overview, []compliance.Company, error) {
	var (
		ov        overview.Overview
		companies []compliance.Company
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := h.overview.Load(ctx, cred)
		if err != nil {
			return err
		}
		ov = out
		return nil
	})
	g.Go(func() error {
		out, err := h.source.Companies(ctx, cred)
		if err != nil {
			return err
		}
		companies = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return overview.Overview{}, nil, err
	}
	return ov, companies, nil
}

func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	ctrl, _ := h.registry.Controller(sess.ID, token)
	current := ctrl.View().Filter

	changes := make(map[query.Field]string)
	for _, f := range formFields {
		if _, present := r.PostForm[f.name]; !present {
			continue
		}
		value := strings.TrimSpace(r.PostFormValue(f.name))
		if value != current.Value(f.field) {
			changes[f.field] = value
		}
	}
	err := ctrl.SetFilterFields(changes)
	var vErrs query.ValidationErrors
	var vErr *query.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &vErrs):
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: describeProblems(vErrs...)})
	case errors.As(err, &vErr):
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: describeProblems(vErr)})
	default:
		h.handleServerError(w, "apply filter", err)
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// describeProblems renders field errors with their form labels, in form
// order.
func describeProblems(errs ...*query.ValidationError) string {
	byField := make(map[query.Field]string, len(errs))
	for _, e := range errs {
		byField[e.Field] = e.Message
	}
	problems := make([]string, 0, len(errs))
	for _, f := range formFields {
		if msg, ok := byField[f.field]; ok {
			problems = append(problems, fmt.Sprintf("%s %s.", f.label, msg))
		}
	}
	return strings.Join(problems, " ")
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	ctrl, _ := h.registry.Controller(sess.ID, token)
	switch chi.URLParam(r, "dir") {
	case "prev":
		ctrl.PreviousPage()
	case "next":
		ctrl.NextPage()
	case "last":
		ctrl.LastPage()
	default:
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	ctrl, created := h.registry.Controller(sess.ID, token)
	if !created {
		if err := ctrl.Refresh(); err != nil {
			h.handleServerError(w, "refresh", err)
			return
		}
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	status := compliance.Status(strings.TrimSpace(r.PostFormValue("status")))
	if !status.Valid() {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Choose a valid status."})
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	updated, err := h.source.UpdateStatus(ctx, auth.ParseCredential(token), id, status)
	var reqErr *compliance.RequestError
	switch {
	case errors.Is(err, compliance.ErrAuthExpired):
		h.expire(w, r, sess, expiredMessage)
		return
	case errors.Is(err, compliance.ErrNotFound):
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "That request no longer exists."})
	case errors.As(err, &reqErr) && reqErr.Detail != "":
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not update status: " + reqErr.Detail})
	case err != nil:
		h.logger.Error("update status", slog.String("request", id), slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not update status. Please try again."})
	default:
		if err := h.overview.Invalidate(ctx); err != nil {
			h.logger.Warn("invalidate overview", slog.Any("error", err))
		}
		if ctrl, ok := h.registry.Lookup(sess.ID); ok {
			_ = ctrl.Refresh()
		}
		sess.AddFlash(shared.FlashMessage{
			Kind:    "success",
			Message: fmt.Sprintf("Request %s is now %s.", updated.ShortID(), view.Humanize(string(updated.Status))),
		})
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	ctrl, _ := h.registry.Controller(sess.ID, token)
	v := h.settle(r.Context(), ctrl)
	if v.NeedsLogin {
		h.expire(w, r, sess, v.Message)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteRequestsCSV(buf, v.Items); err != nil {
		h.handleServerError(w, "write requests csv", err)
		return
	}

	filename := fmt.Sprintf("requests-page-%d.csv", v.DisplayPage())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.handleServerError(w, "pdf exporter", errors.New("pdf exporter not configured"))
		return
	}
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	ctrl, _ := h.registry.Controller(sess.ID, token)
	v := h.settle(r.Context(), ctrl)
	if v.NeedsLogin {
		h.expire(w, r, sess, v.Message)
		return
	}

	charts, err := dashboard.BuildCharts(v.Items).Render("pdf", true)
	if err != nil {
		h.handleServerError(w, "render charts", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	pdfBytes, err := h.pdf.RenderDashboard(ctx, export.DashboardPayload{
		GeneratedAt: h.now(),
		Filters:     filterLines(v.Filter),
		Page:        v.DisplayPage(),
		TotalPages:  v.TotalPages,
		Total:       v.Total,
		Records:     v.Items,
		StatusSVG:   charts.Status,
		RiskSVG:     charts.Risk,
	})
	if err != nil {
		h.handleServerError(w, "render pdf", err)
		return
	}

	filename := fmt.Sprintf("requests-page-%d.pdf", v.DisplayPage())
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(pdfBytes); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) handleAPIRequests(w http.ResponseWriter, r *http.Request) {
	v, ok := h.apiView(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPICharts(w http.ResponseWriter, r *http.Request) {
	v, ok := h.apiView(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard.BuildCharts(v.Items))
}

type overviewResponse struct {
	Overview overview.Overview `json:"overview"`
	Charts   dashboard.Charts  `json:"charts"`
}

func (h *Handler) handleAPIOverview(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token := sessionToken(sess)
	if token == "" {
		httpx.RespondError(w, compliance.ErrAuthExpired)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ov, err := h.overview.Load(ctx, auth.ParseCredential(token))
	if err != nil {
		if errors.Is(err, compliance.ErrAuthExpired) {
			h.dropCredential(sess)
		} else {
			h.logError("load overview", err)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overviewResponse{Overview: ov, Charts: dashboard.ChartsFromCounts(ov.ByStatus, ov.ByRisk)})
}

func (h *Handler) apiView(w http.ResponseWriter, r *http.Request) (query.View, bool) {
	sess := shared.SessionFromContext(r.Context())
	token := sessionToken(sess)
	if token == "" {
		httpx.RespondError(w, compliance.ErrAuthExpired)
		return query.View{}, false
	}
	ctrl, _ := h.registry.Controller(sess.ID, token)
	v := h.settle(r.Context(), ctrl)
	if v.NeedsLogin {
		h.dropCredential(sess)
		httpx.RespondError(w, compliance.ErrAuthExpired)
		return query.View{}, false
	}
	return v, true
}

// requireSession redirects to the login page when the session carries no
// access token.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (*shared.Session, string, bool) {
	sess := shared.SessionFromContext(r.Context())
	token := sessionToken(sess)
	if token == "" {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return nil, "", false
	}
	return sess, token, true
}

// settle waits a bounded time for the in-flight fetch, if any.
func (h *Handler) settle(ctx context.Context, ctrl *query.Controller) query.View {
	ctx, cancel := context.WithTimeout(ctx, h.settleWait)
	defer cancel()
	v, err := ctrl.Wait(ctx)
	if err != nil {
		h.logger.Debug("fetch still in flight", slog.Uint64("seq", v.Seq))
	}
	return v
}

// expire drops the session's credential and controller and sends the
// browser to the login page.
func (h *Handler) expire(w http.ResponseWriter, r *http.Request, sess *shared.Session, message string) {
	if message == "" {
		message = expiredMessage
	}
	h.dropCredential(sess)
	sess.AddFlash(shared.FlashMessage{Kind: "error", Message: message})
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (h *Handler) dropCredential(sess *shared.Session) {
	if sess == nil {
		return
	}
	sess.Delete(shared.SessionTokenKey)
	sess.SetUser("")
	h.registry.Forget(sess.ID)
}

func (h *Handler) csrfToken(ctx context.Context, sess *shared.Session) string {
	if h.csrf == nil {
		return ""
	}
	token, err := h.csrf.EnsureToken(ctx, sess)
	if err != nil {
		h.logError("csrf token", err)
	}
	return token
}

func sessionToken(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	return strings.TrimSpace(sess.Get(shared.SessionTokenKey))
}

func filterLines(f query.FilterState) []export.FilterLine {
	var lines []export.FilterLine
	for _, field := range formFields {
		if field.field == query.FieldPageSize {
			continue
		}
		if value := f.Value(field.field); value != "" {
			if field.field == query.FieldStatus {
				value = view.Humanize(value)
			}
			lines = append(lines, export.FilterLine{Label: field.label, Value: value})
		}
	}
	return lines
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}
