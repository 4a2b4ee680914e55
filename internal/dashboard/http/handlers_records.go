package dashboardhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
	"github.com/odyssey-erp/riskdesk/internal/shared"
	"github.com/odyssey-erp/riskdesk/internal/view"
)

type requestForm struct {
	CompanyID      string `validate:"required,max=64"`
	PEPFlag        bool
	SanctionListed bool
	LatePayments   int `validate:"gte=0,lte=999"`
}

var requestFieldMessages = map[string]string{
	"CompanyID":    "Choose a company.",
	"LatePayments": "Late payments must be between 0 and 999.",
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	form := requestForm{
		CompanyID:      strings.TrimSpace(r.PostFormValue("company_id")),
		PEPFlag:        checked(r.PostFormValue("pep_flag")),
		SanctionListed: checked(r.PostFormValue("sanction_list")),
	}
	var problems []string
	if raw := strings.TrimSpace(r.PostFormValue("late_payments")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, "Late payments must be a whole number.")
		}
		form.LatePayments = n
	}
	problems = append(problems, h.formProblems(form, requestFieldMessages)...)
	if len(problems) > 0 {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: strings.Join(problems, " ")})
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	created, err := h.source.CreateRequest(ctx, auth.ParseCredential(token), compliance.RequestInput{
		CompanyID: form.CompanyID,
		RiskInputs: compliance.RiskInputs{
			PEPFlag:        form.PEPFlag,
			SanctionListed: form.SanctionListed,
			LatePayments:   form.LatePayments,
		},
	})
	if err != nil {
		h.writeFailed(w, r, sess, "file request", "That company no longer exists.", dashboardPath, err)
		return
	}
	h.afterWrite(ctx, sess)
	sess.AddFlash(shared.FlashMessage{
		Kind:    "success",
		Message: fmt.Sprintf("Request %s filed for %s with risk score %d.", created.ShortID(), created.CompanyName(), created.RiskScore),
	})
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (h *Handler) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := h.source.DeleteRequest(ctx, auth.ParseCredential(token), id); err != nil {
		h.writeFailed(w, r, sess, "delete request", "That request no longer exists.", dashboardPath, err)
		return
	}
	h.afterWrite(ctx, sess)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Request deleted."})
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// afterWrite drops cached aggregates and refetches the caller's listing.
func (h *Handler) afterWrite(ctx context.Context, sess *shared.Session) {
	if err := h.overview.Invalidate(ctx); err != nil {
		h.logger.Warn("invalidate overview", slog.Any("error", err))
	}
	if ctrl, ok := h.registry.Lookup(sess.ID); ok {
		_ = ctrl.Refresh()
	}
}

// writeFailed reports a failed write as a flash and redirects to back. An
// expired credential sends the browser to sign in instead.
func (h *Handler) writeFailed(w http.ResponseWriter, r *http.Request, sess *shared.Session, action, missing, back string, err error) {
	var reqErr *compliance.RequestError
	var message string
	switch {
	case errors.Is(err, compliance.ErrAuthExpired):
		h.expire(w, r, sess, expiredMessage)
		return
	case errors.Is(err, compliance.ErrNotFound):
		message = missing
	case errors.As(err, &reqErr) && reqErr.Detail != "":
		message = "Could not " + action + ": " + reqErr.Detail
	default:
		h.logger.Error(action, slog.Any("error", err))
		message = "Could not " + action + ". Please try again."
	}
	sess.AddFlash(shared.FlashMessage{Kind: "error", Message: message})
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// formProblems validates form and maps failing fields to their messages,
// in struct order.
func (h *Handler) formProblems(form any, messages map[string]string) []string {
	err := h.validator.Struct(form)
	var fieldErrs validator.ValidationErrors
	if err == nil || !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = view.Humanize(fe.Field()) + " is invalid."
		}
		out = append(out, msg)
	}
	return out
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
