package dashboardhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
	"github.com/odyssey-erp/riskdesk/internal/shared"
	"github.com/odyssey-erp/riskdesk/internal/view"
)

type companyForm struct {
	Name    string `validate:"required,max=200"`
	TaxID   string `validate:"omitempty,max=32"`
	Country string `validate:"required,len=2,alpha"`
}

var companyFieldMessages = map[string]string{
	"Name":    "Enter a company name.",
	"TaxID":   "Tax ID must be at most 32 characters.",
	"Country": "Use a two-letter country code.",
}

func (f companyForm) input() compliance.CompanyInput {
	return compliance.CompanyInput{Name: f.Name, TaxID: f.TaxID, Country: f.Country}
}

type companiesModel struct {
	Companies []compliance.Company
	Form      companyForm
	EditingID string
	Errors    map[string]string
	LoadError string
}

// Action is where the form posts: the edited company or the collection.
func (m companiesModel) Action() string {
	if m.EditingID != "" {
		return companiesPath + "/" + m.EditingID
	}
	return companiesPath
}

func parseCompanyForm(r *http.Request) companyForm {
	return companyForm{
		Name:    strings.TrimSpace(r.PostFormValue("name")),
		TaxID:   strings.TrimSpace(r.PostFormValue("tax_id")),
		Country: strings.ToUpper(strings.TrimSpace(r.PostFormValue("country"))),
	}
}

func (h *Handler) validateCompany(form companyForm) map[string]string {
	errs := make(map[string]string)
	var fieldErrs validator.ValidationErrors
	if err := h.validator.Struct(form); errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			errs[fe.Field()] = companyFieldMessages[fe.Field()]
		}
	}
	return errs
}

func (h *Handler) handleCompanies(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	model := companiesModel{Form: companyForm{Country: "CL"}}
	companies, ok := h.loadCompanies(w, r, sess, token, &model)
	if !ok {
		return
	}
	if id := strings.TrimSpace(r.URL.Query().Get("edit")); id != "" {
		for _, c := range companies {
			if c.ID == id {
				model.EditingID = c.ID
				model.Form = companyForm{Name: c.Name, TaxID: c.TaxID, Country: c.Country}
				break
			}
		}
	}
	h.renderCompanies(w, r, sess, http.StatusOK, model)
}

func (h *Handler) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	h.saveCompany(w, r, "")
}

func (h *Handler) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	h.saveCompany(w, r, chi.URLParam(r, "id"))
}

// saveCompany creates a company, or updates company id when set. Invalid
// input re-renders the form with field messages.
func (h *Handler) saveCompany(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	form := parseCompanyForm(r)
	if errs := h.validateCompany(form); len(errs) > 0 {
		model := companiesModel{Form: form, EditingID: id, Errors: errs}
		if _, ok := h.loadCompanies(w, r, sess, token, &model); !ok {
			return
		}
		h.renderCompanies(w, r, sess, http.StatusBadRequest, model)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	cred := auth.ParseCredential(token)
	var (
		saved compliance.Company
		err   error
		verb  = "added"
	)
	if id == "" {
		saved, err = h.source.CreateCompany(ctx, cred, form.input())
	} else {
		saved, err = h.source.UpdateCompany(ctx, cred, id, form.input())
		verb = "updated"
	}
	if err != nil {
		h.writeFailed(w, r, sess, "save company", "That company no longer exists.", companiesPath, err)
		return
	}
	if id != "" {
		// Listings embed the company name.
		h.afterWrite(ctx, sess)
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: fmt.Sprintf("Company %s %s.", saved.Name, verb)})
	http.Redirect(w, r, companiesPath, http.StatusSeeOther)
}

func (h *Handler) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := h.source.DeleteCompany(ctx, auth.ParseCredential(token), chi.URLParam(r, "id")); err != nil {
		h.writeFailed(w, r, sess, "delete company", "That company no longer exists.", companiesPath, err)
		return
	}
	h.afterWrite(ctx, sess)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Company and its requests deleted."})
	http.Redirect(w, r, companiesPath, http.StatusSeeOther)
}

// loadCompanies fills model with the company list. It returns false once the
// browser has been sent to sign in.
func (h *Handler) loadCompanies(w http.ResponseWriter, r *http.Request, sess *shared.Session, token string, model *companiesModel) ([]compliance.Company, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	companies, err := h.source.Companies(ctx, auth.ParseCredential(token))
	switch {
	case errors.Is(err, compliance.ErrAuthExpired):
		h.expire(w, r, sess, expiredMessage)
		return nil, false
	case err != nil:
		h.logError("list companies", err)
		model.LoadError = "Companies could not be loaded. Please try again."
	}
	model.Companies = companies
	return companies, true
}

func (h *Handler) renderCompanies(w http.ResponseWriter, r *http.Request, sess *shared.Session, status int, model companiesModel) {
	data := view.TemplateData{
		Title:       "Companies",
		CSRFToken:   h.csrfToken(r.Context(), sess),
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        model,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/companies.html", data); err != nil {
		h.logError("render companies", err)
		if status == http.StatusOK {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
