// Package authhttp serves the sign-in and sign-out pages.
package authhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/shared"
	"github.com/odyssey-erp/riskdesk/internal/view"
)

// Authenticator exchanges an email/password pair for an access credential.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Credential, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	authenticator  Authenticator
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	onSessionEnd   func(sessionID string)
}

// NewHandler constructs a Handler instance. onSessionEnd, when set, is called
// with the ID of every session that signs out or is rotated at sign-in.
func NewHandler(logger *slog.Logger, authenticator Authenticator, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, onSessionEnd func(sessionID string)) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		authenticator:  authenticator,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		onSessionEnd:   onSessionEnd,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,max=128"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

var fieldMessages = map[string]string{
	"Email":    "Enter a valid email address.",
	"Password": "Enter your password.",
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldMessages[fieldErr.Field()]
			}
		}
	}
	if len(errs) > 0 {
		h.render(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs})
		return
	}

	cred, err := h.authenticator.Login(r.Context(), form.Email, form.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		errs["general"] = "Invalid email or password."
		h.render(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs})
		return
	case err != nil:
		h.logger.Error("login", slog.Any("error", err))
		errs["general"] = "Sign-in is unavailable right now. Please try again."
		h.render(w, r, http.StatusBadGateway, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs})
		return
	}

	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	subject := cred.Subject
	if subject == "" {
		subject = strings.ToLower(form.Email)
	}
	if prev := h.sessionManager.Rotate(sess); h.onSessionEnd != nil {
		h.onSessionEnd(prev)
	}
	h.csrfManager.Rotate(sess)
	sess.Set(shared.SessionTokenKey, cred.Token)
	sess.SetUser(subject)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back."})
	http.Redirect(w, r, "/requests", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if h.onSessionEnd != nil {
			h.onSessionEnd(sess.ID)
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Warn("csrf token", slog.Any("error", err))
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		if status == http.StatusOK {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
