package authhttp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	authhttp "github.com/odyssey-erp/riskdesk/internal/auth/http"
	"github.com/odyssey-erp/riskdesk/internal/shared"
	"github.com/odyssey-erp/riskdesk/internal/view"
	_ "github.com/odyssey-erp/riskdesk/testing"
)

type stubAuthenticator struct {
	cred  auth.Credential
	err   error
	calls int
}

func (s *stubAuthenticator) Login(ctx context.Context, email, password string) (auth.Credential, error) {
	s.calls++
	if s.err != nil {
		return auth.Credential{}, s.err
	}
	return s.cred, nil
}

func newAuthHandler(t *testing.T, authn authhttp.Authenticator, onLogout func(string)) (*authhttp.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	return authhttp.NewHandler(nil, authn, templates, sessionManager, csrfManager, onLogout), sessionManager
}

func postLogin(t *testing.T, handler *authhttp.Handler, sessionManager *shared.SessionManager, email, password string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	postData := url.Values{}
	postData.Set("email", email)
	postData.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	return res, sess
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubAuthenticator{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
	token := sess.Get(shared.CSRFSessionKey)
	if token == "" {
		t.Fatalf("csrf token not set")
	}
	if !strings.Contains(res.Body.String(), token) {
		t.Fatalf("expected csrf token in form")
	}
}

func TestLoginStoresTokenAndRedirects(t *testing.T) {
	authn := &stubAuthenticator{cred: auth.Credential{Token: "jwt-token", Subject: "analyst@example.com"}}
	handler, sessionManager := newAuthHandler(t, authn, nil)

	res, sess := postLogin(t, handler, sessionManager, "analyst@example.com", "secret-pass")
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/requests" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if got := sess.Get(shared.SessionTokenKey); got != "jwt-token" {
		t.Fatalf("expected token in session, got %q", got)
	}
	if sess.User() != "analyst@example.com" {
		t.Fatalf("expected user in session, got %q", sess.User())
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubAuthenticator{err: auth.ErrInvalidCredentials}, nil)

	res, sess := postLogin(t, handler, sessionManager, "user@test.local", "wrongpass")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid email or password.") {
		t.Fatalf("expected error message in response")
	}
	if sess.Get(shared.SessionTokenKey) != "" {
		t.Fatalf("token must not be stored on failure")
	}
}

func TestLoginValidationSkipsAuthenticator(t *testing.T) {
	authn := &stubAuthenticator{}
	handler, sessionManager := newAuthHandler(t, authn, nil)

	res, _ := postLogin(t, handler, sessionManager, "not-an-email", "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if authn.calls != 0 {
		t.Fatalf("authenticator called on invalid form")
	}
	body := res.Body.String()
	if !strings.Contains(body, "Enter a valid email address.") || !strings.Contains(body, "Enter your password.") {
		t.Fatalf("expected field errors in response")
	}
}

func TestLoginUpstreamFailure(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubAuthenticator{err: errors.New("connection refused")}, nil)

	res, _ := postLogin(t, handler, sessionManager, "user@test.local", "password")
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Sign-in is unavailable") {
		t.Fatalf("expected unavailable message")
	}
}

func TestLogoutNotifiesListener(t *testing.T) {
	var forgotten string
	handler, sessionManager := newAuthHandler(t, &stubAuthenticator{}, func(id string) { forgotten = id })

	seed := httptest.NewRequest(http.MethodGet, "/requests", nil)
	stored, err := sessionManager.Load(context.Background(), seed)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	stored.Set(shared.SessionTokenKey, "jwt-token")
	seeded := httptest.NewRecorder()
	if err := sessionManager.Commit(context.Background(), seeded, seed, stored); err != nil {
		t.Fatalf("commit: %v", err)
	}
	sessionCookie := seeded.Result().Cookies()[0]

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.AddCookie(sessionCookie)
	sess, err := sessionManager.Load(context.Background(), r)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Get(shared.SessionTokenKey) != "jwt-token" {
		t.Fatalf("expected stored session to load")
	}
	ctx := shared.ContextWithSession(r.Context(), sess)
	r = r.WithContext(ctx)

	router := chiRouter(handler)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, r)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if forgotten != sess.ID {
		t.Fatalf("expected listener to receive %q, got %q", sess.ID, forgotten)
	}

	committed := httptest.NewRecorder()
	if err := sessionManager.Commit(ctx, committed, r, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cookies := committed.Result().Cookies()
	if len(cookies) == 0 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected session cookie to be cleared")
	}

	again := httptest.NewRequest(http.MethodGet, "/requests", nil)
	again.AddCookie(sessionCookie)
	reloaded, err := sessionManager.Load(context.Background(), again)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if reloaded.Get(shared.SessionTokenKey) != "" {
		t.Fatalf("expected stored session to be deleted")
	}
}

func TestLoginRotatesSessionID(t *testing.T) {
	var ended string
	authn := &stubAuthenticator{cred: auth.Credential{Token: "jwt-token"}}
	handler, sessionManager := newAuthHandler(t, authn, func(id string) { ended = id })

	postData := url.Values{"email": {"analyst@example.com"}, "password": {"secret-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.Set(shared.CSRFSessionKey, "pre-login-token")
	before := sess.ID
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	handler.HandleLoginForTest(httptest.NewRecorder(), req)

	if sess.ID == before {
		t.Fatalf("expected a new session id after sign-in")
	}
	if ended != before {
		t.Fatalf("expected listener to receive %q, got %q", before, ended)
	}
	if sess.Get(shared.CSRFSessionKey) != "" {
		t.Fatalf("expected csrf token to be discarded")
	}
	if sess.User() != "analyst@example.com" {
		t.Fatalf("expected email fallback for subject, got %q", sess.User())
	}
}
