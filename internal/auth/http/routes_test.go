package authhttp_test

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authhttp "github.com/odyssey-erp/riskdesk/internal/auth/http"
)

func chiRouter(h *authhttp.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}
