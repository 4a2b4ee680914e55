package dashboardhttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/riskdesk/internal/shared"
)

// MountRoutes registers dashboard pages and JSON endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
	})
	r.Route(dashboardPath, func(rr chi.Router) {
		rr.Get("/", h.handleRequests)
		rr.Post("/filter", h.handleFilter)
		rr.Post("/page/{dir}", h.handlePage)
		rr.Post("/refresh", h.handleRefresh)
		rr.Post("/new", h.handleCreateRequest)
		rr.Post("/{id}/status", h.handleStatus)
		rr.Post("/{id}/delete", h.handleDeleteRequest)
		rr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export.csv", h.handleCSV)
			gr.Get("/export.pdf", h.handlePDF)
		})
	})
	r.Route(companiesPath, func(rr chi.Router) {
		rr.Get("/", h.handleCompanies)
		rr.Post("/", h.handleCreateCompany)
		rr.Post("/{id}", h.handleUpdateCompany)
		rr.Post("/{id}/delete", h.handleDeleteCompany)
	})
	r.Route("/api", func(rr chi.Router) {
		rr.Get("/requests", h.handleAPIRequests)
		rr.Get("/charts", h.handleAPICharts)
		rr.Get("/overview", h.handleAPIOverview)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if user := strings.TrimSpace(sess.User()); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
