package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

func TestRespondErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"not found", fmt.Errorf("store: update status: %w", compliance.ErrNotFound), http.StatusNotFound, ""},
		{"auth expired", compliance.ErrAuthExpired, http.StatusUnauthorized, "session expired"},
		{"upstream", &compliance.RequestError{Op: "update status", Status: 422, Detail: "bad status"}, http.StatusBadGateway, "bad status"},
		{"validation", ErrValidation, http.StatusBadRequest, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, ProblemContentType, rec.Header().Get("Content-Type"))
			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
			if tc.detail != "" {
				assert.Equal(t, tc.detail, body.Detail)
			}
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password authentication failed"))
	assert.NotContains(t, rec.Body.String(), "password")
}
