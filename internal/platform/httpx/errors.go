package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var reqErr *compliance.RequestError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, compliance.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, compliance.ErrAuthExpired):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired")
	case errors.As(err, &reqErr):
		Problem(w, http.StatusBadGateway, "Upstream Error", reqErr.Detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
