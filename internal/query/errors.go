package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("query: controller closed")

// ValidationError reports malformed filter input. It is raised before any
// state changes.
type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("query: invalid %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every malformed field of a multi-field change.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, verr := range e {
		msgs = append(msgs, verr.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes each field error to errors.As.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, 0, len(e))
	for _, verr := range e {
		out = append(out, verr)
	}
	return out
}

func newValidationError(field Field, err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{Field: field, Message: describe(fieldErrs[0])}
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "number":
		return "must be a whole number"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag()
}
