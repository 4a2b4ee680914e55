// Package query drives the paginated, filterable request listing: it owns
// the filter state, serialises it for the data source and applies fetch
// results in issue order.
package query

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// Field names a mutable part of the filter.
type Field string

const (
	FieldFreeText Field = "freeText"
	FieldStatus   Field = "status"
	FieldRiskMin  Field = "riskMin"
	FieldRiskMax  Field = "riskMax"
	FieldPage     Field = "page"
	FieldPageSize Field = "pageSize"
)

// Fields lists every settable field.
var Fields = []Field{FieldFreeText, FieldStatus, FieldRiskMin, FieldRiskMax, FieldPage, FieldPageSize}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxFreeText     = 200
)

// FilterState is the user's current listing filter. Nil risk bounds and an
// empty status mean "unset".
type FilterState struct {
	FreeText string            `json:"free_text"`
	Status   compliance.Status `json:"status,omitempty"`
	RiskMin  *int              `json:"risk_min,omitempty"`
	RiskMax  *int              `json:"risk_max,omitempty"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// DefaultFilter is the unfiltered first page.
func DefaultFilter() FilterState {
	return FilterState{Page: 1, PageSize: DefaultPageSize}
}

// Value renders field back into its form representation.
func (f FilterState) Value(field Field) string {
	switch field {
	case FieldFreeText:
		return f.FreeText
	case FieldStatus:
		return string(f.Status)
	case FieldRiskMin:
		return optionalInt(f.RiskMin)
	case FieldRiskMax:
		return optionalInt(f.RiskMax)
	case FieldPage:
		return strconv.Itoa(f.Page)
	case FieldPageSize:
		return strconv.Itoa(f.PageSize)
	}
	return ""
}

// With returns a copy of f with field set to the parsed value. Any field
// other than page resets the page to 1. Malformed input yields a
// *ValidationError and the zero FilterState.
func (f FilterState) With(field Field, value string) (FilterState, error) {
	next, err := f.set(field, value)
	if err != nil {
		return FilterState{}, err
	}
	if err := next.checkBounds(field); err != nil {
		return FilterState{}, err
	}
	return next, nil
}

// WithAll applies every change at once, in Fields order. Either all of them
// apply or none do: every malformed value is reported in a ValidationErrors.
func (f FilterState) WithAll(changes map[Field]string) (FilterState, error) {
	next := f
	var errs ValidationErrors
	for field := range changes {
		if !knownField(field) {
			errs = append(errs, &ValidationError{Field: field, Message: "unknown filter field"})
		}
	}
	for _, field := range Fields {
		value, ok := changes[field]
		if !ok {
			continue
		}
		out, err := next.set(field, value)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				errs = append(errs, verr)
				continue
			}
			return FilterState{}, err
		}
		next = out
	}
	if len(errs) > 0 {
		return FilterState{}, errs
	}
	boundField := FieldRiskMin
	if _, ok := changes[FieldRiskMin]; !ok {
		boundField = FieldRiskMax
	}
	if err := next.checkBounds(boundField); err != nil {
		return FilterState{}, err
	}
	return next, nil
}

func (f FilterState) set(field Field, value string) (FilterState, error) {
	value = strings.TrimSpace(value)
	next := f
	switch field {
	case FieldFreeText:
		if err := check(field, value, fmt.Sprintf("max=%d", maxFreeText)); err != nil {
			return FilterState{}, err
		}
		if err := checkPlainText(field, value); err != nil {
			return FilterState{}, err
		}
		next.FreeText = value
	case FieldStatus:
		if err := check(field, value, "omitempty,oneof=pending in_review approved rejected"); err != nil {
			return FilterState{}, err
		}
		next.Status = compliance.Status(value)
	case FieldRiskMin, FieldRiskMax:
		bound, err := parseBound(field, value)
		if err != nil {
			return FilterState{}, err
		}
		if field == FieldRiskMin {
			next.RiskMin = bound
		} else {
			next.RiskMax = bound
		}
	case FieldPage:
		n, err := parsePositive(field, value, "gte=1")
		if err != nil {
			return FilterState{}, err
		}
		next.Page = n
	case FieldPageSize:
		n, err := parsePositive(field, value, fmt.Sprintf("gte=1,lte=%d", MaxPageSize))
		if err != nil {
			return FilterState{}, err
		}
		next.PageSize = n
	default:
		return FilterState{}, &ValidationError{Field: field, Message: "unknown filter field"}
	}
	if field != FieldPage {
		next.Page = 1
	}
	return next, nil
}

// checkBounds rejects a minimum risk above the maximum. The error is
// reported against field.
func (f FilterState) checkBounds(field Field) error {
	if f.RiskMin == nil || f.RiskMax == nil || *f.RiskMin <= *f.RiskMax {
		return nil
	}
	if field == FieldRiskMax {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must not be below the minimum (%d < %d)", *f.RiskMax, *f.RiskMin)}
	}
	return &ValidationError{Field: FieldRiskMin, Message: fmt.Sprintf("must not exceed the maximum (%d > %d)", *f.RiskMin, *f.RiskMax)}
}

func knownField(field Field) bool {
	for _, f := range Fields {
		if f == field {
			return true
		}
	}
	return false
}

var (
	validate     = validator.New()
	textPolicy   *bluemonday.Policy
	textPolicyMu sync.Once
)

func check(field Field, value, rule string) error {
	if err := validate.Var(value, rule); err != nil {
		return newValidationError(field, err)
	}
	return nil
}

func parseBound(field Field, value string) (*int, error) {
	if value == "" {
		return nil, nil
	}
	if err := check(field, value, "number"); err != nil {
		return nil, &ValidationError{Field: field, Message: "must be a whole number"}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: "must be a whole number"}
	}
	if err := validate.Var(n, "gte=0,lte=100"); err != nil {
		return nil, &ValidationError{Field: field, Message: "must be between 0 and 100"}
	}
	return &n, nil
}

func parsePositive(field Field, value, rule string) (int, error) {
	if err := check(field, value, "required,number"); err != nil {
		return 0, &ValidationError{Field: field, Message: "must be a positive whole number"}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: "must be a positive whole number"}
	}
	if err := validate.Var(n, rule); err != nil {
		return 0, newValidationError(field, err)
	}
	return n, nil
}

// checkPlainText rejects free text the strict policy would rewrite. Entity
// escaping alone is not a change.
func checkPlainText(field Field, value string) error {
	textPolicyMu.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	if html.UnescapeString(textPolicy.Sanitize(value)) != value {
		return &ValidationError{Field: field, Message: "must not contain markup"}
	}
	return nil
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Snapshot is the immutable filter a fetch cycle was issued with.
type Snapshot struct {
	Seq    uint64
	Filter FilterState
}

// Query serialises the snapshot's non-empty fields. Unset fields are omitted
// rather than sent empty.
func (s Snapshot) Query() url.Values {
	return s.Filter.Query()
}

// Query serialises the non-empty fields of f.
func (f FilterState) Query() url.Values {
	q := url.Values{}
	if f.FreeText != "" {
		q.Set("search", f.FreeText)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.RiskMin != nil {
		q.Set("risk_min", strconv.Itoa(*f.RiskMin))
	}
	if f.RiskMax != nil {
		q.Set("risk_max", strconv.Itoa(*f.RiskMax))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

// TotalPages is ceil(total/pageSize); no results means zero pages.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
