package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

func TestQueryOmitsEmptyFields(t *testing.T) {
	f := FilterState{Status: compliance.StatusApproved, Page: 2, PageSize: 10}
	q := f.Query()
	assert.Equal(t, "page=2&page_size=10&status=approved", q.Encode())
	assert.Len(t, q, 3)
}

func TestQueryIncludesBounds(t *testing.T) {
	f := DefaultFilter()
	f, err := f.With(FieldRiskMin, "40")
	require.NoError(t, err)
	f, err = f.With(FieldFreeText, "  Acme ")
	require.NoError(t, err)
	q := f.Query()
	assert.Equal(t, "40", q.Get("risk_min"))
	assert.Equal(t, "Acme", q.Get("search"))
	assert.False(t, q.Has("risk_max"))
	assert.False(t, q.Has("status"))
}

func TestWithResetsPageUnlessPage(t *testing.T) {
	f := DefaultFilter()
	f, err := f.With(FieldPage, "3")
	require.NoError(t, err)
	assert.Equal(t, 3, f.Page)

	f, err = f.With(FieldRiskMin, "50")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Page)
	require.NotNil(t, f.RiskMin)
	assert.Equal(t, 50, *f.RiskMin)

	f, err = f.With(FieldPage, "4")
	require.NoError(t, err)
	f, err = f.With(FieldRiskMin, "")
	require.NoError(t, err)
	assert.Nil(t, f.RiskMin)
	assert.Equal(t, 1, f.Page)
}

func TestWithRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		field Field
		value string
	}{
		{FieldRiskMin, "abc"},
		{FieldRiskMax, "-5"},
		{FieldRiskMax, "101"},
		{FieldStatus, "archived"},
		{FieldPage, "0"},
		{FieldPage, ""},
		{FieldPageSize, "1000"},
		{Field("sort"), "asc"},
		{FieldFreeText, "Smith <Jones"},
		{FieldFreeText, "<b>bold</b>"},
	}
	for _, tc := range cases {
		_, err := DefaultFilter().With(tc.field, tc.value)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "%s=%q", tc.field, tc.value)
		assert.Equal(t, tc.field, verr.Field)
		assert.NotEmpty(t, verr.Message)
	}
}

func TestFreeTextKeepsPlainPunctuation(t *testing.T) {
	for _, term := range []string{"Smith & Co", "O'Brien", `"Acme" Ltd.`} {
		f, err := DefaultFilter().With(FieldFreeText, term)
		require.NoError(t, err, term)
		assert.Equal(t, term, f.FreeText)
		assert.Equal(t, term, f.Query().Get("search"))
	}
}

func TestFreeTextMarkupLeavesFilterUntouched(t *testing.T) {
	f, err := DefaultFilter().With(FieldFreeText, "Smith")
	require.NoError(t, err)
	_, err = f.With(FieldFreeText, "Smith <Jones")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must not contain markup", verr.Message)
	assert.Equal(t, "Smith", f.FreeText)
}

func TestWithRejectsInvertedRiskBounds(t *testing.T) {
	f, err := DefaultFilter().With(FieldRiskMax, "50")
	require.NoError(t, err)

	_, err = f.With(FieldRiskMin, "60")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldRiskMin, verr.Field)
	assert.Contains(t, verr.Message, "60")
	assert.Contains(t, verr.Message, "50")

	f, err = f.With(FieldRiskMin, "50")
	require.NoError(t, err)
	_, err = f.With(FieldRiskMax, "40")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldRiskMax, verr.Field)
}

func TestWithAllAppliesTogether(t *testing.T) {
	f, err := DefaultFilter().With(FieldPage, "4")
	require.NoError(t, err)
	f, err = f.With(FieldRiskMax, "50")
	require.NoError(t, err)

	// Raising both bounds passes even though min alone would exceed the old max.
	next, err := f.WithAll(map[Field]string{FieldRiskMin: "60", FieldRiskMax: "90", FieldStatus: "approved"})
	require.NoError(t, err)
	require.NotNil(t, next.RiskMin)
	assert.Equal(t, 60, *next.RiskMin)
	assert.Equal(t, 90, *next.RiskMax)
	assert.Equal(t, compliance.StatusApproved, next.Status)
	assert.Equal(t, 1, next.Page)
}

func TestWithAllReportsEveryField(t *testing.T) {
	_, err := DefaultFilter().WithAll(map[Field]string{
		FieldFreeText: "acme",
		FieldRiskMin:  "abc",
		FieldPageSize: "500",
	})
	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 2)
	assert.Equal(t, FieldRiskMin, errs[0].Field)
	assert.Equal(t, FieldPageSize, errs[1].Field)

	var first *ValidationError
	require.ErrorAs(t, err, &first)
	assert.Equal(t, FieldRiskMin, first.Field)

	_, err = DefaultFilter().WithAll(map[Field]string{FieldRiskMin: "70", FieldRiskMax: "20"})
	require.ErrorAs(t, err, &first)
	assert.Equal(t, FieldRiskMin, first.Field)
}

func TestValueRoundTrips(t *testing.T) {
	f, err := DefaultFilter().With(FieldRiskMax, "69")
	require.NoError(t, err)
	assert.Equal(t, "69", f.Value(FieldRiskMax))
	assert.Equal(t, "", f.Value(FieldRiskMin))
	assert.Equal(t, "1", f.Value(FieldPage))
	assert.Equal(t, "10", f.Value(FieldPageSize))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}
