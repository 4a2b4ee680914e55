package query

import "github.com/odyssey-erp/riskdesk/internal/compliance"

// View is an observable snapshot of a controller.
type View struct {
	State       State                      `json:"-"`
	StateName   string                     `json:"state"`
	Seq         uint64                     `json:"seq"`
	Items       []compliance.RequestRecord `json:"items"`
	Total       int                        `json:"total"`
	Page        int                        `json:"page"`
	PageSize    int                        `json:"page_size"`
	TotalPages  int                        `json:"total_pages"`
	HasPrevious bool                       `json:"has_previous"`
	HasNext     bool                       `json:"has_next"`
	// OutOfRange is set when a shrinking result left the page past the end.
	// The page is kept as is.
	OutOfRange bool        `json:"out_of_range"`
	Filter     FilterState `json:"filter"`
	Message    string      `json:"message,omitempty"`
	Err        error       `json:"-"`
	NeedsLogin bool        `json:"needs_login"`
	Stale      int         `json:"stale"`
}

// Empty reports a successful fetch with no matches.
func (v View) Empty() bool {
	return v.State == StateSucceeded && len(v.Items) == 0
}

// DisplayPage clamps the page into [1, max(1, TotalPages)] for labels.
func (v View) DisplayPage() int {
	last := v.TotalPages
	if last < 1 {
		last = 1
	}
	switch {
	case v.Page < 1:
		return 1
	case v.Page > last:
		return last
	}
	return v.Page
}

func (c *Controller) viewLocked() View {
	items := make([]compliance.RequestRecord, len(c.items))
	copy(items, c.items)
	totalPages := TotalPages(c.total, c.filter.PageSize)
	return View{
		State:       c.state,
		StateName:   c.state.String(),
		Seq:         c.seq,
		Items:       items,
		Total:       c.total,
		Page:        c.filter.Page,
		PageSize:    c.filter.PageSize,
		TotalPages:  totalPages,
		HasPrevious: c.filter.Page > 1,
		HasNext:     c.filter.Page < totalPages,
		OutOfRange:  totalPages > 0 && c.filter.Page > totalPages,
		Filter:      c.filter,
		Message:     c.message,
		Err:         c.err,
		NeedsLogin:  c.needsLogin,
		Stale:       c.stale,
	}
}
