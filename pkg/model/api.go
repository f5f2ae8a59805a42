package model

// Listing defaults. The backend accepts limits between 1 and 100.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	PostsPerPage = 9
)

// ListOptions configures paginated post queries.
type ListOptions struct {
	Skip  int
	Limit int
}

// DefaultListOptions returns the backend's own defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Skip: 0, Limit: DefaultLimit}
}

// PageOptions converts a 1-based page number into skip/limit. The limit is
// clamped first so skip is always a whole number of pages.
func PageOptions(page, perPage int) ListOptions {
	if page < 1 {
		page = 1
	}
	opts := ListOptions{Limit: perPage}
	opts.Clamp()
	opts.Skip = (page - 1) * opts.Limit
	return opts
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Skip < 0 {
		o.Skip = 0
	}
}

// Page is one window of posts. Total is -1 when the backend does not report it.
type Page struct {
	Items   []Post `json:"items" yaml:"items"`
	Skip    int    `json:"skip" yaml:"skip"`
	Limit   int    `json:"limit" yaml:"limit"`
	HasMore bool   `json:"has_more" yaml:"has_more"`
	Total   int    `json:"total" yaml:"total"`
}

// PageNumber returns the 1-based page this window starts on.
func (p *Page) PageNumber() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Skip/p.Limit + 1
}

// PageCount returns the number of pages when Total is known, or -1.
func (p *Page) PageCount() int {
	if p.Total < 0 || p.Limit <= 0 {
		return -1
	}
	if p.Total == 0 {
		return 1
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
