package pagination

import "fmt"

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 100
)

// Params holds page/limit inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Bounds configures the default and maximum page size for a query surface.
type Bounds struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultBounds returns the package defaults.
func DefaultBounds() Bounds {
	return Bounds{DefaultLimit: DefaultLimit, MaxLimit: MaxLimit}
}

// Normalize fills the default page and limit and rejects out-of-range input.
// A zero page or limit means "not provided".
func Normalize(p Params, b Bounds) (Params, error) {
	if b.DefaultLimit <= 0 {
		b.DefaultLimit = DefaultLimit
	}
	if b.MaxLimit <= 0 {
		b.MaxLimit = MaxLimit
	}
	if p.Page < 0 {
		return Params{}, fmt.Errorf("page must be at least 1")
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit < 0 {
		return Params{}, fmt.Errorf("limit must be at least 1")
	}
	if p.Limit == 0 {
		p.Limit = b.DefaultLimit
	}
	if p.Limit > b.MaxLimit {
		return Params{}, fmt.Errorf("limit must be at most %d", b.MaxLimit)
	}
	return p, nil
}

// Offset returns the number of rows to skip for the page.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta describes the page returned to callers.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewMeta computes page counts for a normalized Params and a total row count.
func NewMeta(p Params, total int64) Meta {
	pages := 0
	if p.Limit > 0 && total > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
