package dataset

// DefaultPageSize is the number of messages per page.
const DefaultPageSize = 20

// Pager tracks the current page over a result set of Total items. Page always
// stays within [1, max(1, TotalPages())].
type Pager struct {
	Size  int
	Page  int
	Total int
}

// NewPager returns a pager on page 1. A non-positive size uses
// DefaultPageSize.
func NewPager(size int) Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Pager{Size: size, Page: 1}
}

// TotalPages is ceil(Total/Size); zero for an empty set.
func (p Pager) TotalPages() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

func (p Pager) lastPage() int {
	return max(1, p.TotalPages())
}

// Reset sets the total and returns to page 1.
func (p *Pager) Reset(total int) {
	p.Total = max(0, total)
	p.Page = 1
}

// Goto moves to page n, clamped to the valid range.
func (p *Pager) Goto(n int) {
	p.Page = min(max(1, n), p.lastPage())
}

// Next advances one page. It is a no-op on the last page and reports whether
// the page changed.
func (p *Pager) Next() bool {
	if p.Page >= p.lastPage() {
		return false
	}
	p.Page++
	return true
}

// Prev goes back one page. It is a no-op on page 1.
func (p *Pager) Prev() bool {
	if p.Page <= 1 {
		return false
	}
	p.Page--
	return true
}

// Bounds returns the slice indices [lo, hi) of the current page.
func (p Pager) Bounds() (lo, hi int) {
	lo = min((p.Page-1)*p.Size, p.Total)
	hi = min(p.Page*p.Size, p.Total)
	return lo, hi
}

// Range returns the 1-based positions shown on the current page, as in
// "Showing from to to of Total". Both are zero for an empty set.
func (p Pager) Range() (from, to int) {
	lo, hi := p.Bounds()
	if hi == 0 {
		return 0, 0
	}
	return lo + 1, hi
}
