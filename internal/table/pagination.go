package table

// Pagination describes which page of an externally held collection is
// loaded. It never slices records itself: the caller fetches one page
// per request and Total is the size of the whole remote collection, so
// search and sort only ever see the loaded page.
type Pagination struct {
	Page  int
	Limit int
	Total int

	// OnPageChange is told about every GoTo with the clamped page.
	OnPageChange func(page int)
}

// PageInfo is the pagination chrome produced for one render.
type PageInfo struct {
	Page      int
	Limit     int
	Total     int
	PageCount int
	From      int
	To        int
	CanPrev   bool
	CanNext   bool
}

func (p Pagination) limit() int {
	if p.Limit < 1 {
		return 1
	}
	return p.Limit
}

func (p Pagination) total() int {
	if p.Total < 0 {
		return 0
	}
	return p.Total
}

// PageCount is ceil(Total / Limit).
func (p Pagination) PageCount() int {
	l := p.limit()
	return (p.total() + l - 1) / l
}

// Clamp bounds page into [1, max(1, PageCount)].
func (p Pagination) Clamp(page int) int {
	last := max(1, p.PageCount())
	return min(max(page, 1), last)
}

// Current is Page after clamping.
func (p Pagination) Current() int {
	return p.Clamp(p.Page)
}

// Range returns the 1-based positions of the first and last loaded
// record, or 0, 0 when the collection is empty.
func (p Pagination) Range() (from, to int) {
	total := p.total()
	if total == 0 {
		return 0, 0
	}
	page, l := p.Current(), p.limit()
	return (page-1)*l + 1, min(page*l, total)
}

// CanGoPrevious reports whether a page precedes the current one.
func (p Pagination) CanGoPrevious() bool {
	return p.Current() > 1
}

// CanGoNext reports whether a page follows the current one.
func (p Pagination) CanGoNext() bool {
	return p.Current() < p.PageCount()
}

// GoTo clamps target, notifies OnPageChange and returns the page that was
// requested.
func (p Pagination) GoTo(target int) int {
	page := p.Clamp(target)
	if p.OnPageChange != nil {
		p.OnPageChange(page)
	}
	return page
}

// Info snapshots the derived pagination values.
func (p Pagination) Info() PageInfo {
	from, to := p.Range()
	return PageInfo{
		Page:      p.Current(),
		Limit:     p.limit(),
		Total:     p.total(),
		PageCount: p.PageCount(),
		From:      from,
		To:        to,
		CanPrev:   p.CanGoPrevious(),
		CanNext:   p.CanGoNext(),
	}
}
