package query

// Pagination is the page metadata returned alongside every list result. It is
// derived from the count pass, never from the fetched page.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	TotalPages  int  `json:"totalPages"`
	NextPage    *int `json:"nextPage,omitempty"`
	PrevPage    *int `json:"prevPage,omitempty"`
}

// paginate computes page metadata for the given 1-based page, page size, and
// pre-pagination total. NextPage is present iff another full or partial page
// exists past this one; PrevPage iff this page skipped any rows.
func paginate(page, size int, total int64) Pagination {
	p := Pagination{
		CurrentPage: page,
		PageSize:    size,
		TotalPages:  int((total + int64(size) - 1) / int64(size)),
	}
	if int64(page)*int64(size) < total {
		next := page + 1
		p.NextPage = &next
	}
	if (page-1)*size > 0 {
		prev := page - 1
		p.PrevPage = &prev
	}
	return p
}
