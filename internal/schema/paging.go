package schema

// ListParams carries optional pagination for list queries. Page numbering
// starts at 1; zero values mean "not set". Explicit Limit/Offset win over the
// page pair when either is supplied.
type ListParams struct {
	Page     int
	PageSize int
	Limit    *int
	Offset   *int
}

// PageQuery is the wire-level pagination pair sent to the backend. A nil field
// is omitted from the request.
type PageQuery struct {
	Limit  *int
	Offset *int
}

// IsZero reports whether no pagination parameters are set.
func (q PageQuery) IsZero() bool {
	return q.Limit == nil && q.Offset == nil
}

// NormalizePage converts list parameters into the backend limit/offset pair.
// An explicit limit/offset pair is used verbatim when either side is present;
// otherwise page/pageSize translate as limit=pageSize,
// offset=(max(page,1)-1)*pageSize. Without a page size no pagination is sent.
func NormalizePage(p ListParams) PageQuery {
	if p.Limit != nil || p.Offset != nil {
		return PageQuery{Limit: p.Limit, Offset: p.Offset}
	}
	if p.PageSize <= 0 {
		return PageQuery{}
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.PageSize
	offset := (page - 1) * p.PageSize
	return PageQuery{Limit: &limit, Offset: &offset}
}
