package relay

import (
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

// Paginator maps a page response to the items it carries and to the query
// parameters of the following page. Paginators are stateless strategy values:
// the current position is read back from the request that produced the
// response, and all iteration state lives in PaginatedResponse. This keeps
// every strategy testable against a single canned response.
//
// NextPage returning nil means the sequence is exhausted. Ambiguous paging
// metadata (a malformed total, a non-scalar cursor) is treated as "no more
// pages" rather than an error, so a misbehaving API ends iteration instead of
// breaking it.
type Paginator interface {
	// Items extracts the current page's items.
	Items(resp *Response) []gjson.Result
	// NextPage computes the next page's query parameters, or nil when the
	// response is the last page.
	NextPage(req *Request, resp *Response) url.Values
	// HasMorePages reports whether a page follows the given response.
	HasMorePages(req *Request, resp *Response) bool
}

// extractItems reads the item array at dataKey, or the body root when
// dataKey is empty.
func extractItems(resp *Response, dataKey string) []gjson.Result {
	var node gjson.Result
	if dataKey == "" {
		node = gjson.ParseBytes(resp.Body())
	} else {
		node = resp.Get(dataKey)
	}
	if !node.IsArray() {
		return nil
	}
	return node.Array()
}

// OffsetPaginator pages through APIs that address pages by offset and limit.
// The current offset is read from the request's own query, so feeding
// NextPage's output back as query values advances deterministically.
type OffsetPaginator struct {
	// OffsetParam is the query parameter naming the offset. Default "offset".
	OffsetParam string
	// LimitParam is the query parameter naming the page size. Default "limit".
	LimitParam string
	// DataKey is the dotted path of the item array. Default "data".
	DataKey string
	// TotalKey is the dotted path of the total item count. Optional: when
	// empty, a full page is assumed to mean more pages exist.
	TotalKey string
	// Limit is the page size requested for following pages. Default 25.
	Limit int
}

func (p OffsetPaginator) offsetParam() string { return defaultString(p.OffsetParam, "offset") }
func (p OffsetPaginator) limitParam() string  { return defaultString(p.LimitParam, "limit") }
func (p OffsetPaginator) dataKey() string     { return defaultString(p.DataKey, "data") }
func (p OffsetPaginator) limit() int {
	if p.Limit <= 0 {
		return 25
	}
	return p.Limit
}

// Items extracts the current page's items.
func (p OffsetPaginator) Items(resp *Response) []gjson.Result {
	return extractItems(resp, p.dataKey())
}

// HasMorePages reports whether a page follows. An empty page is always
// terminal. With a total count available the offset is compared against it;
// without one, a full page is taken to mean more data remains.
func (p OffsetPaginator) HasMorePages(req *Request, resp *Response) bool {
	items := p.Items(resp)
	if len(items) == 0 {
		return false
	}
	offset := req.QueryInt(p.offsetParam(), 0)
	if p.TotalKey != "" {
		total := resp.Get(p.TotalKey)
		if total.Type != gjson.Number {
			return false
		}
		return int64(offset+len(items)) < total.Int()
	}
	return len(items) >= p.limit()
}

// NextPage advances the offset by the number of items on the current page.
func (p OffsetPaginator) NextPage(req *Request, resp *Response) url.Values {
	if !p.HasMorePages(req, resp) {
		return nil
	}
	offset := req.QueryInt(p.offsetParam(), 0)
	next := offset + len(p.Items(resp))
	return url.Values{
		p.offsetParam(): {strconv.Itoa(next)},
		p.limitParam():  {strconv.Itoa(p.limit())},
	}
}

// CursorPaginator pages through APIs that hand out an opaque cursor for the
// next page. Only string and integer cursors are followed; null, booleans or
// structured values terminate iteration.
type CursorPaginator struct {
	// CursorParam is the query parameter carrying the cursor. Default "cursor".
	CursorParam string
	// PerPageParam is the query parameter naming the page size. Default "per_page".
	PerPageParam string
	// DataKey is the dotted path of the item array. Default "data".
	DataKey string
	// NextKey is the dotted path of the next-cursor value. Default "meta.next_cursor".
	NextKey string
	// PerPage is the page size requested for following pages. Default 25.
	PerPage int
}

func (p CursorPaginator) cursorParam() string  { return defaultString(p.CursorParam, "cursor") }
func (p CursorPaginator) perPageParam() string { return defaultString(p.PerPageParam, "per_page") }
func (p CursorPaginator) dataKey() string      { return defaultString(p.DataKey, "data") }
func (p CursorPaginator) nextKey() string      { return defaultString(p.NextKey, "meta.next_cursor") }
func (p CursorPaginator) perPage() int {
	if p.PerPage <= 0 {
		return 25
	}
	return p.PerPage
}

// Items extracts the current page's items.
func (p CursorPaginator) Items(resp *Response) []gjson.Result {
	return extractItems(resp, p.dataKey())
}

// nextCursor returns the next-cursor value when it is a usable scalar.
func (p CursorPaginator) nextCursor(resp *Response) (string, bool) {
	v := resp.Get(p.nextKey())
	switch v.Type {
	case gjson.String:
		if v.Str == "" {
			return "", false
		}
		return v.Str, true
	case gjson.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// HasMorePages reports whether the response carries a usable next cursor.
func (p CursorPaginator) HasMorePages(req *Request, resp *Response) bool {
	_, ok := p.nextCursor(resp)
	return ok
}

// NextPage returns the cursor parameters of the next page, or nil when the
// cursor is absent or not a scalar.
func (p CursorPaginator) NextPage(req *Request, resp *Response) url.Values {
	cursor, ok := p.nextCursor(resp)
	if !ok {
		return nil
	}
	return url.Values{
		p.cursorParam():  {cursor},
		p.perPageParam(): {strconv.Itoa(p.perPage())},
	}
}

// PagedPaginator pages through APIs that number pages and report the total
// page count in response metadata.
type PagedPaginator struct {
	// PageParam is the query parameter naming the page number. Default "page".
	PageParam string
	// PerPageParam is the query parameter naming the page size. Default "per_page".
	PerPageParam string
	// DataKey is the dotted path of the item array. Default "data".
	DataKey string
	// TotalPagesKey is the dotted path of the total page count.
	// Default "meta.last_page".
	TotalPagesKey string
	// PerPage is the page size requested for following pages. Default 25.
	PerPage int
}

func (p PagedPaginator) pageParam() string    { return defaultString(p.PageParam, "page") }
func (p PagedPaginator) perPageParam() string { return defaultString(p.PerPageParam, "per_page") }
func (p PagedPaginator) dataKey() string      { return defaultString(p.DataKey, "data") }
func (p PagedPaginator) totalPagesKey() string {
	return defaultString(p.TotalPagesKey, "meta.last_page")
}
func (p PagedPaginator) perPage() int {
	if p.PerPage <= 0 {
		return 25
	}
	return p.PerPage
}

// Items extracts the current page's items.
func (p PagedPaginator) Items(resp *Response) []gjson.Result {
	return extractItems(resp, p.dataKey())
}

// HasMorePages compares the current page number against the reported total.
func (p PagedPaginator) HasMorePages(req *Request, resp *Response) bool {
	total := resp.Get(p.totalPagesKey())
	if total.Type != gjson.Number {
		return false
	}
	page := req.QueryInt(p.pageParam(), 1)
	return int64(page) < total.Int()
}

// NextPage increments the page number.
func (p PagedPaginator) NextPage(req *Request, resp *Response) url.Values {
	if !p.HasMorePages(req, resp) {
		return nil
	}
	page := req.QueryInt(p.pageParam(), 1)
	return url.Values{
		p.pageParam():    {strconv.Itoa(page + 1)},
		p.perPageParam(): {strconv.Itoa(p.perPage())},
	}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
