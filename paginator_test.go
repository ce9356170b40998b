package relay

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonPage(body string) *Response {
	return newResponseFromParts(http.StatusOK, http.Header{}, []byte(body))
}

func TestOffsetPaginatorLastPageByTotal(t *testing.T) {
	p := OffsetPaginator{TotalKey: "total", Limit: 3}
	req := NewRequest(http.MethodGet, "/users")
	resp := jsonPage(`{"data":[1,2,3],"total":3}`)

	assert.Len(t, p.Items(resp), 3)
	assert.False(t, p.HasMorePages(req, resp))
	assert.Nil(t, p.NextPage(req, resp))
}

func TestOffsetPaginatorAdvancesByPageSize(t *testing.T) {
	p := OffsetPaginator{TotalKey: "total", Limit: 3}
	req := NewRequest(http.MethodGet, "/users")
	resp := jsonPage(`{"data":[1,2,3],"total":10}`)

	require.True(t, p.HasMorePages(req, resp))
	next := p.NextPage(req, resp)
	require.NotNil(t, next)
	assert.Equal(t, "3", next.Get("offset"))
	assert.Equal(t, "3", next.Get("limit"))
}

func TestOffsetPaginatorReadsOffsetFromRequest(t *testing.T) {
	p := OffsetPaginator{TotalKey: "total", Limit: 3}
	req := NewRequest(http.MethodGet, "/users?offset=6&limit=3")
	resp := jsonPage(`{"data":[7,8,9],"total":10}`)

	require.True(t, p.HasMorePages(req, resp))
	assert.Equal(t, "9", p.NextPage(req, resp).Get("offset"))

	// offset 6 + 3 items covers items 7..9; one more page covers the tenth.
	last := jsonPage(`{"data":[10],"total":10}`)
	lastReq := req.WithQueryValues(p.NextPage(req, resp))
	assert.False(t, p.HasMorePages(lastReq, last))
}

func TestOffsetPaginatorEmptyPageIsTerminal(t *testing.T) {
	p := OffsetPaginator{TotalKey: "total"}
	req := NewRequest(http.MethodGet, "/users")

	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":[],"total":100}`)))
	assert.False(t, p.HasMorePages(req, jsonPage(`{"total":100}`)))
	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":"oops","total":100}`)))
}

func TestOffsetPaginatorMalformedTotalIsTerminal(t *testing.T) {
	p := OffsetPaginator{TotalKey: "total", Limit: 2}
	req := NewRequest(http.MethodGet, "/users")

	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":[1,2],"total":"many"}`)))
	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":[1,2],"total":null}`)))
	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":[1,2]}`)))
}

func TestOffsetPaginatorFullPageHeuristicWithoutTotal(t *testing.T) {
	p := OffsetPaginator{Limit: 3}
	req := NewRequest(http.MethodGet, "/users")

	assert.True(t, p.HasMorePages(req, jsonPage(`{"data":[1,2,3]}`)))
	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":[1,2]}`)))
}

func TestOffsetPaginatorDefaults(t *testing.T) {
	p := OffsetPaginator{}
	req := NewRequest(http.MethodGet, "/users")

	items := make([]string, 25)
	body := `{"data":[`
	for i := range items {
		if i > 0 {
			body += ","
		}
		body += "1"
	}
	body += `]}`

	next := p.NextPage(req, jsonPage(body))
	require.NotNil(t, next)
	assert.Equal(t, "25", next.Get("offset"))
	assert.Equal(t, "25", next.Get("limit"))
}

func TestCursorPaginatorFollowsStringCursor(t *testing.T) {
	p := CursorPaginator{PerPage: 50}
	req := NewRequest(http.MethodGet, "/events")
	resp := jsonPage(`{"data":[1,2],"meta":{"next_cursor":"abc"}}`)

	require.True(t, p.HasMorePages(req, resp))
	next := p.NextPage(req, resp)
	require.NotNil(t, next)
	assert.Equal(t, "abc", next.Get("cursor"))
	assert.Equal(t, "50", next.Get("per_page"))
}

func TestCursorPaginatorFollowsIntegerCursor(t *testing.T) {
	p := CursorPaginator{}
	req := NewRequest(http.MethodGet, "/events")
	resp := jsonPage(`{"data":[1],"meta":{"next_cursor":42}}`)

	assert.Equal(t, "42", p.NextPage(req, resp).Get("cursor"))
}

func TestCursorPaginatorTerminalCursors(t *testing.T) {
	p := CursorPaginator{}
	req := NewRequest(http.MethodGet, "/events")

	cases := map[string]string{
		"null":    `{"data":[1],"meta":{"next_cursor":null}}`,
		"absent":  `{"data":[1],"meta":{}}`,
		"empty":   `{"data":[1],"meta":{"next_cursor":""}}`,
		"boolean": `{"data":[1],"meta":{"next_cursor":true}}`,
		"object":  `{"data":[1],"meta":{"next_cursor":{"page":2}}}`,
	}
	for name, body := range cases {
		resp := jsonPage(body)
		assert.False(t, p.HasMorePages(req, resp), name)
		assert.Nil(t, p.NextPage(req, resp), name)
	}
}

func TestCursorPaginatorCustomKeys(t *testing.T) {
	p := CursorPaginator{
		CursorParam:  "after",
		PerPageParam: "size",
		DataKey:      "results",
		NextKey:      "paging.next",
		PerPage:      10,
	}
	req := NewRequest(http.MethodGet, "/events")
	resp := jsonPage(`{"results":[1,2,3],"paging":{"next":"tok"}}`)

	assert.Len(t, p.Items(resp), 3)
	next := p.NextPage(req, resp)
	require.NotNil(t, next)
	assert.Equal(t, "tok", next.Get("after"))
	assert.Equal(t, "10", next.Get("size"))
}

func TestPagedPaginatorIncrementsPage(t *testing.T) {
	p := PagedPaginator{PerPage: 20}
	resp := jsonPage(`{"data":[1,2],"meta":{"last_page":3}}`)

	// Page numbering starts at 1 when the request carries no page parameter.
	first := NewRequest(http.MethodGet, "/orders")
	require.True(t, p.HasMorePages(first, resp))
	next := p.NextPage(first, resp)
	require.NotNil(t, next)
	assert.Equal(t, "2", next.Get("page"))
	assert.Equal(t, "20", next.Get("per_page"))

	second := first.WithQueryValues(next)
	assert.Equal(t, "3", p.NextPage(second, resp).Get("page"))

	third := second.WithQueryValues(p.NextPage(second, resp))
	assert.False(t, p.HasMorePages(third, resp))
	assert.Nil(t, p.NextPage(third, resp))
}

func TestPagedPaginatorMalformedTotalIsTerminal(t *testing.T) {
	p := PagedPaginator{}
	req := NewRequest(http.MethodGet, "/orders")

	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":[1]}`)))
	assert.False(t, p.HasMorePages(req, jsonPage(`{"data":[1],"meta":{"last_page":"three"}}`)))
}

func TestPaginatorRoundTripIsDeterministic(t *testing.T) {
	p := OffsetPaginator{TotalKey: "total", Limit: 2}
	req := NewRequest(http.MethodGet, "/users")
	resp := jsonPage(`{"data":[1,2],"total":6}`)

	first := p.NextPage(req, resp)
	second := p.NextPage(req, resp)
	assert.Equal(t, first, second, "NextPage must be a pure function of request and response")

	// Feeding the parameters back produces a request the paginator reads the
	// same position from.
	nextReq := req.WithQueryValues(first)
	assert.Equal(t, 2, nextReq.QueryInt("offset", 0))
	assert.Equal(t, url.Values{"offset": {"4"}, "limit": {"2"}},
		p.NextPage(nextReq, jsonPage(`{"data":[3,4],"total":6}`)))
}
