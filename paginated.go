package relay

import (
	"context"
	"iter"

	"github.com/tidwall/gjson"
)

// PaginatedResponse is a lazy, forward-only iterator over the items of a
// paginated endpoint. It drives a Paginator across successive requests issued
// through a Sender, fetching each page only when the previous one is
// exhausted.
//
// Iteration follows the scanner protocol:
//
//	for pages.Next(ctx) {
//	    item := pages.Item()
//	}
//	if err := pages.Err(); err != nil { ... }
//
// A PaginatedResponse is single-use and not safe for concurrent iteration;
// restart by constructing a new one. Page fetches block the consumer; there
// is no prefetching, as page N+1's parameters generally depend on page N's
// response.
type PaginatedResponse struct {
	sender    Sender
	original  *Request
	paginator Paginator

	current     *Response
	currentReq  *Request
	items       []gjson.Result
	idx         int
	item        gjson.Result
	pagesLoaded int
	maxPages    int
	done        bool
	err         error
}

// NewPaginatedResponse wraps an already-fetched first response. The original
// request is the template every next-page request is cloned from.
func NewPaginatedResponse(sender Sender, req *Request, paginator Paginator, first *Response) *PaginatedResponse {
	return &PaginatedResponse{
		sender:      sender,
		original:    req,
		paginator:   paginator,
		current:     first,
		currentReq:  req,
		items:       paginator.Items(first),
		pagesLoaded: 1,
	}
}

// MaxPages caps the number of pages fetched, the initial one included. Zero
// means unlimited. Returns the receiver for chaining.
func (pr *PaginatedResponse) MaxPages(n int) *PaginatedResponse {
	pr.maxPages = n
	return pr
}

// Next advances to the next item, fetching further pages as needed. It
// returns false when the sequence is exhausted, the page cap is reached, or a
// page fetch failed; check Err to distinguish.
func (pr *PaginatedResponse) Next(ctx context.Context) bool {
	if pr.done || pr.err != nil {
		return false
	}

	for pr.idx >= len(pr.items) {
		if !pr.fetchNextPage(ctx) {
			return false
		}
	}

	pr.item = pr.items[pr.idx]
	pr.idx++
	return true
}

// Item returns the item produced by the last successful Next call.
func (pr *PaginatedResponse) Item() gjson.Result { return pr.item }

// Err returns the error that ended iteration, if any.
func (pr *PaginatedResponse) Err() error { return pr.err }

// PagesLoaded returns the number of pages fetched so far.
func (pr *PaginatedResponse) PagesLoaded() int { return pr.pagesLoaded }

// Response returns the most recently fetched page response.
func (pr *PaginatedResponse) Response() *Response { return pr.current }

// fetchNextPage loads the following page into the iterator. It returns false
// when iteration should stop, either cleanly or because the sender failed.
func (pr *PaginatedResponse) fetchNextPage(ctx context.Context) bool {
	if !pr.shouldContinue() {
		pr.done = true
		return false
	}

	params := pr.paginator.NextPage(pr.currentReq, pr.current)
	if params == nil {
		pr.done = true
		return false
	}

	next := pr.original.Clone().WithQueryValues(params)
	resp, err := pr.sender.Send(ctx, next)
	if err != nil {
		pr.err = err
		return false
	}

	pr.current = resp
	pr.currentReq = next
	pr.pagesLoaded++
	pr.items = pr.paginator.Items(resp)
	pr.idx = 0
	return true
}

// shouldContinue respects the page cap before delegating to the paginator.
func (pr *PaginatedResponse) shouldContinue() bool {
	if pr.maxPages > 0 && pr.pagesLoaded >= pr.maxPages {
		return false
	}
	return pr.paginator.HasMorePages(pr.currentReq, pr.current)
}

// Collect eagerly drains the iterator into a single slice. Memory is
// unbounded for large result sets; cap with MaxPages first when in doubt.
func (pr *PaginatedResponse) Collect(ctx context.Context) ([]gjson.Result, error) {
	var items []gjson.Result
	for pr.Next(ctx) {
		items = append(items, pr.Item())
	}
	return items, pr.Err()
}

// Lazy exposes the remaining items as an iter.Seq for use with range-over-func
// consumers. Iteration stops on the first fetch error; check Err afterwards.
func (pr *PaginatedResponse) Lazy(ctx context.Context) iter.Seq[gjson.Result] {
	return func(yield func(gjson.Result) bool) {
		for pr.Next(ctx) {
			if !yield(pr.item) {
				return
			}
		}
	}
}
