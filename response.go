package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// Response wraps an *http.Response with a buffered body and structured field
// access. Paginators and retry checks read it without consuming the body; the
// caller can still decode it as many times as needed.
type Response struct {
	status int
	header http.Header
	body   []byte
}

// NewResponse buffers the body of resp and returns the wrapped response. The
// underlying body is closed; resp.Body is replaced so raw consumers further
// down a middleware chain keep working.
func NewResponse(resp *http.Response) (*Response, error) {
	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, closeErr
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return &Response{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
	}, nil
}

// newResponseFromParts builds a Response directly; used by the cache path
// and by tests.
func newResponseFromParts(status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{status: status, header: header, body: body}
}

// Status returns the HTTP status code.
func (r *Response) Status() int { return r.status }

// Header returns the response headers.
func (r *Response) Header() http.Header { return r.header }

// Body returns the buffered response body.
func (r *Response) Body() []byte { return r.body }

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool { return r.status >= 200 && r.status < 300 }

// ClientError reports whether the status is in the 4xx range.
func (r *Response) ClientError() bool { return r.status >= 400 && r.status < 500 }

// ServerError reports whether the status is in the 5xx range.
func (r *Response) ServerError() bool { return r.status >= 500 }

// Get looks up a field in the JSON body by dotted path (e.g. "meta.next_cursor").
// A missing field yields a result whose Exists() is false.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.body, path)
}

// JSON unmarshals the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.body, v)
}
