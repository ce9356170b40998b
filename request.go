package relay

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Request is a declarative description of an API call: method, target, query,
// headers and body. With* methods return modified copies, leaving the
// receiver untouched, which lets the pagination iterator derive next-page
// requests from the original without disturbing it.
type Request struct {
	method string
	target string
	query  url.Values
	header http.Header
	body   []byte

	retry  *RetryConfig
	policy RetryPolicy
}

// NewRequest creates a request for the given method and target. Target may be
// an absolute URL or a path resolved against the connector's base URL. A
// query string present in target is parsed into the request's query values.
func NewRequest(method, target string) *Request {
	req := &Request{
		method: method,
		target: target,
		query:  url.Values{},
		header: http.Header{},
	}
	if i := strings.IndexByte(target, '?'); i >= 0 {
		if q, err := url.ParseQuery(target[i+1:]); err == nil {
			req.target = target[:i]
			req.query = q
		}
	}
	return req
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// Target returns the path or URL the request addresses, without the query.
func (r *Request) Target() string { return r.target }

// Query returns a copy of the request's query values.
func (r *Request) Query() url.Values {
	return cloneValues(r.query)
}

// QueryInt returns the query parameter as an integer, or def when absent or
// malformed. Paginators use this to read the current position.
func (r *Request) QueryInt(key string, def int) int {
	v := r.query.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Header returns a copy of the request's headers.
func (r *Request) Header() http.Header {
	return r.header.Clone()
}

// HeaderValue returns a single header value.
func (r *Request) HeaderValue(key string) string {
	return r.header.Get(key)
}

// Body returns the request body bytes.
func (r *Request) Body() []byte { return r.body }

// Clone returns an independent deep copy of the request.
func (r *Request) Clone() *Request {
	cp := &Request{
		method: r.method,
		target: r.target,
		query:  cloneValues(r.query),
		header: r.header.Clone(),
		retry:  r.retry,
		policy: r.policy,
	}
	if r.body != nil {
		cp.body = append([]byte(nil), r.body...)
	}
	return cp
}

// WithQuery returns a copy with the query parameter set.
func (r *Request) WithQuery(key, value string) *Request {
	cp := r.Clone()
	cp.query.Set(key, value)
	return cp
}

// WithQueryValues returns a copy with each of the given values merged in,
// replacing existing parameters of the same name.
func (r *Request) WithQueryValues(values url.Values) *Request {
	cp := r.Clone()
	for key, vals := range values {
		cp.query.Del(key)
		for _, v := range vals {
			cp.query.Add(key, v)
		}
	}
	return cp
}

// WithHeader returns a copy with the header set.
func (r *Request) WithHeader(key, value string) *Request {
	cp := r.Clone()
	cp.header.Set(key, value)
	return cp
}

// WithBody returns a copy carrying the body and content type.
func (r *Request) WithBody(body []byte, contentType string) *Request {
	cp := r.Clone()
	cp.body = append([]byte(nil), body...)
	if contentType != "" {
		cp.header.Set("Content-Type", contentType)
	}
	return cp
}

// WithJSONBody returns a copy carrying pre-marshalled JSON.
func (r *Request) WithJSONBody(body []byte) *Request {
	return r.WithBody(body, "application/json")
}

// WithRetry returns a copy carrying a per-request retry configuration that
// overrides the connector's default.
func (r *Request) WithRetry(config RetryConfig) *Request {
	cp := r.Clone()
	cp.retry = &config
	return cp
}

// WithRetryPolicy returns a copy carrying a retry policy. A policy attached
// to the request takes precedence over both the request's and the
// connector's retry configuration.
func (r *Request) WithRetryPolicy(policy RetryPolicy) *Request {
	cp := r.Clone()
	cp.policy = policy
	return cp
}

// RetryConfig returns the per-request retry configuration, if declared.
func (r *Request) RetryConfig() (RetryConfig, bool) {
	if r.retry == nil {
		return RetryConfig{}, false
	}
	return *r.retry, true
}

// RetryPolicy returns the per-request retry policy, if declared.
func (r *Request) RetryPolicy() RetryPolicy { return r.policy }

// Build materializes the request into an *http.Request, resolving the target
// against base when it is not absolute and encoding the query values.
func (r *Request) Build(ctx context.Context, base string) (*http.Request, error) {
	u, err := resolveTarget(base, r.target)
	if err != nil {
		return nil, err
	}
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body *bytes.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for key, vals := range r.header {
		for _, v := range vals {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

func resolveTarget(base, target string) (*url.URL, error) {
	tu, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if tu.IsAbs() || base == "" {
		return tu, nil
	}
	bu, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	return bu.ResolveReference(tu), nil
}

func cloneValues(v url.Values) url.Values {
	cp := make(url.Values, len(v))
	for key, vals := range v {
		cp[key] = append([]string(nil), vals...)
	}
	return cp
}
