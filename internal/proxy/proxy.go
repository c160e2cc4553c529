package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// MaxBodyBytes caps how much of a request or response body is buffered.
const MaxBodyBytes = 10 << 20

var (
	// ErrNoBackend is returned when Fetch runs before a backend was selected.
	ErrNoBackend = errors.New("proxy: no backend selected")
	// ErrBodyTooLarge is returned when a body exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("proxy: body too large")
)

var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailers":            true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Request is the input of one gateway flow call. Middleware may rewrite any
// field; Backend must be set before the request reaches Fetch.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
	ClientIP string
	Route    string
	Backend  string
}

// Response is the result of one gateway flow call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Backend    string
}

// NewRequest buffers an incoming HTTP request into a Request.
func NewRequest(r *http.Request) (*Request, error) {
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if len(b) > MaxBodyBytes {
			return nil, ErrBodyTooLarge
		}
		body = b
	}
	return &Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
		ClientIP: ClientIP(r.RemoteAddr),
	}, nil
}

// ClientIP strips the port from a remote address.
func ClientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Text builds a plain-text response generated by the gateway itself.
func Text(status int, msg string) *Response {
	h := make(http.Header)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	return &Response{StatusCode: status, Header: h, Body: []byte(msg + "\n")}
}

// Write copies the response onto w.
func (r *Response) Write(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(r.Body)
	return err
}

// Fetcher is the terminal action of the gateway flow: it forwards a Request
// to its selected backend.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetcher creates a Fetcher with a pooled transport. A zero timeout
// defaults to 30s per upstream request.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		timeout: timeout,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Fetch sends req to req.Backend and buffers the upstream response.
func (f *Fetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if req.Backend == "" {
		return nil, ErrNoBackend
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := req.Backend + req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	out, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	copyHeaders(out.Header, req.Header)

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", req.Backend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	header := make(http.Header, len(resp.Header))
	copyHeaders(header, resp.Header)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
		Backend:    req.Backend,
	}, nil
}

// copyHeaders copies src into dst, skipping hop-by-hop headers.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHop[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
