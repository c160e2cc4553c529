package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fetch(t *testing.T, req *Request) *Response {
	t.Helper()
	resp, err := NewFetcher(5*time.Second).Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	return resp
}

func TestFetchForwardsRequestAndResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", "ok")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello from backend"))
	}))
	defer backend.Close()

	resp := fetch(t, &Request{Method: http.MethodGet, Path: "/test", Backend: backend.URL})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Backend") != "ok" {
		t.Fatal("backend response header not forwarded")
	}
	if string(resp.Body) != "hello from backend" {
		t.Fatalf("expected 'hello from backend', got %q", string(resp.Body))
	}
	if resp.Backend != backend.URL {
		t.Fatalf("expected backend %s, got %s", backend.URL, resp.Backend)
	}
}

func TestFetchForwardsPathQueryMethodBody(t *testing.T) {
	var gotPath, gotQuery, gotMethod, gotBody string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer backend.Close()

	resp := fetch(t, &Request{
		Method:   http.MethodPost,
		Path:     "/api/v1/users",
		RawQuery: "page=2",
		Body:     []byte("request payload"),
		Backend:  backend.URL,
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if gotPath != "/api/v1/users" {
		t.Fatalf("expected path /api/v1/users, got %q", gotPath)
	}
	if gotQuery != "page=2" {
		t.Fatalf("expected query page=2, got %q", gotQuery)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotBody != "request payload" {
		t.Fatalf("expected 'request payload', got %q", gotBody)
	}
}

func TestFetchStripsHopByHopHeaders(t *testing.T) {
	var gotHeaders http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	h := make(http.Header)
	h.Set("Proxy-Authorization", "secret")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("X-Custom", "kept")

	fetch(t, &Request{Method: http.MethodGet, Path: "/", Header: h, Backend: backend.URL})

	if gotHeaders.Get("Proxy-Authorization") != "" {
		t.Error("Proxy-Authorization should be stripped")
	}
	if gotHeaders.Get("Keep-Alive") != "" {
		t.Error("Keep-Alive should be stripped")
	}
	if gotHeaders.Get("X-Custom") != "kept" {
		t.Error("X-Custom should be forwarded")
	}
}

func TestFetchWithoutBackend(t *testing.T) {
	_, err := NewFetcher(0).Fetch(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	if !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestFetchUnreachableBackend(t *testing.T) {
	_, err := NewFetcher(time.Second).Fetch(context.Background(), &Request{
		Method:  http.MethodGet,
		Path:    "/",
		Backend: "http://127.0.0.1:1",
	})
	if err == nil {
		t.Fatal("expected error for unreachable backend")
	}
}

func TestNewRequestBuffersBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/items/1?x=y", strings.NewReader("payload"))
	r.RemoteAddr = "10.0.0.7:5555"
	r.Header.Set("X-Token", "abc")

	req, err := NewRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != http.MethodPut || req.Path != "/items/1" || req.RawQuery != "x=y" {
		t.Fatalf("unexpected request line: %+v", req)
	}
	if string(req.Body) != "payload" {
		t.Fatalf("expected body payload, got %q", req.Body)
	}
	if req.ClientIP != "10.0.0.7" {
		t.Fatalf("expected client ip 10.0.0.7, got %s", req.ClientIP)
	}
	if req.Header.Get("X-Token") != "abc" {
		t.Fatal("headers should be copied")
	}
}

func TestClientIPWithoutPort(t *testing.T) {
	if got := ClientIP("192.168.1.1"); got != "192.168.1.1" {
		t.Fatalf("expected address unchanged, got %s", got)
	}
}

func TestResponseWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Text(http.StatusTooManyRequests, "rate limited").Write(rec); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Body.String() != "rate limited\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	(&Response{Body: []byte("x")}).Write(rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("zero status should default to 200, got %d", rec.Code)
	}
}
