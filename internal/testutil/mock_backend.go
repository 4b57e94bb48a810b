package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// Credit headers reported by the fake backend on every response.
const (
	DefaultCreditsRemaining = "250000"
	DefaultCallCost         = "26"
)

// MockPage defines how the fake backend answers for one target URL.
type MockPage struct {
	// HTML is the rendered page content.
	HTML string
	// BackendStatus, when set, fails the backend call itself (e.g. 429, 500).
	BackendStatus int
	// TargetStatus is the status G2 returned; >= 400 reports an unsuccessful
	// scrape inside a 200 backend response. Defaults to 200.
	TargetStatus int
	Delay        time.Duration
}

// MockBackend is a fake scraping backend serving G2 pages keyed by target URL.
type MockBackend struct {
	server *httptest.Server
	mu     sync.RWMutex
	pages  map[string]MockPage

	requests  []url.Values
	perTarget map[string]int
}

// NewMockBackend starts a fake backend. Unknown target URLs answer with an
// empty G2 page.
func NewMockBackend() *MockBackend {
	m := &MockBackend{
		pages:     make(map[string]MockPage),
		perTarget: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the backend root to use as the client's BaseURL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// SetPage configures the answer for a target URL.
func (m *MockBackend) SetPage(target string, page MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[target] = page
}

// SetHTML is SetPage for a plain successful render.
func (m *MockBackend) SetHTML(target, html string) {
	m.SetPage(target, MockPage{HTML: html})
}

// RequestCount returns the number of backend calls.
func (m *MockBackend) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// TargetCount returns how often target was requested.
func (m *MockBackend) TargetCount(target string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perTarget[target]
}

// Requests returns a copy of every call's query parameters in arrival order.
func (m *MockBackend) Requests() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")

	m.mu.Lock()
	m.requests = append(m.requests, q)
	m.perTarget[target]++
	page, ok := m.pages[target]
	m.mu.Unlock()

	if !ok {
		page = MockPage{HTML: "<html><body></body></html>"}
	}
	if page.Delay > 0 {
		time.Sleep(page.Delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Scrapfly-Remaining-Api-Credit", DefaultCreditsRemaining)
	w.Header().Set("X-Scrapfly-Api-Cost", DefaultCallCost)

	if q.Get("key") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"ERR::SCRAPE::UNAUTHORIZED","message":"missing api key"}`))
		return
	}

	if page.BackendStatus != 0 {
		w.WriteHeader(page.BackendStatus)
		_, _ = w.Write([]byte(`{"code":"ERR::SCRAPE::UPSTREAM","message":"backend failure"}`))
		return
	}

	status := page.TargetStatus
	if status == 0 {
		status = http.StatusOK
	}

	body := map[string]any{
		"config": map[string]any{"url": target},
		"result": map[string]any{
			"content":     page.HTML,
			"status_code": status,
			"url":         target,
			"success":     status < 400,
		},
	}
	if status >= 400 {
		body["result"].(map[string]any)["error"] = map[string]any{
			"code":    "ERR::SCRAPE::BAD_UPSTREAM_RESPONSE",
			"message": http.StatusText(status),
		}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
