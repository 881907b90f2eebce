// Package testutil provides a configurable mock Animal API server for
// tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock Animal API server.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount int
	pathCounts   map[string]int
	loaded       [][]json.RawMessage
}

// NewMockAPI creates a mock server. Paths without a registered handler get
// 404 with a JSON error body.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		if !exists {
			// Fall back to the longest registered prefix ending in "/",
			// so one handler can cover /animals/v1/animals/{id}.
			best := ""
			for path, h := range mock.handlers {
				if strings.HasSuffix(path, "/") && strings.HasPrefix(r.URL.Path, path) && len(path) > len(best) {
					best, handler, exists = path, h, true
				}
			}
		}
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error": "no handler for %s"}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a path. Paths ending in "/" act as
// prefix handlers.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// TotalRequests returns the number of requests the server received.
func (m *MockAPI) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestsFor returns the number of requests for an exact path.
func (m *MockAPI) RequestsFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LoadedBatches returns the batches received by the home endpoint, in
// arrival order.
func (m *MockAPI) LoadedBatches() [][]json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]json.RawMessage, len(m.loaded))
	copy(out, m.loaded)
	return out
}

// LoadedCount returns the total number of records received by the home
// endpoint.
func (m *MockAPI) LoadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, batch := range m.loaded {
		n += len(batch)
	}
	return n
}

// ServeAnimalList registers a listing handler serving the given pages of
// ids; requests past the last page get an empty items array.
func (m *MockAPI) ServeAnimalList(pages [][]int64) {
	m.SetHandler("/animals/v1/animals", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}

		items := []map[string]any{}
		if page <= len(pages) {
			for _, id := range pages[page-1] {
				items = append(items, map[string]any{"id": id, "name": fmt.Sprintf("animal-%d", id)})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"page":        page,
			"total_pages": len(pages),
			"items":       items,
		})
	})
}

// ServeAnimalDetails registers a detail handler answering from the given
// records; unknown ids get 404.
func (m *MockAPI) ServeAnimalDetails(animals map[int64]string) {
	m.SetHandler("/animals/v1/animals/", func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/animals/v1/animals/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		body, ok := animals[id]
		if err != nil || !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"error": "animal %s not found"}`, idStr)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

// ServeHome registers a home endpoint that records every received batch and
// responds 200.
func (m *MockAPI) ServeHome() {
	m.SetHandler("/animals/v1/home", func(w http.ResponseWriter, r *http.Request) {
		var batch []json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error": "bad batch: %v"}`, err)
			return
		}
		m.mu.Lock()
		m.loaded = append(m.loaded, batch)
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"message": "Helped %d animals find their home"}`, len(batch))
	})
}

// FailNTimes wraps a handler so the first n requests answer with the given
// status before delegating.
func FailNTimes(n, status int, next http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	failures := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		shouldFail := failures < n
		if shouldFail {
			failures++
		}
		attempt := failures
		mu.Unlock()

		if shouldFail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error": "simulated failure %d"}`, attempt)
			return
		}
		next(w, r)
	}
}
