// mock_converter.go - Fake remote conversion service for testing
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// ReceivedRequest captures what the converter saw for one submission.
type ReceivedRequest struct {
	Path       string
	FileFields []string            // form field name per file part, in order
	FileNames  []string            // original filename per file part, in order
	FileSizes  []int64             // bytes per file part, in order
	FormValues map[string][]string // non-file fields
}

// MockConverter implements the remote conversion endpoint for tests. The
// response it returns is configurable per instance; every request it
// receives is recorded.
type MockConverter struct {
	Server *httptest.Server

	// Response configuration. Mutate before issuing requests.
	StatusCode int
	Body       []byte
	Headers    map[string]string
	Delay      time.Duration // simulated processing time; aborts early on client cancel

	mu       sync.Mutex
	requests []ReceivedRequest
}

// NewMockConverter starts a converter that responds 200 with the given body.
func NewMockConverter() *MockConverter {
	m := &MockConverter{
		StatusCode: http.StatusOK,
		Body:       []byte("converted-bytes"),
		Headers:    make(map[string]string),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the converter's base URL.
func (m *MockConverter) URL() string {
	return m.Server.URL
}

// Close shuts the server down.
func (m *MockConverter) Close() {
	m.Server.Close()
}

// Requests returns a copy of everything received so far.
func (m *MockConverter) Requests() []ReceivedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReceivedRequest(nil), m.requests...)
}

// RequestCount returns how many submissions reached the converter.
func (m *MockConverter) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockConverter) handle(w http.ResponseWriter, r *http.Request) {
	received := ReceivedRequest{
		Path:       r.URL.Path,
		FormValues: make(map[string][]string),
	}

	reader, err := r.MultipartReader()
	if err == nil {
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			if part.FileName() != "" {
				var size int64
				buf := make([]byte, 32*1024)
				for {
					n, rerr := part.Read(buf)
					size += int64(n)
					if rerr != nil {
						break
					}
				}
				received.FileFields = append(received.FileFields, part.FormName())
				received.FileNames = append(received.FileNames, part.FileName())
				received.FileSizes = append(received.FileSizes, size)
			} else {
				buf := make([]byte, 4096)
				n, _ := part.Read(buf)
				received.FormValues[part.FormName()] = append(received.FormValues[part.FormName()], string(buf[:n]))
			}
			part.Close()
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, received)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range m.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(m.StatusCode)
	w.Write(m.Body)
}
