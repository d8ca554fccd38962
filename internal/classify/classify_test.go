package classify

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/convertdesk/backend/internal/models"
)

func TestServerFailure(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		statusCode int
		statusText string
		wantBody   string
		wantTitle  string
	}{
		{
			name:       "structured error field wins",
			body:       []byte(`{"error":"disk full"}`),
			statusCode: 500,
			statusText: "Internal Server Error",
			wantBody:   "disk full",
			wantTitle:  "Conversion failed (500)",
		},
		{
			name:       "json without error field falls back to raw text",
			body:       []byte(`{"detail":"nope"}`),
			statusCode: 400,
			statusText: "Bad Request",
			wantBody:   `{&#34;detail&#34;:&#34;nope&#34;}`,
			wantTitle:  "Conversion failed (400)",
		},
		{
			name:       "plain text body used verbatim",
			body:       []byte("quota exceeded"),
			statusCode: 429,
			statusText: "Too Many Requests",
			wantBody:   "quota exceeded",
			wantTitle:  "Conversion failed (429)",
		},
		{
			name:       "invalid utf8 falls back to status text",
			body:       []byte{0xff, 0xfe, 0x00, 0x80},
			statusCode: 502,
			statusText: "Bad Gateway",
			wantBody:   "Bad Gateway",
			wantTitle:  "Conversion failed (502)",
		},
		{
			name:       "empty body and status text yields generic message",
			body:       nil,
			statusCode: 500,
			statusText: "",
			wantBody:   GenericMessage,
			wantTitle:  "Conversion failed (500)",
		},
		{
			name:       "markup in error text is escaped",
			body:       []byte(`{"error":"<script>alert(1)</script>"}`),
			statusCode: 500,
			statusText: "Internal Server Error",
			wantBody:   "&lt;script&gt;alert(1)&lt;/script&gt;",
			wantTitle:  "Conversion failed (500)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ServerFailure(tt.body, tt.statusCode, tt.statusText)
			assert.Equal(t, models.NotifyError, got.Kind)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantBody, got.Body)
		})
	}
}

func TestServerFailureTruncatesHugeBodies(t *testing.T) {
	huge := make([]byte, 10_000)
	for i := range huge {
		huge[i] = 'x'
	}

	got := ServerFailure(huge, 500, "Internal Server Error")
	assert.LessOrEqual(t, len(got.Body), maxBodyChars)
}

func TestServerFailureTruncatesAtRuneBoundary(t *testing.T) {
	// Fill to just under the cap, then place a multibyte rune straddling it.
	body := strings.Repeat("x", maxBodyChars-1) + "世界"

	got := ServerFailure([]byte(body), 500, "Internal Server Error")
	assert.True(t, utf8.ValidString(got.Body), "truncation must not split a rune")
	assert.LessOrEqual(t, len(got.Body), maxBodyChars)
	assert.Equal(t, strings.Repeat("x", maxBodyChars-1), got.Body)
}

func TestTransportFailure(t *testing.T) {
	got := TransportFailure(errors.New("dial tcp: connection refused"))
	assert.Equal(t, models.NotifyError, got.Kind)
	assert.Equal(t, "Network error", got.Title)
	assert.Contains(t, got.Body, "connection refused")

	got = TransportFailure(nil)
	assert.Equal(t, GenericMessage, got.Body)
}

func TestCancelled(t *testing.T) {
	got := Cancelled("Merge PDFs")
	assert.Equal(t, models.NotifyInfo, got.Kind)
	assert.Contains(t, got.Body, "Merge PDFs")
}
