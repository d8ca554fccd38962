// Package classify turns failure responses from the conversion service into
// notification-ready messages. The extraction chain: structured {"error": ..}
// body, then raw body text, then the HTTP status text, then a generic
// fallback. Everything user-facing is escaped so response bodies can never
// smuggle markup into the UI.
package classify

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/convertdesk/backend/internal/models"
)

// GenericMessage is the last-resort failure text.
const GenericMessage = "Unknown error occurred."

// maxBodyChars caps how much of an arbitrary failure body is shown.
const maxBodyChars = 500

// errorBody matches the converter's structured failure payload.
type errorBody struct {
	Error string `json:"error"`
}

// ServerFailure classifies a non-2xx response. The numeric status tags the
// title so the user can tell a 404 from a 500 at a glance.
func ServerFailure(body []byte, statusCode int, statusText string) models.Notification {
	return models.Notification{
		Kind:  models.NotifyError,
		Title: fmt.Sprintf("Conversion failed (%d)", statusCode),
		Body:  Escape(extractMessage(body, statusText)),
	}
}

// TransportFailure classifies a request that never produced a response.
func TransportFailure(err error) models.Notification {
	msg := GenericMessage
	if err != nil {
		msg = err.Error()
	}
	return models.Notification{
		Kind:  models.NotifyError,
		Title: "Network error",
		Body:  Escape(msg),
	}
}

// Cancelled builds the informational notice for a user-initiated abort.
// Cancellation is not a failure.
func Cancelled(toolName string) models.Notification {
	return models.Notification{
		Kind:  models.NotifyInfo,
		Title: "Conversion cancelled",
		Body:  Escape(fmt.Sprintf("%s was cancelled before completion.", toolName)),
	}
}

// Escape renders text as plain escaped content. Callers composing multi-line
// lists join the already-escaped lines with "\n", the only structural
// separator allowed through.
func Escape(s string) string {
	return html.EscapeString(s)
}

func extractMessage(body []byte, statusText string) string {
	if !utf8.Valid(body) {
		return statusFallback(statusText)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return statusFallback(statusText)
	}

	var structured errorBody
	if err := json.Unmarshal(body, &structured); err == nil && strings.TrimSpace(structured.Error) != "" {
		return strings.TrimSpace(structured.Error)
	}

	if len(text) > maxBodyChars {
		// Back up to a rune boundary so the cut never produces invalid UTF-8.
		cut := maxBodyChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

func statusFallback(statusText string) string {
	if strings.TrimSpace(statusText) != "" {
		return statusText
	}
	return GenericMessage
}
