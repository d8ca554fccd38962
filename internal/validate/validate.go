// Package validate checks candidate file batches before any network or
// selection state is touched. All checks are pure functions over the
// in-memory descriptors; no I/O happens here.
package validate

import (
	"fmt"
	"strings"

	"github.com/convertdesk/backend/internal/models"
)

// Violation codes.
const (
	CodeOversize        = "OVERSIZE"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
)

// Violation is one aggregated rule failure for a batch. Message names every
// offending file so the whole batch can be rejected with a single warning.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CheckBatch validates a candidate batch against the size cap and the
// widget's accept spec. acceptSpec is a comma-separated, case-insensitive
// list of extensions including the dot (".pdf,.jpg"); empty or "*" means no
// type restriction. Returns nil when the batch is acceptable.
//
// Each rule contributes at most one Violation covering all of its offenders,
// so a batch with three oversize files still yields a single size violation.
func CheckBatch(files []models.FileDescriptor, acceptSpec string, maxBytes int64) []Violation {
	var violations []Violation

	if v, ok := checkSizes(files, maxBytes); ok {
		violations = append(violations, v)
	}
	if v, ok := checkTypes(files, acceptSpec); ok {
		violations = append(violations, v)
	}
	return violations
}

func checkSizes(files []models.FileDescriptor, maxBytes int64) (Violation, bool) {
	if maxBytes <= 0 {
		return Violation{}, false
	}

	var offenders []string
	for _, f := range files {
		if f.SizeBytes > maxBytes {
			offenders = append(offenders, f.Name)
		}
	}
	if len(offenders) == 0 {
		return Violation{}, false
	}

	return Violation{
		Code: CodeOversize,
		Message: fmt.Sprintf("%s the %s limit: %s",
			pluralExceeds(len(offenders)), FormatSize(maxBytes), strings.Join(offenders, ", ")),
	}, true
}

func checkTypes(files []models.FileDescriptor, acceptSpec string) (Violation, bool) {
	allowed := ParseAcceptSpec(acceptSpec)
	if allowed == nil {
		return Violation{}, false
	}

	var offenders []string
	for _, f := range files {
		if _, ok := allowed[f.Ext()]; !ok {
			offenders = append(offenders, f.Name)
		}
	}
	if len(offenders) == 0 {
		return Violation{}, false
	}

	return Violation{
		Code: CodeUnsupportedType,
		Message: fmt.Sprintf("unsupported file type: %s (allowed: %s)",
			strings.Join(offenders, ", "), acceptSpec),
	}, true
}

// ParseAcceptSpec splits an accept spec into a lower-cased extension set.
// Returns nil when the spec imposes no restriction ("" or "*").
func ParseAcceptSpec(acceptSpec string) map[string]struct{} {
	spec := strings.TrimSpace(acceptSpec)
	if spec == "" || spec == "*" {
		return nil
	}

	allowed := make(map[string]struct{})
	for _, part := range strings.Split(spec, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		allowed[ext] = struct{}{}
	}
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}

// Messages flattens violations into one message per rule, ready to be joined
// with a line break for a single warning notification.
func Messages(violations []Violation) []string {
	msgs := make([]string, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// FormatSize renders a byte count in binary units ("500 MiB", "2 GiB").
func FormatSize(n int64) string {
	const (
		kib = int64(1) << 10
		mib = int64(1) << 20
		gib = int64(1) << 30
	)
	switch {
	case n >= gib && n%gib == 0:
		return fmt.Sprintf("%d GiB", n/gib)
	case n >= mib && n%mib == 0:
		return fmt.Sprintf("%d MiB", n/mib)
	case n >= kib && n%kib == 0:
		return fmt.Sprintf("%d KiB", n/kib)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func pluralExceeds(n int) string {
	if n == 1 {
		return "1 file exceeds"
	}
	return fmt.Sprintf("%d files exceed", n)
}
