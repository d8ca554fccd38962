// Package resolve derives the download name for a converted artifact and
// persists the received bytes under the downloads directory.
package resolve

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// timestampLayout is a compact ISO-8601-like stamp truncated to seconds.
const timestampLayout = "20060102T150405"

// toolArtifactNames maps tool IDs to their artifact name. "{base}" is
// replaced with the first input file's base name (portion before the first
// dot). Tools whose output name cannot be known statically (analyzers,
// target-format converters) fall through to the generic fallback.
var toolArtifactNames = map[string]string{
	"merge-pdf":     "merged.pdf",
	"split-pdf":     "split_pages.zip",
	"compress-pdf":  "{base}_compressed.pdf",
	"rotate-pdf":    "{base}_rotated.pdf",
	"watermark-pdf": "{base}_watermarked.pdf",
	"pdf-to-word":   "{base}.docx",
	"word-to-pdf":   "{base}.pdf",
	"html-to-pdf":   "{base}.pdf",
	"txt-to-pdf":    "{base}.pdf",
	"merge-word":    "merged.docx",
	"remove-bg":     "background_removed.png",
	"create-zip":    "archive.zip",
	"extract-archive": "extracted.zip",
	"json-to-csv":   "{base}.csv",
	"csv-to-json":   "{base}.json",
	"excel-to-json": "{base}.json",
	"json-to-excel": "{base}.xlsx",
}

// Resolver names and persists conversion artifacts.
type Resolver struct {
	downloadsDir string
	now          func() time.Time
}

// New creates a resolver that persists artifacts under downloadsDir.
func New(downloadsDir string) *Resolver {
	return &Resolver{downloadsDir: downloadsDir, now: time.Now}
}

// Filename derives the artifact's download name. Precedence, first match
// wins:
//
//  1. a name embedded in the response's Content-Disposition header, in
//     either the percent-encoded UTF-8 form (filename*=) or the quoted
//     literal form (filename=);
//  2. the static per-tool mapping;
//  3. "{base}_converted_{timestamp}".
func (r *Resolver) Filename(headers http.Header, toolID, firstInputName string) string {
	if name := fromContentDisposition(headers.Get("Content-Disposition")); name != "" {
		return sanitize(name)
	}

	base := baseName(firstInputName)
	if tmpl, ok := toolArtifactNames[toolID]; ok {
		return sanitize(strings.ReplaceAll(tmpl, "{base}", base))
	}

	return sanitize(fmt.Sprintf("%s_converted_%s", base, r.now().Format(timestampLayout)))
}

// Persist writes the artifact bytes to the downloads directory under the
// resolved name. The write goes through a .part temp file and an atomic
// rename so a crash never leaves a half-written artifact. Returns the final
// path.
func (r *Resolver) Persist(data []byte, filename string) (string, error) {
	if err := os.MkdirAll(r.downloadsDir, 0755); err != nil {
		return "", err
	}

	dest := filepath.Join(r.downloadsDir, sanitize(filename))
	tmp := dest + ".part"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return dest, nil
}

// fromContentDisposition extracts a filename directive from the header
// value. The percent-encoded UTF-8 form is preferred; decode failures are
// ignored silently and the raw value is used instead.
func fromContentDisposition(value string) string {
	if value == "" {
		return ""
	}

	// First directive of either form wins.
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)

		if rest, ok := cutPrefixFold(part, "filename*="); ok {
			raw := rest
			if idx := strings.Index(rest, "''"); idx >= 0 {
				raw = rest[idx+2:]
			}
			if decoded, err := url.PathUnescape(raw); err == nil && decoded != "" {
				return decoded
			}
			if raw != "" {
				return raw
			}
			continue
		}

		if rest, ok := cutPrefixFold(part, "filename="); ok {
			if name := strings.Trim(rest, `"`); name != "" {
				return name
			}
		}
	}
	return ""
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// baseName returns the portion of name before the first dot, with any path
// components stripped.
func baseName(name string) string {
	name = filepath.Base(name)
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[:idx]
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "artifact"
	}
	return name
}

// sanitize strips path components so a hostile header cannot escape the
// downloads directory.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "" || name == "." || name == "/" {
		return "artifact"
	}
	return name
}
