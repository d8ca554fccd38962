package models

import "strings"

// FileDescriptor is an immutable snapshot of a chosen file, taken at
// selection time. Path points at the staged copy inside the gateway's data
// directory and is never exposed to clients.
type FileDescriptor struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeOrExt string `json:"mimeOrExtension"`
	Path      string `json:"-"`
}

// Ext returns the lower-cased extension of the file name, including the
// leading dot ("report.PDF" -> ".pdf"). Returns "" when the name has no dot.
func (f FileDescriptor) Ext() string {
	idx := strings.LastIndex(f.Name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(f.Name[idx:])
}

// Base returns the portion of the file name before the first dot
// ("archive.tar.gz" -> "archive"). Used for templated artifact names.
func (f FileDescriptor) Base() string {
	if idx := strings.Index(f.Name, "."); idx >= 0 {
		return f.Name[:idx]
	}
	return f.Name
}
