// client.go - multipart submission to the remote conversion service
package request

import (
	"context"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/convertdesk/backend/internal/models"
)

// singleFileField and multiFileField are the form field names the converter
// expects: a lone "file" field in single mode, repeated "files" fields
// otherwise.
const (
	singleFileField = "file"
	multiFileField  = "files"
)

// upload streams the selection as a multipart POST. The body is produced
// through a pipe so files of any size never sit in memory, and the bytes
// written drive the determinate upload percentage. When the full body has
// been handed to the transport the request transitions to Processing.
func (m *Manager) upload(ctx context.Context, requestID string, sel *models.Selection, endpoint string, tool models.ToolDescriptor) (*http.Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := m.writeBody(mw, requestID, sel, tool)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			m.markProcessing(requestID)
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(m.baseURL, endpoint), pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return m.client.Do(req)
}

// writeBody emits the file parts followed by the non-empty option fields.
func (m *Manager) writeBody(mw *multipart.Writer, requestID string, sel *models.Selection, tool models.ToolDescriptor) error {
	fieldName := multiFileField
	if tool.InputMode == models.InputSingle && sel.Count() == 1 {
		fieldName = singleFileField
	}

	total := sel.TotalBytes()
	counter := &progressCounter{
		total: total,
		report: func(sent, total int64) {
			m.setProgress(requestID, uploadPercent(sent, total))
		},
	}

	for _, f := range sel.Files {
		part, err := mw.CreateFormFile(fieldName, f.Name)
		if err != nil {
			return err
		}

		src, err := os.Open(f.Path)
		if err != nil {
			return fmt.Errorf("failed to open staged file %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, io.TeeReader(src, counter))
		src.Close()
		if err != nil {
			return err
		}
	}

	// Option fields were already filtered to non-empty values when the tool
	// descriptor was built.
	for name, value := range tool.OptionFields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	return nil
}

// progressCounter reports cumulative bytes pushed through it.
type progressCounter struct {
	sent   int64
	total  int64
	report func(sent, total int64)
}

func (c *progressCounter) Write(p []byte) (int, error) {
	c.sent += int64(len(p))
	c.report(c.sent, c.total)
	return len(p), nil
}

// uploadPercent converts a byte count into a rounded percentage, clamped to
// 0-100. A zero total means the percentage cannot be computed.
func uploadPercent(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(sent) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(resp.Body)
}

func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
