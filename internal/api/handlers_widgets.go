// handlers_widgets.go - Per-widget file selection handlers
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/convertdesk/backend/internal/classify"
	"github.com/convertdesk/backend/internal/models"
	"github.com/convertdesk/backend/internal/notify"
	"github.com/convertdesk/backend/internal/selection"
	"github.com/convertdesk/backend/internal/tools"
	"github.com/convertdesk/backend/internal/validate"
)

// WidgetHandlerImpl implements the WidgetHandler interface. Incoming files
// are staged to disk so submission can stream them without holding the batch
// in memory; each accepted batch owns one staging directory. A batch that is
// replaced or cleared while its widget has a request in flight is retired
// rather than removed, because the upload may still be streaming from it;
// retired directories are released on the request's terminal event.
type WidgetHandlerImpl struct {
	selections *selection.Store
	notifier   *notify.Queue
	catalog    *tools.Catalog
	stagingDir string
	maxBytes   int64
	active     func(widgetID string) bool // reports an in-flight request for the widget

	mu      sync.Mutex
	staged  map[string]string   // widgetID -> staging dir of the accepted batch
	retired map[string][]string // widgetID -> dirs awaiting the terminal event
}

// NewWidgetHandler creates a new widget selection handler
func NewWidgetHandler(selections *selection.Store, notifier *notify.Queue, catalog *tools.Catalog, stagingDir string, maxBytes int64, active func(widgetID string) bool) WidgetHandler {
	return &WidgetHandlerImpl{
		selections: selections,
		notifier:   notifier,
		catalog:    catalog,
		stagingDir: stagingDir,
		maxBytes:   maxBytes,
		active:     active,
		staged:     make(map[string]string),
		retired:    make(map[string][]string),
	}
}

// selectionResponse is the body returned by choose/get selection calls.
type selectionResponse struct {
	Accepted   bool                    `json:"accepted"`
	WidgetID   string                  `json:"widgetId"`
	Files      []models.FileDescriptor `json:"files"`
	Count      int                     `json:"count"`
	TotalBytes int64                   `json:"totalBytes"`
	Violations []validate.Violation    `json:"violations,omitempty"`
}

// HandleChooseFiles validates a candidate batch and, when clean, replaces the
// widget's selection wholesale. A rejected batch leaves the prior selection
// untouched and surfaces a single warning notification covering every
// violated rule.
func (h *WidgetHandlerImpl) HandleChooseFiles(c echo.Context) error {
	widgetID := c.Param("widgetId")
	if widgetID == "" {
		return NewValidationError("widgetId")
	}

	toolID := c.FormValue("toolId")
	tool, ok := h.catalog.Find(toolID)
	if !ok {
		return NewNotFoundError("tool", toolID)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form data", err)
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		return NewBadRequestError("no files provided", nil)
	}

	batchDir := filepath.Join(h.stagingDir, widgetID+"-"+uuid.New().String()[:8])
	files, err := h.stageBatch(batchDir, parts)
	if err != nil {
		os.RemoveAll(batchDir)
		return NewInternalError("failed to stage files", err)
	}

	sel, violations := h.selections.Choose(widgetID, files, tool.Accept, h.maxBytes)
	if len(violations) > 0 {
		os.RemoveAll(batchDir)
		h.notifier.Push(models.NotifyWarning, "Files not accepted",
			classify.Escape(strings.Join(validate.Messages(violations), "\n")))
		return c.JSON(http.StatusBadRequest, selectionResponse{
			Accepted:   false,
			WidgetID:   widgetID,
			Violations: violations,
		})
	}

	h.detach(widgetID)
	h.mu.Lock()
	h.staged[widgetID] = batchDir
	h.mu.Unlock()

	fmt.Printf("[Widget %s] Selected %d file(s) for %s\n", widgetID, sel.Count(), tool.Name)
	h.notifier.Push(models.NotifySuccess, "Files ready",
		classify.Escape(fmt.Sprintf("%d file(s) ready for %s.", sel.Count(), tool.Name)))

	return c.JSON(http.StatusOK, selectionResponse{
		Accepted:   true,
		WidgetID:   widgetID,
		Files:      sel.Files,
		Count:      sel.Count(),
		TotalBytes: sel.TotalBytes(),
	})
}

// HandleGetSelection returns the widget's current selection. A widget with no
// selection reports an empty batch rather than an error.
func (h *WidgetHandlerImpl) HandleGetSelection(c echo.Context) error {
	widgetID := c.Param("widgetId")

	sel, ok := h.selections.Get(widgetID)
	if !ok {
		return c.JSON(http.StatusOK, selectionResponse{
			Accepted: true,
			WidgetID: widgetID,
			Files:    []models.FileDescriptor{},
		})
	}

	return c.JSON(http.StatusOK, selectionResponse{
		Accepted:   true,
		WidgetID:   widgetID,
		Files:      sel.Files,
		Count:      sel.Count(),
		TotalBytes: sel.TotalBytes(),
	})
}

// HandleClearSelection resets the widget to its empty state and removes the
// staged copies.
func (h *WidgetHandlerImpl) HandleClearSelection(c echo.Context) error {
	widgetID := c.Param("widgetId")

	h.selections.Clear(widgetID)
	h.detach(widgetID)

	return c.NoContent(http.StatusNoContent)
}

// detach drops the widget's current staging directory. While a request for
// the widget is in flight the directory is retired instead of removed; the
// upload goroutine opens staged files lazily and may not have read them yet.
func (h *WidgetHandlerImpl) detach(widgetID string) {
	h.mu.Lock()
	dir := h.staged[widgetID]
	delete(h.staged, widgetID)
	retire := dir != "" && h.active != nil && h.active(widgetID)
	if retire {
		h.retired[widgetID] = append(h.retired[widgetID], dir)
	}
	h.mu.Unlock()

	if dir != "" && !retire {
		os.RemoveAll(dir)
	}
}

// ReleaseStaging removes the widget's staged batch and anything retired.
// Called after a successful conversion has consumed the selection.
func (h *WidgetHandlerImpl) ReleaseStaging(widgetID string) {
	h.mu.Lock()
	dirs := h.retired[widgetID]
	if dir := h.staged[widgetID]; dir != "" {
		dirs = append(dirs, dir)
	}
	delete(h.staged, widgetID)
	delete(h.retired, widgetID)
	h.mu.Unlock()

	for _, dir := range dirs {
		os.RemoveAll(dir)
	}
}

// ReleaseRetired removes only the retired directories. Called on failed and
// cancelled terminal events, where the current selection must survive for a
// retry.
func (h *WidgetHandlerImpl) ReleaseRetired(widgetID string) {
	h.mu.Lock()
	dirs := h.retired[widgetID]
	delete(h.retired, widgetID)
	h.mu.Unlock()

	for _, dir := range dirs {
		os.RemoveAll(dir)
	}
}

// stageBatch copies every uploaded part into the batch directory and returns
// the descriptors pointing at the staged copies.
func (h *WidgetHandlerImpl) stageBatch(batchDir string, parts []*multipart.FileHeader) ([]models.FileDescriptor, error) {
	if err := os.MkdirAll(batchDir, 0755); err != nil {
		return nil, err
	}

	files := make([]models.FileDescriptor, 0, len(parts))
	for i, part := range parts {
		name := filepath.Base(part.Filename)
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = fmt.Sprintf("upload_%d", i)
		}

		dst := filepath.Join(batchDir, fmt.Sprintf("%d_%s", i, name))
		written, err := h.stagePart(part, dst)
		if err != nil {
			return nil, err
		}

		mimeOrExt := part.Header.Get("Content-Type")
		if mimeOrExt == "" {
			mimeOrExt = strings.ToLower(filepath.Ext(name))
		}

		files = append(files, models.FileDescriptor{
			Name:      name,
			SizeBytes: written,
			MimeOrExt: mimeOrExt,
			Path:      dst,
		})
	}
	return files, nil
}

func (h *WidgetHandlerImpl) stagePart(part *multipart.FileHeader, dst string) (int64, error) {
	src, err := part.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return written, err
}
