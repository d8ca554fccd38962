// handlers_widgets_test.go - Tests for widget selection handlers
package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/convertdesk/backend/internal/notify"
	"github.com/convertdesk/backend/internal/selection"
	"github.com/convertdesk/backend/internal/tools"
	"github.com/convertdesk/backend/internal/validate"
)

type widgetFixture struct {
	handler    *WidgetHandlerImpl
	selections *selection.Store
	notifier   *notify.Queue
	echo       *echo.Echo
}

func newWidgetFixture(t *testing.T, maxBytes int64) *widgetFixture {
	return newWidgetFixtureWithActive(t, maxBytes, nil)
}

func newWidgetFixtureWithActive(t *testing.T, maxBytes int64, active func(string) bool) *widgetFixture {
	t.Helper()

	catalog, err := tools.Load()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	selections := selection.NewStore()
	notifier := notify.NewQueue(time.Minute)
	t.Cleanup(notifier.Shutdown)

	h := NewWidgetHandler(selections, notifier, catalog, t.TempDir(), maxBytes, active)
	return &widgetFixture{
		handler:    h.(*WidgetHandlerImpl),
		selections: selections,
		notifier:   notifier,
		echo:       echo.New(),
	}
}

type uploadPart struct {
	name    string
	content string
}

// chooseRequest builds the multipart POST a browser file picker would send.
func (f *widgetFixture) chooseRequest(t *testing.T, widgetID, toolID string, parts []uploadPart) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("toolId", toolID); err != nil {
		t.Fatalf("failed to write toolId field: %v", err)
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile("files", p.name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write([]byte(p.content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/widgets/"+widgetID+"/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.SetPath("/api/widgets/:widgetId/files")
	c.SetParamNames("widgetId")
	c.SetParamValues(widgetID)
	return c, rec
}

func TestWidgetHandler_HandleChooseFiles(t *testing.T) {
	tests := []struct {
		name         string
		toolID       string
		parts        []uploadPart
		maxBytes     int64
		wantStatus   int
		wantAccepted bool
		wantCode     string // violation code expected in the body
	}{
		{
			name:         "accepts clean pdf batch",
			toolID:       "merge-pdf",
			parts:        []uploadPart{{"a.pdf", "one"}, {"b.pdf", "two"}},
			maxBytes:     1 << 20,
			wantStatus:   http.StatusOK,
			wantAccepted: true,
		},
		{
			name:       "rejects unsupported extension",
			toolID:     "merge-pdf",
			parts:      []uploadPart{{"a.pdf", "one"}, {"b.txt", "two"}},
			maxBytes:   1 << 20,
			wantStatus: http.StatusBadRequest,
			wantCode:   validate.CodeUnsupportedType,
		},
		{
			name:       "rejects oversize file",
			toolID:     "split-pdf",
			parts:      []uploadPart{{"big.pdf", "0123456789"}},
			maxBytes:   4,
			wantStatus: http.StatusBadRequest,
			wantCode:   validate.CodeOversize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWidgetFixture(t, tt.maxBytes)
			c, rec := f.chooseRequest(t, "w1", tt.toolID, tt.parts)

			if err := f.handler.HandleChooseFiles(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var resp selectionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid response body: %v", err)
			}
			if resp.Accepted != tt.wantAccepted {
				t.Errorf("expected accepted=%v, got %v", tt.wantAccepted, resp.Accepted)
			}

			if tt.wantAccepted {
				if resp.Count != len(tt.parts) {
					t.Errorf("expected %d files, got %d", len(tt.parts), resp.Count)
				}
				sel, ok := f.selections.Get("w1")
				if !ok {
					t.Fatal("expected selection to be stored")
				}
				// Staged copies must exist on disk for later streaming.
				for _, fd := range sel.Files {
					if _, err := os.Stat(fd.Path); err != nil {
						t.Errorf("staged file missing: %v", err)
					}
				}
			} else {
				if len(resp.Violations) == 0 {
					t.Fatal("expected violations in rejection body")
				}
				found := false
				for _, v := range resp.Violations {
					if v.Code == tt.wantCode {
						found = true
					}
				}
				if !found {
					t.Errorf("expected violation code %s, got %+v", tt.wantCode, resp.Violations)
				}
				if _, ok := f.selections.Get("w1"); ok {
					t.Error("rejected batch must not create a selection")
				}
			}

			// Either acceptance or rejection surfaces exactly one notification.
			if got := len(f.notifier.Active()); got != 1 {
				t.Errorf("expected 1 notification, got %d", got)
			}
		})
	}
}

func TestWidgetHandler_RejectionKeepsPriorSelection(t *testing.T) {
	f := newWidgetFixture(t, 1<<20)

	c, _ := f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"a.pdf", "one"}, {"b.pdf", "two"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, rec := f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"bad.txt", "nope"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	sel, ok := f.selections.Get("w1")
	if !ok || sel.Count() != 2 {
		t.Errorf("prior selection should survive a rejected batch, got %+v", sel)
	}
}

func TestWidgetHandler_ChooseReplacesWholesale(t *testing.T) {
	f := newWidgetFixture(t, 1<<20)

	c, _ := f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"a.pdf", "one"}, {"b.pdf", "two"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstSel, _ := f.selections.Get("w1")

	c, _ = f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"c.pdf", "three"}, {"d.pdf", "four"}, {"e.pdf", "five"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sel, _ := f.selections.Get("w1")
	if sel.Count() != 3 {
		t.Errorf("expected replacement selection of 3 files, got %d", sel.Count())
	}
	if sel.Files[0].Name != "c.pdf" {
		t.Errorf("expected new batch, got %s", sel.Files[0].Name)
	}

	// The first batch's staged copies are released on replacement.
	for _, fd := range firstSel.Files {
		if _, err := os.Stat(fd.Path); !os.IsNotExist(err) {
			t.Errorf("expected staged file %s to be removed", fd.Path)
		}
	}
}

// A batch replaced while the widget's request is in flight must stay on disk
// until the terminal event; the upload goroutine opens staged files lazily
// and may not have read them yet.
func TestWidgetHandler_ReselectionDuringActiveRequestRetiresBatch(t *testing.T) {
	activeWidgets := map[string]bool{}
	f := newWidgetFixtureWithActive(t, 1<<20, func(id string) bool { return activeWidgets[id] })

	c, _ := f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"a.pdf", "one"}, {"b.pdf", "two"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstSel, _ := f.selections.Get("w1")

	// The first batch is now being streamed by an in-flight request.
	activeWidgets["w1"] = true

	c, _ = f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"c.pdf", "three"}, {"d.pdf", "four"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, fd := range firstSel.Files {
		if _, err := os.Stat(fd.Path); err != nil {
			t.Errorf("in-flight batch file %s must survive re-selection: %v", fd.Name, err)
		}
	}

	// Failed/cancelled terminal: retired dirs go, the new selection stays.
	activeWidgets["w1"] = false
	f.handler.ReleaseRetired("w1")

	for _, fd := range firstSel.Files {
		if _, err := os.Stat(fd.Path); !os.IsNotExist(err) {
			t.Errorf("retired file %s should be removed after the terminal event", fd.Path)
		}
	}
	sel, ok := f.selections.Get("w1")
	if !ok || sel.Count() != 2 {
		t.Fatalf("replacement selection must survive, got %+v", sel)
	}
	for _, fd := range sel.Files {
		if _, err := os.Stat(fd.Path); err != nil {
			t.Errorf("replacement batch file %s missing: %v", fd.Name, err)
		}
	}
}

// Clearing during flight retires the batch the same way; a success terminal
// then releases both the consumed batch and anything retired.
func TestWidgetHandler_ClearDuringActiveRequestRetiresBatch(t *testing.T) {
	activeWidgets := map[string]bool{"w1": true}
	f := newWidgetFixtureWithActive(t, 1<<20, func(id string) bool { return activeWidgets[id] })

	c, _ := f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"a.pdf", "one"}, {"b.pdf", "two"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sel, _ := f.selections.Get("w1")

	req := httptest.NewRequest(http.MethodDelete, "/api/widgets/w1/files", nil)
	rec := httptest.NewRecorder()
	c = f.echo.NewContext(req, rec)
	c.SetParamNames("widgetId")
	c.SetParamValues("w1")
	if err := f.handler.HandleClearSelection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, fd := range sel.Files {
		if _, err := os.Stat(fd.Path); err != nil {
			t.Errorf("in-flight batch file %s must survive clear: %v", fd.Name, err)
		}
	}

	f.handler.ReleaseStaging("w1")
	for _, fd := range sel.Files {
		if _, err := os.Stat(fd.Path); !os.IsNotExist(err) {
			t.Errorf("file %s should be removed once the request finishes", fd.Path)
		}
	}
}

func TestWidgetHandler_UnknownTool(t *testing.T) {
	f := newWidgetFixture(t, 1<<20)
	c, _ := f.chooseRequest(t, "w1", "no-such-tool", []uploadPart{{"a.pdf", "one"}})

	err := f.handler.HandleChooseFiles(c)
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", apiErr.Status)
	}
}

func TestWidgetHandler_ClearSelection(t *testing.T) {
	f := newWidgetFixture(t, 1<<20)

	c, _ := f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"a.pdf", "one"}, {"b.pdf", "two"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sel, _ := f.selections.Get("w1")

	req := httptest.NewRequest(http.MethodDelete, "/api/widgets/w1/files", nil)
	rec := httptest.NewRecorder()
	c = f.echo.NewContext(req, rec)
	c.SetParamNames("widgetId")
	c.SetParamValues("w1")

	if err := f.handler.HandleClearSelection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, ok := f.selections.Get("w1"); ok {
		t.Error("expected selection to be cleared")
	}
	for _, fd := range sel.Files {
		if _, err := os.Stat(fd.Path); !os.IsNotExist(err) {
			t.Errorf("expected staged file %s to be removed", fd.Path)
		}
	}
}

func TestWidgetHandler_GetSelectionEmpty(t *testing.T) {
	f := newWidgetFixture(t, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/widgets/unknown/files", nil)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.SetParamNames("widgetId")
	c.SetParamValues("unknown")

	if err := f.handler.HandleGetSelection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp selectionResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 0 || len(resp.Files) != 0 {
		t.Errorf("expected empty selection, got %+v", resp)
	}
}

// Widgets never share state: choosing on one widget must not disturb another.
func TestWidgetHandler_WidgetsAreIndependent(t *testing.T) {
	f := newWidgetFixture(t, 1<<20)

	c, _ := f.chooseRequest(t, "w1", "merge-pdf", []uploadPart{{"a.pdf", "one"}, {"b.pdf", "two"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ = f.chooseRequest(t, "w2", "split-pdf", []uploadPart{{"c.pdf", "three"}})
	if err := f.handler.HandleChooseFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sel1, _ := f.selections.Get("w1")
	sel2, _ := f.selections.Get("w2")
	if sel1.Count() != 2 || sel2.Count() != 1 {
		t.Errorf("expected independent selections, got %d and %d", sel1.Count(), sel2.Count())
	}
}
