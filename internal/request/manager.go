// Package request owns the single in-flight conversion submission: the
// Idle -> Uploading -> Processing -> terminal state machine, progress
// reporting, cooperative cancellation, and terminal outcome dispatch.
package request

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convertdesk/backend/internal/classify"
	"github.com/convertdesk/backend/internal/models"
	"github.com/convertdesk/backend/internal/notify"
	"github.com/convertdesk/backend/internal/resolve"
	"github.com/convertdesk/backend/internal/selection"
)

// Submission precondition and state errors.
var (
	ErrRequestActive = errors.New("a conversion request is already in flight")
	ErrNoSelection   = errors.New("no files selected")
	ErrTooFewFiles   = errors.New("more files needed")
	ErrNotActive     = errors.New("no active request to cancel")
)

// Event types published to subscribers.
const (
	EventProgress = "progress"
	EventTerminal = "terminal"
)

// Event is one observable change of the live request.
type Event struct {
	Type  string              `json:"type"`
	State models.RequestState `json:"state"`
}

// Recorder persists finished conversions. Implemented by the history store.
type Recorder interface {
	Record(rec models.ConversionRecord) error
}

// eventBuffer bounds each subscriber channel; slow subscribers drop events
// rather than stall the request goroutine.
const eventBuffer = 64

// Manager enforces the one-active-request invariant. It is the only mutator
// of the request slot; everything else observes it through Status and
// Subscribe.
type Manager struct {
	selections *selection.Store
	notifier   *notify.Queue
	resolver   *resolve.Resolver
	recorder   Recorder
	client     *http.Client
	baseURL    string
	floor      time.Duration

	mu          sync.Mutex
	current     *models.RequestState
	cancelFunc  context.CancelFunc
	last        *models.RequestState
	lastPercent int

	subMu sync.RWMutex
	subs  map[chan Event]struct{}
}

// Options configures a Manager.
type Options struct {
	BaseURL    string
	FloorDelay time.Duration
	Client     *http.Client // defaults to a client with no fixed timeout
	Recorder   Recorder     // optional
}

// NewManager creates a request lifecycle manager.
func NewManager(selections *selection.Store, notifier *notify.Queue, resolver *resolve.Resolver, opts Options) *Manager {
	client := opts.Client
	if client == nil {
		// No fixed timeout; cancellation and hang protection come from the
		// request context.
		client = &http.Client{Timeout: 0}
	}
	floor := opts.FloorDelay
	if floor <= 0 {
		floor = 150 * time.Millisecond
	}
	return &Manager{
		selections: selections,
		notifier:   notifier,
		resolver:   resolver,
		recorder:   opts.Recorder,
		client:     client,
		baseURL:    opts.BaseURL,
		floor:      floor,
		subs:       make(map[chan Event]struct{}),
	}
}

// Submit starts a conversion for the widget's current selection. The result
// is delivered through events and notifications, not a return value. While a
// request is active, further submits are rejected with ErrRequestActive; the
// conversion endpoint is stateful per call and the UI has a single progress
// surface.
func (m *Manager) Submit(widgetID, endpoint string, tool models.ToolDescriptor) (*models.RequestState, error) {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return nil, ErrRequestActive
	}

	sel, ok := m.selections.Get(widgetID)
	if !ok || sel.Count() == 0 {
		m.mu.Unlock()
		m.notifier.Push(models.NotifyWarning, "No files selected",
			classify.Escape(fmt.Sprintf("Choose files for %s before converting.", tool.ToolName)))
		return nil, ErrNoSelection
	}

	if tool.MinFiles > 0 && sel.Count() < tool.MinFiles {
		m.mu.Unlock()
		m.notifier.Push(models.NotifyWarning, "More files needed",
			classify.Escape(fmt.Sprintf("%s needs at least %d files; %d selected.",
				tool.ToolName, tool.MinFiles, sel.Count())))
		return nil, fmt.Errorf("%s needs at least %d files: %w", tool.ToolName, tool.MinFiles, ErrTooFewFiles)
	}

	state := models.NewRequestState(uuid.New().String(), widgetID, tool)
	ctx, cancel := context.WithCancel(context.Background())
	m.current = state
	m.cancelFunc = cancel
	m.lastPercent = -1
	snapshot := *state
	m.mu.Unlock()

	fmt.Printf("[Request %s] Submitting %d file(s) to %s\n", state.ID[:8], sel.Count(), endpoint)
	go m.run(ctx, snapshot, sel, endpoint, tool)

	return &snapshot, nil
}

// Cancel aborts the in-flight request. Valid only while the request is
// uploading or processing; cancelling while idle returns ErrNotActive.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.current.Status.Active() {
		return ErrNotActive
	}

	fmt.Printf("[Request %s] Cancel requested\n", m.current.ID[:8])
	m.cancelFunc()
	return nil
}

// Status returns the live request, or the most recent terminal state, or an
// idle placeholder when nothing has run yet.
func (m *Manager) Status() models.RequestState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return *m.current
	}
	if m.last != nil {
		return *m.last
	}
	return models.RequestState{Status: models.StatusIdle, ProgressPercent: 0}
}

// Busy reports whether a request is currently active.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Subscribe registers a listener for request events. The returned cancel
// function releases the channel.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.subMu.Unlock()
	}
	return ch, cancel
}

func (m *Manager) publish(evt Event) {
	m.subMu.RLock()
	for ch := range m.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	m.subMu.RUnlock()
}

// run drives one submission to its terminal state. Exactly one terminal
// event fires per request, after the floor delay has elapsed.
func (m *Manager) run(ctx context.Context, state models.RequestState, sel *models.Selection, endpoint string, tool models.ToolDescriptor) {
	outcome := m.perform(ctx, state, sel, endpoint, tool)

	// Hold the terminal outcome back until the progress UI has been visible
	// for the floor duration; a 1 ms response must not flicker.
	m.waitFloor(state.StartedAt)

	now := time.Now()
	state.CompletedAt = &now
	state.Status = outcome.status
	state.Message = outcome.notification.Body
	state.ArtifactName = outcome.artifactName
	if outcome.status == models.StatusSucceeded {
		state.ProgressPercent = 100
	}

	m.mu.Lock()
	// Consume the selection before the slot frees up, so a submit racing in
	// right after the terminal transition can never see the stale batch.
	// Failed and cancelled requests keep the selection so the user can retry
	// without reselecting.
	if outcome.status == models.StatusSucceeded {
		m.selections.Clear(state.WidgetID)
	}
	m.current = nil
	m.cancelFunc = nil
	m.last = &state
	m.mu.Unlock()

	m.notifier.Push(outcome.notification.Kind, outcome.notification.Title, outcome.notification.Body)
	m.publish(Event{Type: EventTerminal, State: state})
	m.record(state, sel, outcome)

	fmt.Printf("[Request %s] Finished: %s\n", state.ID[:8], state.Status)
}

// outcome is the terminal resolution of one submission.
type outcome struct {
	status       models.RequestStatus
	notification models.Notification
	artifactName string
	artifactSize int64
}

func (m *Manager) perform(ctx context.Context, state models.RequestState, sel *models.Selection, endpoint string, tool models.ToolDescriptor) outcome {
	resp, err := m.upload(ctx, state.ID, sel, endpoint, tool)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{status: models.StatusCancelled, notification: classify.Cancelled(tool.ToolName)}
		}
		return outcome{status: models.StatusFailed, notification: classify.TransportFailure(err)}
	}
	defer resp.Body.Close()

	body, readErr := readBody(resp)
	if readErr != nil {
		if ctx.Err() != nil {
			return outcome{status: models.StatusCancelled, notification: classify.Cancelled(tool.ToolName)}
		}
		return outcome{status: models.StatusFailed, notification: classify.TransportFailure(readErr)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return outcome{
			status:       models.StatusFailed,
			notification: classify.ServerFailure(body, resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	name := m.resolver.Filename(resp.Header, tool.ToolID, sel.Files[0].Name)
	if path, err := m.resolver.Persist(body, name); err != nil {
		// Persist is fire-and-forget: a failure here is indistinguishable
		// from the user cancelling the download dialog, so it is logged and
		// never surfaced as an error.
		fmt.Printf("[Request %s] WARNING: failed to persist artifact %s: %v\n", state.ID[:8], name, err)
	} else {
		fmt.Printf("[Request %s] Artifact saved: %s\n", state.ID[:8], path)
	}

	return outcome{
		status: models.StatusSucceeded,
		notification: models.Notification{
			Kind:  models.NotifySuccess,
			Title: "Conversion complete",
			Body:  classify.Escape(fmt.Sprintf("Saved %s", name)),
		},
		artifactName: name,
		artifactSize: int64(len(body)),
	}
}

// setProgress updates the determinate upload percentage. Only the Uploading
// phase has determinate progress, and published values never decrease.
func (m *Manager) setProgress(requestID string, percent int) {
	m.mu.Lock()
	if m.current == nil || m.current.ID != requestID || m.current.Status != models.StatusUploading {
		m.mu.Unlock()
		return
	}
	if percent <= m.lastPercent {
		m.mu.Unlock()
		return
	}
	m.lastPercent = percent
	m.current.ProgressPercent = float64(percent)
	snapshot := *m.current
	m.mu.Unlock()

	m.publish(Event{Type: EventProgress, State: snapshot})
}

// markProcessing transitions Uploading -> Processing once the upload bytes
// are fully sent. Progress is indeterminate from here on.
func (m *Manager) markProcessing(requestID string) {
	m.mu.Lock()
	if m.current == nil || m.current.ID != requestID || m.current.Status != models.StatusUploading {
		m.mu.Unlock()
		return
	}
	m.current.Status = models.StatusProcessing
	m.current.ProgressPercent = models.ProgressIndeterminate
	m.current.Message = "Converting..."
	snapshot := *m.current
	m.mu.Unlock()

	m.publish(Event{Type: EventProgress, State: snapshot})
}

// waitFloor blocks until at least the floor delay has passed since start.
func (m *Manager) waitFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < m.floor {
		time.Sleep(m.floor - elapsed)
	}
}

func (m *Manager) record(state models.RequestState, sel *models.Selection, out outcome) {
	if m.recorder == nil {
		return
	}

	rec := models.ConversionRecord{
		ID:            state.ID,
		WidgetID:      state.WidgetID,
		ToolID:        state.ToolID,
		ToolName:      state.ToolName,
		Status:        state.Status,
		FileCount:     sel.Count(),
		InputBytes:    sel.TotalBytes(),
		ArtifactName:  out.artifactName,
		ArtifactBytes: out.artifactSize,
		DurationMs:    time.Since(state.StartedAt).Milliseconds(),
		CreatedAt:     state.StartedAt,
	}
	if state.Status == models.StatusFailed {
		rec.Error = out.notification.Body
	}

	if err := m.recorder.Record(rec); err != nil {
		fmt.Printf("[Request %s] WARNING: failed to record history: %v\n", state.ID[:8], err)
	}
}
