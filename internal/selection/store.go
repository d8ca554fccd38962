// Package selection holds the per-widget record of currently chosen files.
// It is the single source of truth for what a submission will carry.
package selection

import (
	"sync"
	"time"

	"github.com/convertdesk/backend/internal/models"
	"github.com/convertdesk/backend/internal/validate"
)

// Store manages selections keyed by widget identifier. Widgets never share
// state, so edits on different widgets cannot conflict; for the same widget
// the later write wins.
type Store struct {
	selections map[string]*models.Selection
	mu         sync.RWMutex
}

// NewStore creates an empty selection store.
func NewStore() *Store {
	return &Store{
		selections: make(map[string]*models.Selection),
	}
}

// Choose validates a candidate batch and, when clean, replaces the widget's
// selection wholesale. On any violation the whole batch is rejected and the
// prior selection, if any, is left untouched — there is no partial
// acceptance.
func (s *Store) Choose(widgetID string, files []models.FileDescriptor, acceptSpec string, maxBytes int64) (*models.Selection, []validate.Violation) {
	if violations := validate.CheckBatch(files, acceptSpec, maxBytes); len(violations) > 0 {
		return nil, violations
	}

	sel := &models.Selection{
		WidgetID: widgetID,
		Files:    append([]models.FileDescriptor(nil), files...),
		ChosenAt: time.Now(),
	}

	s.mu.Lock()
	s.selections[widgetID] = sel
	s.mu.Unlock()

	return snapshot(sel), nil
}

// Get returns a snapshot of the widget's selection, or false when the widget
// has none.
func (s *Store) Get(widgetID string) (*models.Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sel, ok := s.selections[widgetID]
	if !ok {
		return nil, false
	}
	return snapshot(sel), true
}

// Count returns the number of files currently selected for the widget.
func (s *Store) Count(widgetID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selections[widgetID].Count()
}

// Clear removes the widget's selection. Returns true when a selection
// existed. Clearing a widget with no selection is a no-op.
func (s *Store) Clear(widgetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.selections[widgetID]
	delete(s.selections, widgetID)
	return ok
}

// WidgetIDs lists every widget that currently holds a selection.
func (s *Store) WidgetIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.selections))
	for id := range s.selections {
		ids = append(ids, id)
	}
	return ids
}

// snapshot copies a selection so callers can never mutate stored state.
func snapshot(sel *models.Selection) *models.Selection {
	cp := *sel
	cp.Files = append([]models.FileDescriptor(nil), sel.Files...)
	return &cp
}
