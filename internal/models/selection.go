package models

import "time"

// Selection is the current batch of chosen files for one widget. A widget
// has at most one Selection at a time; a new choice replaces it wholesale.
type Selection struct {
	WidgetID string           `json:"widgetId"`
	Files    []FileDescriptor `json:"files"`
	ChosenAt time.Time        `json:"chosenAt"`
}

// Count returns the number of files in the selection.
func (s *Selection) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Files)
}

// TotalBytes returns the combined size of all files in the selection.
func (s *Selection) TotalBytes() int64 {
	var total int64
	for _, f := range s.Files {
		total += f.SizeBytes
	}
	return total
}
