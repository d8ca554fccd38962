package models

import "time"

// RequestStatus represents the status of a conversion request.
type RequestStatus string

const (
	StatusIdle       RequestStatus = "idle"
	StatusUploading  RequestStatus = "uploading"
	StatusProcessing RequestStatus = "processing"
	StatusSucceeded  RequestStatus = "succeeded"
	StatusFailed     RequestStatus = "failed"
	StatusCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether the status ends a request's lifecycle.
func (s RequestStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Active reports whether a request in this status may still be cancelled.
func (s RequestStatus) Active() bool {
	return s == StatusUploading || s == StatusProcessing
}

// ProgressIndeterminate marks progress with no known completion percentage.
const ProgressIndeterminate = -1.0

// RequestState is the single live conversion request. At most one instance
// may be uploading or processing system-wide.
type RequestState struct {
	ID              string        `json:"id"`
	WidgetID        string        `json:"widgetId"`
	ToolID          string        `json:"toolId"`
	ToolName        string        `json:"toolName"`
	Status          RequestStatus `json:"status"`
	ProgressPercent float64       `json:"progressPercent"` // 0-100, -1 when indeterminate
	Message         string        `json:"message,omitempty"`
	ArtifactName    string        `json:"artifactName,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

// NewRequestState creates a RequestState in uploading status.
func NewRequestState(id, widgetID string, tool ToolDescriptor) *RequestState {
	return &RequestState{
		ID:              id,
		WidgetID:        widgetID,
		ToolID:          tool.ToolID,
		ToolName:        tool.ToolName,
		Status:          StatusUploading,
		ProgressPercent: 0,
		StartedAt:       time.Now(),
	}
}
