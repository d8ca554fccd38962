package models

import "time"

// ConversionRecord is the persisted outcome of one finished request.
type ConversionRecord struct {
	ID            string        `json:"id"`
	WidgetID      string        `json:"widgetId"`
	ToolID        string        `json:"toolId"`
	ToolName      string        `json:"toolName"`
	Status        RequestStatus `json:"status"`
	FileCount     int           `json:"fileCount"`
	InputBytes    int64         `json:"inputBytes"`
	ArtifactName  string        `json:"artifactName,omitempty"`
	ArtifactBytes int64         `json:"artifactBytes,omitempty"`
	Error         string        `json:"error,omitempty"`
	DurationMs    int64         `json:"durationMs"`
	CreatedAt     time.Time     `json:"createdAt"`
}
