// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// WidgetHandler handles per-widget file selection operations
type WidgetHandler interface {
	HandleChooseFiles(c echo.Context) error
	HandleGetSelection(c echo.Context) error
	HandleClearSelection(c echo.Context) error
	ReleaseStaging(widgetID string)
	ReleaseRetired(widgetID string)
}

// ConvertHandler handles the conversion request lifecycle
type ConvertHandler interface {
	HandleSubmit(c echo.Context) error
	HandleCancel(c echo.Context) error
	HandleStatus(c echo.Context) error
}

// ToolsHandler serves the tool catalog
type ToolsHandler interface {
	HandleListTools(c echo.Context) error
	HandleGetTool(c echo.Context) error
}

// NotificationHandler exposes the active notification stack
type NotificationHandler interface {
	HandleList(c echo.Context) error
	HandleDismiss(c echo.Context) error
}

// HistoryHandler serves stored conversion records and aggregate stats
type HistoryHandler interface {
	HandleGetHistory(c echo.Context) error
	HandleExportHistory(c echo.Context) error
	HandleStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
