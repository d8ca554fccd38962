// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/convertdesk/backend/internal/config"
	"github.com/convertdesk/backend/internal/history"
	"github.com/convertdesk/backend/internal/notify"
	"github.com/convertdesk/backend/internal/request"
	"github.com/convertdesk/backend/internal/selection"
	"github.com/convertdesk/backend/internal/tools"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Catalog    *tools.Catalog
	Selections *selection.Store
	Notifier   *notify.Queue
	Manager    *request.Manager
	History    *history.Store
	Config     *config.AppConfig
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health        HealthHandler
	Widgets       WidgetHandler
	Convert       ConvertHandler
	Tools         ToolsHandler
	Notifications NotificationHandler
	History       HistoryHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	active := func(widgetID string) bool {
		state := deps.Manager.Status()
		return state.WidgetID == widgetID && state.Status.Active()
	}
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Config.Converter.BaseURL),
		Widgets: NewWidgetHandler(deps.Selections, deps.Notifier, deps.Catalog,
			deps.Config.Storage.StagingDirectory, deps.Config.MaxUploadBytes(), active),
		Convert:       NewConvertHandler(deps.Manager, deps.Catalog),
		Tools:         NewToolsHandler(deps.Catalog),
		Notifications: NewNotificationHandler(deps.Notifier),
		History:       NewHistoryHandler(deps.History),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Per-widget selection routes
	widgetGroup := e.Group("/api/widgets")
	widgetGroup.POST("/:widgetId/files", handlers.Widgets.HandleChooseFiles)
	widgetGroup.GET("/:widgetId/files", handlers.Widgets.HandleGetSelection)
	widgetGroup.DELETE("/:widgetId/files", handlers.Widgets.HandleClearSelection)

	// Conversion request routes
	convertGroup := e.Group("/api/convert")
	convertGroup.POST("", handlers.Convert.HandleSubmit)
	convertGroup.POST("/cancel", handlers.Convert.HandleCancel)
	convertGroup.GET("/status", handlers.Convert.HandleStatus)

	// Tool catalog routes
	e.GET("/api/tools", handlers.Tools.HandleListTools)
	e.GET("/api/tools/:toolId", handlers.Tools.HandleGetTool)

	// Notification routes
	e.GET("/api/notifications", handlers.Notifications.HandleList)
	e.DELETE("/api/notifications/:id", handlers.Notifications.HandleDismiss)

	// History and stats routes
	e.GET("/api/history", handlers.History.HandleGetHistory)
	e.GET("/api/history/export", handlers.History.HandleExportHistory)
	e.GET("/api/stats", handlers.History.HandleStats)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, wsHandler *WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			// Status polls and the websocket would drown the log.
			return strings.HasSuffix(path, "/status") || path == "/ws" || path == "/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
