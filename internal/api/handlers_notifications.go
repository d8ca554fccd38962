// handlers_notifications.go - Notification stack handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/convertdesk/backend/internal/notify"
)

// NotificationHandlerImpl implements the NotificationHandler interface
type NotificationHandlerImpl struct {
	queue *notify.Queue
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(queue *notify.Queue) NotificationHandler {
	return &NotificationHandlerImpl{queue: queue}
}

// HandleList returns the live notifications, oldest first.
func (h *NotificationHandlerImpl) HandleList(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": h.queue.Active(),
	})
}

// HandleDismiss removes a notification ahead of its TTL. Dismissing an
// unknown ID succeeds; the expiry timer may have fired first.
func (h *NotificationHandlerImpl) HandleDismiss(c echo.Context) error {
	h.queue.Dismiss(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
