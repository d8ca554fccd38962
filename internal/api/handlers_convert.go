// handlers_convert.go - Conversion request lifecycle handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/convertdesk/backend/internal/request"
	"github.com/convertdesk/backend/internal/tools"
)

// ConvertHandlerImpl implements the ConvertHandler interface
type ConvertHandlerImpl struct {
	manager *request.Manager
	catalog *tools.Catalog
}

// NewConvertHandler creates a new conversion handler
func NewConvertHandler(manager *request.Manager, catalog *tools.Catalog) ConvertHandler {
	return &ConvertHandlerImpl{manager: manager, catalog: catalog}
}

// reservedFormFields are submission metadata, not tool options.
var reservedFormFields = map[string]bool{
	"widgetId": true,
	"toolId":   true,
}

// HandleSubmit starts a conversion for the widget's current selection. The
// request body carries widgetId, toolId and any tool option values as form
// fields; progress and the terminal outcome are pushed over the websocket.
func (h *ConvertHandlerImpl) HandleSubmit(c echo.Context) error {
	widgetID := c.FormValue("widgetId")
	if widgetID == "" {
		return NewValidationError("widgetId")
	}
	toolID := c.FormValue("toolId")
	if toolID == "" {
		return NewValidationError("toolId")
	}

	tool, ok := h.catalog.Find(toolID)
	if !ok {
		return NewNotFoundError("tool", toolID)
	}

	options := make(map[string]string)
	if params, err := c.FormParams(); err == nil {
		for name, values := range params {
			if reservedFormFields[name] || len(values) == 0 {
				continue
			}
			options[name] = values[0]
		}
	}

	descriptor, _ := h.catalog.Descriptor(toolID, options)

	state, err := h.manager.Submit(widgetID, tool.Endpoint, descriptor)
	if err != nil {
		switch {
		case errors.Is(err, request.ErrRequestActive):
			return NewRequestActiveError()
		case errors.Is(err, request.ErrNoSelection):
			return NewBadRequestError("no files selected for widget "+widgetID, nil)
		case errors.Is(err, request.ErrTooFewFiles):
			return NewBadRequestError(err.Error(), nil)
		default:
			return NewInternalError("failed to start conversion", err)
		}
	}

	return c.JSON(http.StatusAccepted, state)
}

// HandleCancel aborts the in-flight request. Cancelling while idle is a
// conflict, not a no-op, so the client learns its view of the state is stale.
func (h *ConvertHandlerImpl) HandleCancel(c echo.Context) error {
	if err := h.manager.Cancel(); err != nil {
		return NewConflictError("no active request to cancel")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// HandleStatus returns the live request, or the most recent terminal state.
func (h *ConvertHandlerImpl) HandleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Status())
}
