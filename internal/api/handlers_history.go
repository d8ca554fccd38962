// handlers_history.go - Conversion history and stats handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/convertdesk/backend/internal/history"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	store *history.Store
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(store *history.Store) HistoryHandler {
	return &HistoryHandlerImpl{store: store}
}

// HandleGetHistory returns recent conversion records, newest first.
func (h *HistoryHandlerImpl) HandleGetHistory(c echo.Context) error {
	if h.store == nil {
		return NewServiceUnavailableError("history store is not available")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.store.Recent(limit)
	if err != nil {
		return NewInternalError("failed to load history", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// HandleExportHistory streams the recent records as one MessagePack blob.
// Binary encoding keeps large exports a fraction of the JSON size.
func (h *HistoryHandlerImpl) HandleExportHistory(c echo.Context) error {
	if h.store == nil {
		return NewServiceUnavailableError("history store is not available")
	}

	limit := 1000
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.store.Recent(limit)
	if err != nil {
		return NewInternalError("failed to load history", err)
	}

	data, err := msgpack.Marshal(records)
	if err != nil {
		return NewInternalError("failed to encode history", err)
	}

	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// HandleStats returns aggregate counters across all stored conversions.
func (h *HistoryHandlerImpl) HandleStats(c echo.Context) error {
	if h.store == nil {
		return NewServiceUnavailableError("history store is not available")
	}

	stats, err := h.store.Stats()
	if err != nil {
		return NewInternalError("failed to compute stats", err)
	}

	return c.JSON(http.StatusOK, stats)
}
