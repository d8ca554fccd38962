// handlers_tools.go - Tool catalog handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/convertdesk/backend/internal/tools"
)

// ToolsHandlerImpl implements the ToolsHandler interface
type ToolsHandlerImpl struct {
	catalog *tools.Catalog
}

// NewToolsHandler creates a new tool catalog handler
func NewToolsHandler(catalog *tools.Catalog) ToolsHandler {
	return &ToolsHandlerImpl{catalog: catalog}
}

// HandleListTools returns every category with its tools. The front end
// renders one widget per tool from this payload.
func (h *ToolsHandlerImpl) HandleListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog)
}

// HandleGetTool returns one tool with its effective constraints.
func (h *ToolsHandlerImpl) HandleGetTool(c echo.Context) error {
	toolID := c.Param("toolId")

	tool, ok := h.catalog.Find(toolID)
	if !ok {
		return NewNotFoundError("tool", toolID)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tool":      tool,
		"inputMode": tools.InputMode(tool),
		"minFiles":  tools.MinimumFiles(tool),
	})
}
