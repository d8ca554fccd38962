// handlers_tools_test.go - Tests for tool catalog handlers
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertdesk/backend/internal/tools"
)

func newToolsHandler(t *testing.T) ToolsHandler {
	t.Helper()
	catalog, err := tools.Load()
	require.NoError(t, err)
	return NewToolsHandler(catalog)
}

func TestToolsHandler_HandleListTools(t *testing.T) {
	h := newToolsHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.HandleListTools(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Categories []struct {
			ID    string `json:"id"`
			Tools []struct {
				ID       string `json:"id"`
				Endpoint string `json:"endpoint"`
			} `json:"tools"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Categories)

	ids := make(map[string]bool)
	for _, cat := range resp.Categories {
		for _, tool := range cat.Tools {
			ids[tool.ID] = true
			assert.NotEmpty(t, tool.Endpoint, "tool %s has no endpoint", tool.ID)
		}
	}
	assert.True(t, ids["merge-pdf"])
	assert.True(t, ids["pdf-to-word"])
}

func TestToolsHandler_HandleGetTool(t *testing.T) {
	h := newToolsHandler(t)
	e := echo.New()

	t.Run("known tool includes effective constraints", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tools/merge-pdf", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("toolId")
		c.SetParamValues("merge-pdf")

		require.NoError(t, h.HandleGetTool(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			InputMode string `json:"inputMode"`
			MinFiles  int    `json:"minFiles"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "multiple", resp.InputMode)
		assert.Equal(t, 2, resp.MinFiles)
	})

	t.Run("unknown tool is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tools/nope", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("toolId")
		c.SetParamValues("nope")

		err := h.HandleGetTool(c)
		apiErr, ok := err.(*APIError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})
}
