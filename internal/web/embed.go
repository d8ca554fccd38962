// Package web embeds the browser shell so the gateway ships as a single
// binary with no external frontend build step at runtime.
package web

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var shellFiles embed.FS

// ShellFS returns the embedded filesystem rooted at the shell's dist folder.
func ShellFS() (fs.FS, error) {
	return fs.Sub(shellFiles, "dist")
}

// HasEmbeddedFiles reports whether a shell was embedded at build time. The
// gateway runs headless (API only) when it was not.
func HasEmbeddedFiles() bool {
	shell, err := ShellFS()
	if err != nil {
		return false
	}
	if _, err := fs.Stat(shell, "index.html"); err != nil {
		return false
	}
	return true
}

// RegisterStaticRoutes serves the shell on every route the API does not
// claim. Unknown paths fall back to index.html; the shell owns client-side
// navigation. Register API routes first.
func RegisterStaticRoutes(e *echo.Echo) error {
	shell, err := ShellFS()
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(shell))

	e.GET("/*", func(c echo.Context) error {
		name := strings.TrimPrefix(path.Clean(c.Request().URL.Path), "/")
		if name == "" || name == "." {
			return serveShellIndex(c, shell)
		}

		info, err := fs.Stat(shell, name)
		if err != nil || info.IsDir() {
			return serveShellIndex(c, shell)
		}

		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}

// serveShellIndex writes index.html for the shell's client-side routes.
func serveShellIndex(c echo.Context, shell fs.FS) error {
	index, err := shell.Open("index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	defer index.Close()

	content, err := io.ReadAll(index)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read index.html")
	}
	return c.HTMLBlob(http.StatusOK, content)
}
