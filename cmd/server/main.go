package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/convertdesk/backend/internal/api"
	"github.com/convertdesk/backend/internal/config"
	"github.com/convertdesk/backend/internal/history"
	"github.com/convertdesk/backend/internal/models"
	"github.com/convertdesk/backend/internal/notify"
	"github.com/convertdesk/backend/internal/request"
	"github.com/convertdesk/backend/internal/resolve"
	"github.com/convertdesk/backend/internal/selection"
	"github.com/convertdesk/backend/internal/tools"
	"github.com/convertdesk/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Resolve config relative to the executable so double-clicking works.
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "convertdesk.yaml")
	if env := os.Getenv("CONVERTDESK_CONFIG"); env != "" {
		configPath = env
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	catalog, err := tools.Load()
	if err != nil {
		fmt.Printf("Failed to load tool catalog: %v\n", err)
		os.Exit(1)
	}

	// History is optional: a broken store disables the dashboard, not the
	// orchestrator.
	var historyStore *history.Store
	if store, err := history.NewStore(cfg.Storage.HistoryDirectory, cfg.Advanced.DuckDBThreads); err != nil {
		fmt.Printf("Warning: history store unavailable: %v\n", err)
	} else {
		historyStore = store
		defer historyStore.Close()
	}

	selections := selection.NewStore()
	notifier := notify.NewQueue(cfg.NotificationTTL())
	defer notifier.Shutdown()
	resolver := resolve.New(cfg.Storage.DownloadsDirectory)

	var recorder request.Recorder
	if historyStore != nil {
		recorder = historyStore
	}
	manager := request.NewManager(selections, notifier, resolver, request.Options{
		BaseURL:    cfg.Converter.BaseURL,
		FloorDelay: cfg.FloorDelay(),
		Recorder:   recorder,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Catalog:    catalog,
		Selections: selections,
		Notifier:   notifier,
		Manager:    manager,
		History:    historyStore,
		Config:     cfg,
		Version:    Version,
	})
	wsHandler := api.NewWebSocketHandler(manager, notifier)

	// A successful conversion consumes the selection; release its staged
	// copies once the terminal event lands. Other terminal outcomes keep the
	// selection for a retry, so only batches retired mid-flight are removed.
	go func() {
		events, cancel := manager.Subscribe()
		defer cancel()
		for evt := range events {
			if evt.Type != request.EventTerminal {
				continue
			}
			if evt.State.Status == models.StatusSucceeded {
				handlers.Widgets.ReleaseStaging(evt.State.WidgetID)
			} else {
				handlers.Widgets.ReleaseRetired(evt.State.WidgetID)
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, cfg)
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, wsHandler)

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			fmt.Println("Serving embedded frontend from binary")
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	mode := "Development"
	if embeddedMode {
		mode = "Air-Gapped (Embedded)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           ConvertDesk Gateway                             ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Converter: %-46s║\n", cfg.Converter.BaseURL)
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	e.Logger.Fatal(e.StartServer(s))
}
