// Package config provides YAML-based configuration for the gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Converter ConverterConfig `yaml:"converter"`
	Limits    LimitsConfig    `yaml:"limits"`
	Storage   StorageConfig   `yaml:"storage"`
	Advanced  AdvancedConfig  `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCors"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// ConverterConfig describes the remote conversion service.
type ConverterConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	RequestTimeout int    `yaml:"requestTimeoutSeconds"` // 0 means no fixed timeout; cancellation is context-driven
}

// LimitsConfig holds the orchestrator constants. These are set once at
// initialization, never per call.
type LimitsConfig struct {
	MaxUploadSize     string `yaml:"maxUploadSize"`     // human-readable, e.g. "500M"
	FloorDelayMs      int    `yaml:"floorDelayMs"`      // minimum visible progress duration
	NotificationTTLMs int    `yaml:"notificationTtlMs"` // default notification lifetime
}

// StorageConfig contains directory layout settings.
type StorageConfig struct {
	DataDirectory      string `yaml:"dataDirectory"`
	StagingDirectory   string `yaml:"stagingDirectory"`
	DownloadsDirectory string `yaml:"downloadsDirectory"`
	HistoryDirectory   string `yaml:"historyDirectory"`
}

// AdvancedConfig contains tuning options.
type AdvancedConfig struct {
	EnableRequestLogging bool `yaml:"enableRequestLogging"`
	DuckDBThreads        int  `yaml:"duckdbThreads"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "127.0.0.1",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Converter: ConverterConfig{
			BaseURL:        "http://localhost:5000",
			RequestTimeout: 0,
		},
		Limits: LimitsConfig{
			MaxUploadSize:     "500M",
			FloorDelayMs:      150,
			NotificationTTLMs: 5000,
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			StagingDirectory:   "./data/staging",
			DownloadsDirectory: "./data/downloads",
			HistoryDirectory:   "./data/history",
		},
		Advanced: AdvancedConfig{
			EnableRequestLogging: true,
			DuckDBThreads:        2,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is
// replaced with the written-out defaults so operators always have a file to
// edit.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# ConvertDesk gateway configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if baseURL := os.Getenv("CONVERTER_URL"); baseURL != "" {
		c.Converter.BaseURL = baseURL
	}
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	for _, dir := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.StagingDirectory,
		&c.Storage.DownloadsDirectory,
		&c.Storage.HistoryDirectory,
	} {
		if !filepath.IsAbs(*dir) {
			*dir = filepath.Join(configDir, *dir)
		}
	}
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MaxUploadBytes returns the configured upload cap in bytes.
func (c *AppConfig) MaxUploadBytes() int64 {
	n, err := ParseSize(c.Limits.MaxUploadSize)
	if err != nil {
		return 500 << 20
	}
	return n
}

// FloorDelay returns the minimum visible progress duration.
func (c *AppConfig) FloorDelay() time.Duration {
	if c.Limits.FloorDelayMs <= 0 {
		return 150 * time.Millisecond
	}
	return time.Duration(c.Limits.FloorDelayMs) * time.Millisecond
}

// NotificationTTL returns the default notification lifetime.
func (c *AppConfig) NotificationTTL() time.Duration {
	if c.Limits.NotificationTTLMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Limits.NotificationTTLMs) * time.Millisecond
}

// EnsureDirectories creates all necessary directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.StagingDirectory,
		c.Storage.DownloadsDirectory,
		c.Storage.HistoryDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ParseSize parses a human-readable size string ("500M", "2G", "64K",
// "1024") into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "G")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return n * multiplier, nil
}
