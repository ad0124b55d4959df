package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/launchcraft/internal/config"
)

// Config holds everything an App instance needs for one launch run. CLI
// flags populate it; file-level settings fill the gaps in NewApp.
type Config struct {
	VersionID   string
	InstallRoot string
	ConfigPath  string
	GameDir     string
	Workers     int
	Features    map[string]bool
	Username    string
	UUID        string
	Demo        bool
	Server      string
	Port        int
	DryRun      bool
	LogFormat   string
	LogLevel    string
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	file     *config.File
	features map[string]bool
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. Logs go to errW so
// that stdout stays clean for the produced launch spec.
func NewApp(outW, errW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	logger.Debug("Logger configured successfully.")

	fileCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Launcher configuration loaded.", "path", cfg.ConfigPath)

	features, err := fileCfg.FeatureMap()
	if err != nil {
		panic(fmt.Errorf("invalid feature flags in configuration: %w", err))
	}
	for name, enabled := range cfg.Features {
		features[name] = enabled
	}
	if cfg.Demo {
		features["is_demo_user"] = true
	}
	if fileCfg.Resolution != nil {
		features["has_custom_resolution"] = true
	}

	if cfg.InstallRoot == "" {
		cfg.InstallRoot = fileCfg.InstallRoot
	}
	if cfg.InstallRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Errorf("cannot determine home directory for default install root: %w", err))
		}
		cfg.InstallRoot = filepath.Join(home, ".launchcraft")
	}
	if cfg.GameDir == "" {
		cfg.GameDir = cfg.InstallRoot
	}
	if cfg.Workers == 0 {
		cfg.Workers = fileCfg.Workers
	}

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		file:     fileCfg,
		features: features,
	}
}
