package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Frames      int
	Seed        int64
	ShowVersion bool
	Validate    bool
}

func parseFlags(args []string, output io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(output)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("FRAMERING_CONFIG", ""),
		"Path to a JSON or YAML configuration file; empty uses defaults (env: FRAMERING_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("FRAMERING_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: FRAMERING_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("FRAMERING_LOG_FORMAT", "text"),
		"Log format: json, text (env: FRAMERING_LOG_FORMAT)")

	fs.IntVar(&cfg.Frames, "frames", -1,
		"Frames to simulate, overriding the configuration; -1 keeps it")

	fs.Int64Var(&cfg.Seed, "seed", getEnvInt64("FRAMERING_SEED", 0),
		"Random seed, overriding the configuration; 0 keeps it (env: FRAMERING_SEED)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs, output)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Frames < -1 {
		return fmt.Errorf("invalid frame count: %d", cfg.Frames)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - per-frame trail simulation over unmanaged circular buffers

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run with defaults
  %s

  # Run a YAML config with debug logging
  %s --config=configs/trailsim.yaml --log-level=debug

  # Override configuration through the environment
  export FRAMERING_ALLOCATOR_KIND=mmap
  export FRAMERING_METRICS_ENABLED=true
  %s --frames=5000

  # Validate configuration only
  %s --config=configs/trailsim.yaml --validate

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
