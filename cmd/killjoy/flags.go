package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	HealthPort      int
	MetricsPort     int
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
	PrintConfigPath bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("KILLJOY_CONFIG", ""),
		"Path to settings file, empty for XDG search (env: KILLJOY_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("KILLJOY_CONFIG", ""),
		"Path to settings file, empty for XDG search (env: KILLJOY_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("KILLJOY_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: KILLJOY_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("KILLJOY_LOG_FORMAT", "text"),
		"Log format: json, text (env: KILLJOY_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("KILLJOY_DEBUG", false),
		"Enable debug mode (env: KILLJOY_DEBUG)")

	flag.IntVar(&cfg.HealthPort, "health-port",
		getEnvInt("KILLJOY_HEALTH_PORT", 0),
		"Health check port, 0 to disable (env: KILLJOY_HEALTH_PORT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("KILLJOY_METRICS_PORT", 0),
		"Prometheus metrics port, 0 to disable (env: KILLJOY_METRICS_PORT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate the settings file and exit")
	flag.BoolVar(&cfg.PrintConfigPath, "print-config-path", false,
		"Print the resolved settings file path and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp || cfg.PrintConfigPath {
		return nil
	}

	// An explicit config path must exist; an empty one goes through the
	// XDG search order at load time.
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("settings file not found: %s", cfg.ConfigPath)
		}
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	// Validate health port
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", cfg.HealthPort)
	}

	// Validate metrics port
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.HealthPort != 0 && cfg.HealthPort == cfg.MetricsPort {
		return fmt.Errorf("health and metrics ports must differ: %d", cfg.HealthPort)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - systemd unit watcher

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with the settings file from the XDG search order
  %s

  # Run with an explicit settings file
  %s --config=/etc/xdg/killjoy/settings.json

  # Run with debug logging and observability endpoints
  %s --log-level=debug --health-port=8080 --metrics-port=9090

  # Validate the settings file only
  %s --validate

  # Show where settings would be loaded from
  %s --print-config-path

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
