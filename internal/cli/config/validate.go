package config

import (
	"fmt"
	"log/slog"
	"os"
)

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return level, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case LogFormatAuto, LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("log_format must be one of auto, text, json; got %q", c.LogFormat)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", c.QueryTimeout)
	}
	if c.OutboundQueue <= 0 {
		return fmt.Errorf("outbound_queue must be positive, got %d", c.OutboundQueue)
	}
	if c.WatchTemplates && c.TemplatesDir == "" {
		return fmt.Errorf("watch_templates requires templates_dir")
	}
	return nil
}

// ValidateDirectories checks that configured directories exist.
func (c *Config) ValidateDirectories() error {
	if c.TemplatesDir == "" {
		return nil
	}
	info, err := os.Stat(c.TemplatesDir)
	if err != nil {
		return fmt.Errorf("templates directory: %w\nHint: unset templates_dir to use the embedded templates", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("templates directory %s is not a directory", c.TemplatesDir)
	}
	return nil
}
