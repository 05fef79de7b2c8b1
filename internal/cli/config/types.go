// Package config provides configuration management for the pgtoolsservice CLI.
package config

import (
	"time"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/connection"
)

// Default values.
const (
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "auto"
	DefaultConnectTimeout  = 15 * time.Second
	DefaultQueryTimeout    = 30 * time.Second
	DefaultApplicationName = "pgtoolsservice"
	DefaultOutboundQueue   = 256
)

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the service configuration.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	// LogFile receives logs instead of stderr when set.
	LogFile string `koanf:"log_file"`

	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
	ApplicationName string        `koanf:"application_name"`

	// TemplatesDir replaces the embedded template bundle when set.
	TemplatesDir   string `koanf:"templates_dir"`
	WatchTemplates bool   `koanf:"watch_templates"`

	// DebugAddr enables the debug HTTP server.
	DebugAddr     string `koanf:"debug_addr"`
	OutboundQueue int    `koanf:"outbound_queue"`
}

// Defaults returns the default configuration keyed the way koanf sees it.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"log_level":        DefaultLogLevel,
		"log_format":       DefaultLogFormat,
		"log_file":         "",
		"connect_timeout":  DefaultConnectTimeout.String(),
		"query_timeout":    DefaultQueryTimeout.String(),
		"application_name": DefaultApplicationName,
		"templates_dir":    "",
		"watch_templates":  false,
		"debug_addr":       "",
		"outbound_queue":   DefaultOutboundQueue,
	}
}

// ConnectionSettings returns the service-wide connection defaults.
func (c *Config) ConnectionSettings() connection.Settings {
	return connection.Settings{
		ConnectTimeout:  c.ConnectTimeout,
		QueryTimeout:    c.QueryTimeout,
		ApplicationName: c.ApplicationName,
	}
}
