// Package connection opens and owns PostgreSQL connections for sessions and
// serves the connection/* JSON-RPC methods.
package connection

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Defaults applied by Options.WithDefaults.
const (
	DefaultPort    = 5432
	DefaultSSLMode = "prefer"
)

// Options are the client-supplied connection parameters.
type Options struct {
	Host            string `json:"host"`
	Port            int    `json:"port,omitempty"`
	Database        string `json:"dbname"`
	User            string `json:"user"`
	Password        string `json:"password,omitempty"`
	SSLMode         string `json:"sslmode,omitempty"`
	ConnectTimeout  int    `json:"connectTimeout,omitempty"` // seconds
	ApplicationName string `json:"applicationName,omitempty"`
}

// WithDefaults returns a copy with the port and sslmode filled in.
func (o Options) WithDefaults() Options {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.SSLMode == "" {
		o.SSLMode = DefaultSSLMode
	}
	return o
}

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// Validate checks the options a connection cannot be opened without.
func (o Options) Validate() error {
	var problems []string
	if strings.TrimSpace(o.Host) == "" {
		problems = append(problems, "host is required")
	}
	if strings.TrimSpace(o.Database) == "" {
		problems = append(problems, "dbname is required")
	}
	if o.Port < 0 || o.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", o.Port))
	}
	if o.SSLMode != "" && !validSSLModes[o.SSLMode] {
		problems = append(problems, fmt.Sprintf("unknown sslmode %q", o.SSLMode))
	}
	if o.ConnectTimeout < 0 {
		problems = append(problems, "connectTimeout must not be negative")
	}
	if len(problems) > 0 {
		return &InvalidOptionsError{Problems: problems}
	}
	return nil
}

// String identifies the target without the password.
func (o Options) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", o.User, o.Host, o.Port, o.Database)
}

// Timeout returns the connect timeout, or fallback when unset.
func (o Options) Timeout(fallback time.Duration) time.Duration {
	if o.ConnectTimeout > 0 {
		return time.Duration(o.ConnectTimeout) * time.Second
	}
	return fallback
}

// DSN builds a libpq key=value connection string. Values are quoted when
// they contain spaces, quotes or backslashes.
func (o Options) DSN() string {
	o = o.WithDefaults()
	params := map[string]string{
		"host":    o.Host,
		"port":    fmt.Sprint(o.Port),
		"dbname":  o.Database,
		"sslmode": o.SSLMode,
	}
	if o.User != "" {
		params["user"] = o.User
	}
	if o.Password != "" {
		params["password"] = o.Password
	}
	if o.ConnectTimeout > 0 {
		params["connect_timeout"] = fmt.Sprint(o.ConnectTimeout)
	}
	if o.ApplicationName != "" {
		params["application_name"] = o.ApplicationName
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quoteDSNValue(params[k]))
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\\t") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
