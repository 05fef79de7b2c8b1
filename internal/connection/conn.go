package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ServerInfo describes the server behind an open connection.
type ServerInfo struct {
	ServerType string `json:"serverType"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Database   string `json:"database"`
	User       string `json:"user"`
	VersionNum int    `json:"serverVersionNum"`
	Version    string `json:"serverVersion"`
}

// ErrConnClosed is returned by operations on a closed Conn.
var ErrConnClosed = errors.New("connection is closed")

// Conn is a single database connection owned by one session. Queries are
// serialized; the driver connection is never used concurrently.
type Conn struct {
	db           *sql.DB
	info         ServerInfo
	queryTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	closed bool
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithQueryTimeout bounds every query issued through the Conn.
func WithQueryTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.queryTimeout = d }
}

// WithConnLogger sets the Conn's logger.
func WithConnLogger(logger *slog.Logger) ConnOption {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConn wraps an open database handle.
func NewConn(db *sql.DB, info ServerInfo, opts ...ConnOption) *Conn {
	c := &Conn{
		db:     db,
		info:   info,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info returns the server description read at open time.
func (c *Conn) Info() ServerInfo { return c.info }

// Query runs query and materializes all rows as column-name maps. Byte
// slices are converted to strings.
func (c *Conn) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnClosed
	}

	if c.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	c.logger.Debug("query done", "rows", len(out), "duration", time.Since(start))
	return out, nil
}

// Ping checks that the connection is still usable.
func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if err := c.db.PingContext(ctx); err != nil {
		return &ConnectionError{Host: c.info.Host, Database: c.info.Database, Op: "ping", Err: err}
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Debug("closing database connection", "host", c.info.Host, "database", c.info.Database)
	return c.db.Close()
}
