package connection

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// Opener opens session connections.
type Opener interface {
	Open(ctx context.Context, opts Options) (*Conn, error)
}

// Settings are the service-wide connection defaults.
type Settings struct {
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
	ApplicationName string
}

// PostgresOpener opens connections through pgx's database/sql driver.
type PostgresOpener struct {
	Settings Settings
	Logger   *slog.Logger
}

// NewPostgresOpener creates an opener. If logger is nil, a discard logger is used.
func NewPostgresOpener(settings Settings, logger *slog.Logger) *PostgresOpener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PostgresOpener{Settings: settings, Logger: logger}
}

// Open validates opts, connects, and reads the server description.
func (o *PostgresOpener) Open(ctx context.Context, opts Options) (*Conn, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.ApplicationName == "" {
		opts.ApplicationName = o.Settings.ApplicationName
	}

	o.Logger.Debug("connecting to postgres", slog.String("host", opts.Host), slog.String("database", opts.Database))

	db, err := sql.Open("pgx", opts.DSN())
	if err != nil {
		return nil, &ConnectionError{Host: opts.Host, Database: opts.Database, Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout(o.Settings.ConnectTimeout))
	defer cancel()

	conn, err := Attach(ctx, db, opts, WithQueryTimeout(o.Settings.QueryTimeout), WithConnLogger(o.Logger))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return conn, nil
}

const describeQuery = `SELECT current_setting('server_version_num')::int AS version_num, version() AS version, current_user AS "user"`

// Attach pings db and reads the server version and current user, returning
// a Conn that owns db.
func Attach(ctx context.Context, db *sql.DB, opts Options, connOpts ...ConnOption) (*Conn, error) {
	opts = opts.WithDefaults()
	if err := db.PingContext(ctx); err != nil {
		return nil, &ConnectionError{Host: opts.Host, Database: opts.Database, Op: "ping", Err: err}
	}

	info := ServerInfo{
		ServerType: "pg",
		Host:       opts.Host,
		Port:       opts.Port,
		Database:   opts.Database,
	}
	if err := db.QueryRowContext(ctx, describeQuery).Scan(&info.VersionNum, &info.Version, &info.User); err != nil {
		return nil, &ConnectionError{Host: opts.Host, Database: opts.Database, Op: "describe", Err: err}
	}
	return NewConn(db, info, connOpts...), nil
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(Settings, *slog.Logger) Opener)
)

// RegisterOpener adds an opener factory for a server type.
func RegisterOpener(serverType string, factory func(Settings, *slog.Logger) Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[serverType] = factory
}

// NewOpener creates the opener registered for serverType.
func NewOpener(serverType string, settings Settings, logger *slog.Logger) (Opener, error) {
	registryMu.RLock()
	factory, ok := registry[serverType]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownServerTypeError{Type: serverType, Available: ServerTypes()}
	}
	return factory(settings, logger), nil
}

// ServerTypes returns the registered server types, sorted.
func ServerTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterOpener("pg", func(s Settings, logger *slog.Logger) Opener {
		return NewPostgresOpener(s, logger)
	})
}
