package objectexplorer_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/connection"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc/jsonrpctest"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/objectexplorer"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/templating"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/testutil"
)

// Fragments identifying nodes queries of the embedded pg bundle.
const (
	qDatabases = "WHERE NOT db.datistemplate"
	qSchemas   = "has_schema_privilege(nsp.oid, 'CREATE')"
	qTables    = "rel.relkind IN ('r', 'p')"
)

var databaseCols = []string{"oid", "name", "datallowconn"}

// mockOpener hands out sqlmock-backed connections. prepare registers the
// query expectations of each new connection.
type mockOpener struct {
	t       *testing.T
	fail    map[string]bool
	gate    chan struct{}
	pings   bool
	prepare func(mock sqlmock.Sqlmock)

	mu    sync.Mutex
	mocks []sqlmock.Sqlmock
}

func (o *mockOpener) Open(ctx context.Context, opts connection.Options) (*connection.Conn, error) {
	if o.gate != nil {
		select {
		case <-o.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if o.fail[opts.Database] {
		return nil, &connection.ConnectionError{
			Host: opts.Host, Database: opts.Database, Op: "open",
			Err: errors.New(`database "` + opts.Database + `" does not exist`),
		}
	}

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(o.pings))
	require.NoError(o.t, err)
	mock.MatchExpectationsInOrder(false)
	if o.prepare != nil {
		o.prepare(mock)
	}
	mock.ExpectClose()

	o.mu.Lock()
	o.mocks = append(o.mocks, mock)
	o.mu.Unlock()

	return connection.NewConn(db, connection.ServerInfo{
		ServerType: "pg", Host: opts.Host, Port: opts.Port, Database: opts.Database,
		User: opts.User, VersionNum: 150004, Version: "PostgreSQL 15.4",
	}), nil
}

func (o *mockOpener) mock(i int) sqlmock.Sqlmock {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mocks[i]
}

func expectRows(mock sqlmock.Sqlmock, fragment string, cols []string, rows ...[]driver.Value) *sqlmock.ExpectedQuery {
	r := sqlmock.NewRows(cols)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return mock.ExpectQuery(regexp.QuoteMeta(fragment)).WillReturnRows(r)
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	svc     *objectexplorer.Service
	client  *jsonrpctest.Client
	expands int
}

func newHarness(t *testing.T, opener connection.Opener) *harness {
	t.Helper()
	bundle, err := smo.Bundle("pg")
	require.NoError(t, err)
	resolver := templating.New(bundle)

	var svc *objectexplorer.Service
	client := jsonrpctest.New(t, func(srv *jsonrpc.Server) {
		svc = objectexplorer.NewService(opener, resolver, srv, testutil.NewTestLogger(t))
		svc.Register(srv)
	})
	t.Cleanup(svc.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return &harness{t: t, ctx: ctx, svc: svc, client: client}
}

func options(host, db, user string) map[string]any {
	return map[string]any{"options": map[string]any{"host": host, "dbname": db, "user": user}}
}

// createSession creates a session and waits for its sessioncreated
// notification, the n-th one of the test.
func (h *harness) createSession(params map[string]any, n int) (string, objectexplorer.SessionCreatedParams) {
	h.t.Helper()
	var resp objectexplorer.CreateSessionResponse
	require.NoError(h.t, h.client.Call(h.ctx, objectexplorer.MethodCreateSession, params, &resp))
	var created objectexplorer.SessionCreatedParams
	require.NoError(h.t, h.client.WaitNotification(h.ctx, objectexplorer.NotifySessionCreated, n, &created))
	require.Equal(h.t, resp.SessionID, created.SessionID)
	return resp.SessionID, created
}

func (h *harness) request(method, sessionID, path string) bool {
	h.t.Helper()
	var accepted bool
	require.NoError(h.t, h.client.Call(h.ctx, method, objectexplorer.ExpandParams{SessionID: sessionID, NodePath: path}, &accepted))
	return accepted
}

// expand issues an accepted expand or refresh and waits for its completion.
func (h *harness) expand(method, sessionID, path string) objectexplorer.ExpandCompletedParams {
	h.t.Helper()
	require.True(h.t, h.request(method, sessionID, path))
	h.expands++
	return h.nextCompleted()
}

func (h *harness) nextCompleted() objectexplorer.ExpandCompletedParams {
	h.t.Helper()
	var done objectexplorer.ExpandCompletedParams
	require.NoError(h.t, h.client.WaitNotification(h.ctx, objectexplorer.NotifyExpandCompleted, h.expands, &done))
	return done
}

// barrier returns once every message queued before it has been delivered.
func (h *harness) barrier() {
	h.t.Helper()
	require.NoError(h.t, h.client.Call(h.ctx, "version", nil, nil))
}

func labels(nodes []objectexplorer.NodeInfo) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}
