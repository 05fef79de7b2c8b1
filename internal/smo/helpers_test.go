package smo_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/templating"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/testutil"
)

// Query fragments identifying the rendered catalog queries.
const (
	qDatabases        = "WHERE NOT db.datistemplate"
	qRoles            = "FROM pg_catalog.pg_roles r\nORDER BY"
	qTablespaces      = "FROM pg_catalog.pg_tablespace ts\nORDER BY"
	qSchemas          = "has_schema_privilege(nsp.oid, 'CREATE')"
	qTables           = "rel.relkind IN ('r', 'p')"
	qViews            = "rel.relkind = 'v'"
	qFunctions        = "pr.prorettype <> 'pg_catalog.trigger'"
	qTriggerFunctions = "pr.prorettype = 'pg_catalog.trigger'"
	qSequences        = "cl.relkind = 'S'"
	qDataTypes        = "FROM pg_catalog.pg_type t\nLEFT JOIN"
	qCollations       = "WHERE c.collnamespace"
	qColumns          = "pg_catalog.pg_attrdef"
	qIndexes          = "FROM pg_catalog.pg_index idx"
	qTriggers         = "WHERE NOT t.tgisinternal"
	qSchemaProps      = "AS namespaceowner"
	qTableProps       = "AS relowner"
	qDatabaseProps    = "AS datowner"
)

type response struct {
	rows []smo.Row
	err  error
	gate chan struct{}
}

type route struct {
	match     string
	responses []response
}

// fakeQuerier answers queries containing a registered fragment. Each route
// replays its responses in order and repeats the last one.
type fakeQuerier struct {
	mu      sync.Mutex
	routes  []*route
	calls   map[string]int
	queries []string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{calls: make(map[string]int)}
}

func (f *fakeQuerier) route(match string) *route {
	for _, r := range f.routes {
		if r.match == match {
			return r
		}
	}
	r := &route{match: match}
	f.routes = append(f.routes, r)
	return r
}

func (f *fakeQuerier) on(match string, rows ...smo.Row) *fakeQuerier {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.route(match)
	r.responses = append(r.responses, response{rows: rows})
	return f
}

func (f *fakeQuerier) onGated(match string, gate chan struct{}, rows ...smo.Row) *fakeQuerier {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.route(match)
	r.responses = append(r.responses, response{rows: rows, gate: gate})
	return f
}

func (f *fakeQuerier) onError(match string, err error) *fakeQuerier {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.route(match)
	r.responses = append(r.responses, response{err: err})
	return f
}

func (f *fakeQuerier) Query(ctx context.Context, query string, _ ...any) ([]smo.Row, error) {
	f.mu.Lock()
	var resp response
	found := false
	for _, r := range f.routes {
		if strings.Contains(query, r.match) && len(r.responses) > 0 {
			resp = r.responses[0]
			if len(r.responses) > 1 {
				r.responses = r.responses[1:]
			}
			f.calls[r.match]++
			found = true
			break
		}
	}
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if !found {
		return nil, fmt.Errorf("unexpected query:\n%s", query)
	}
	if resp.gate != nil {
		select {
		case <-resp.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp.err != nil {
		return nil, resp.err
	}
	rows := make([]smo.Row, len(resp.rows))
	copy(rows, resp.rows)
	return rows, nil
}

func (f *fakeQuerier) count(match string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[match]
}

// lastQuery returns the most recent query containing match.
func (f *fakeQuerier) lastQuery(match string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.queries) - 1; i >= 0; i-- {
		if strings.Contains(f.queries[i], match) {
			return f.queries[i]
		}
	}
	return ""
}

func newTestServer(t *testing.T, q smo.Querier) *smo.Server {
	t.Helper()
	bundle, err := smo.Bundle("pg")
	require.NoError(t, err)
	resolver := templating.New(bundle)
	return smo.NewServer(q, smo.ServerInfo{
		Host:       "localhost",
		Port:       5432,
		Database:   "postgres",
		User:       "postgres",
		VersionNum: 150004,
		Version:    "PostgreSQL 15.4",
	}, resolver, testutil.NewTestLogger(t))
}

// catalogFixture registers one answer for every nodes query of the tree.
func catalogFixture(q *fakeQuerier) *fakeQuerier {
	return q.
		on(qDatabases,
			smo.Row{"oid": int64(5), "name": "postgres", "datallowconn": true, "cancreate": true, "datistemplate": false},
			smo.Row{"oid": int64(16390), "name": "app", "datallowconn": true, "cancreate": false, "datistemplate": false},
		).
		on(qRoles,
			smo.Row{"oid": int64(10), "name": "postgres", "rolcanlogin": true, "rolsuper": true},
			smo.Row{"oid": int64(16400), "name": "Admin", "rolcanlogin": false, "rolsuper": false},
		).
		on(qTablespaces, smo.Row{"oid": int64(1663), "name": "pg_default", "owner": "postgres"}).
		on(qSchemas,
			smo.Row{"oid": int64(2200), "name": "public", "can_create": true, "has_usage": true},
			smo.Row{"oid": int64(16500), "name": "sales", "can_create": true, "has_usage": true},
		).
		on(qTables, smo.Row{"oid": int64(16600), "name": "orders", "is_partitioned": false}).
		on(qViews, smo.Row{"oid": int64(16700), "name": "order summary"}).
		on(qFunctions, smo.Row{
			"oid": int64(16800), "name": "add(a integer, b integer)",
			"proname": "add", "lanname": "sql", "rettype": "integer",
		}).
		on(qTriggerFunctions, smo.Row{
			"oid": int64(16810), "name": "audit()",
			"proname": "audit", "lanname": "plpgsql", "rettype": "trigger",
		}).
		on(qSequences, smo.Row{"oid": int64(16610), "name": "orders_id_seq"}).
		on(qDataTypes, smo.Row{"oid": int64(16620), "name": "mood", "typtype": "e"}).
		on(qCollations, smo.Row{"oid": int64(16630), "name": "german"}).
		on(qColumns,
			smo.Row{
				"oid": int64(1), "name": "id", "datatype": "integer", "not_null": true,
				"default": "nextval('sales.orders_id_seq'::regclass)", "is_pk": true,
			},
			smo.Row{"oid": int64(2), "name": "note", "datatype": "text", "not_null": false, "default": nil, "is_pk": false},
		).
		on(qIndexes, smo.Row{"oid": int64(16601), "name": "orders_pkey", "indisunique": true, "indisprimary": true}).
		on(qTriggers, smo.Row{"oid": int64(16602), "name": "orders_audit", "is_enabled": true})
}

// child populates obj's collection key and returns the member named name.
func child(t *testing.T, obj smo.Object, key, name string) smo.Object {
	t.Helper()
	coll := obj.Collection(key)
	require.NotNil(t, coll, "%s has no collection %q", obj.Label(), key)
	_, err := coll.Get(context.Background(), false)
	require.NoError(t, err)
	found, ok := coll.Lookup(name)
	require.True(t, ok, "%s/%s has no %q", obj.Label(), key, name)
	return found
}

// walk follows alternating collection keys and names from obj.
func walk(t *testing.T, obj smo.Object, steps ...string) smo.Object {
	t.Helper()
	require.Zero(t, len(steps)%2, "steps come in key/name pairs")
	for i := 0; i < len(steps); i += 2 {
		obj = child(t, obj, steps[i], steps[i+1])
	}
	return obj
}

func names(objs []smo.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name()
	}
	return out
}
