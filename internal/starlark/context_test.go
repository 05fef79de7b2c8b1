package starlark

import (
	"testing"
	"testing/fstest"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/macro"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

var pg15 = &ServerInfo{Type: "pg", VersionNum: 150004, Version: "PostgreSQL 15.4"}

func TestNewExecutionContext(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{
		"data":   map[string]any{"name": "sales"},
		"o_data": nil,
	}, pg15)
	require.NoError(t, err)

	globals := ctx.Globals()
	for _, key := range []string{"data", "o_data", "server"} {
		_, ok := globals[key]
		assert.True(t, ok, "global %q not found", key)
	}
}

func TestNewExecutionContext_BadData(t *testing.T) {
	_, err := NewExecutionContext(map[string]any{"not-an-ident": 1}, pg15)
	assert.Error(t, err)

	_, err = NewExecutionContext(map[string]any{"data": struct{}{}}, pg15)
	assert.Error(t, err)
}

func TestExecutionContext_EvalExprString(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{
		"data": map[string]any{
			"name":        "sales",
			"description": nil,
			"acl":         []any{"alice", "bob"},
		},
	}, pg15)
	require.NoError(t, err)

	tests := []struct {
		name    string
		expr    string
		want    string
		wantErr bool
	}{
		{name: "data field", expr: `data["name"]`, want: "sales"},
		{name: "none renders empty", expr: `data["description"]`, want: ""},
		{name: "server version", expr: `server.version_num >= 100000`, want: "True"},
		{name: "server type", expr: `server.type`, want: "pg"},
		{name: "list length", expr: `len(data["acl"])`, want: "2"},
		{name: "undefined name", expr: `nothing`, wantErr: true},
		{name: "syntax error", expr: `data[`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.EvalExprString(tt.expr, "schema/15.0/create.sql", 3)
			if tt.wantErr {
				var evalErr *EvalError
				require.ErrorAs(t, err, &evalErr)
				assert.Equal(t, 3, evalErr.Line)
				assert.Contains(t, err.Error(), "schema/15.0/create.sql:3")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutionContext_EvalExprWithLocals(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{"name": "outer"}, pg15)
	require.NoError(t, err)

	v, err := ctx.EvalExprWithLocals("name + '/' + col", "t.sql", 1, starlark.StringDict{
		"col": starlark.String("id"),
	})
	require.NoError(t, err)
	assert.Equal(t, `"outer/id"`, v.String())

	v, err = ctx.EvalExprWithLocals("name", "t.sql", 1, starlark.StringDict{
		"name": starlark.String("inner"),
	})
	require.NoError(t, err)
	assert.Equal(t, `"inner"`, v.String(), "locals shadow globals")
}

func TestExecutionContext_Macros(t *testing.T) {
	registry, err := macro.LoadAndRegister(fstest.MapFS{
		"macros/utils.star": {Data: []byte(`
def qt_ident(name):
    return '"' + name + '"'
`)},
	}, "macros")
	require.NoError(t, err)

	ctx, err := NewExecutionContext(map[string]any{"name": "Sales"}, pg15, WithMacroRegistry(registry))
	require.NoError(t, err)

	got, err := ctx.EvalExprString("utils.qt_ident(name)", "t.sql", 1)
	require.NoError(t, err)
	assert.Equal(t, `"Sales"`, got)
}

func TestExecutionContext_AddMacros(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{"data": map[string]any{}}, nil)
	require.NoError(t, err)

	assert.Error(t, ctx.AddMacros(starlark.StringDict{"server": starlark.None}))
	assert.Error(t, ctx.AddMacros(starlark.StringDict{"data": starlark.None}))

	require.NoError(t, ctx.AddMacros(starlark.StringDict{"helpers": starlark.String("h")}))
	_, ok := ctx.Globals()["helpers"]
	assert.True(t, ok)

	_, err = NewExecutionContext(map[string]any{"utils": 1}, nil, WithMacros(starlark.StringDict{"utils": starlark.None}))
	assert.Error(t, err)
}
