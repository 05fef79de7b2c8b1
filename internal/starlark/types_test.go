package starlark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantStr string
		wantErr bool
	}{
		{name: "string", input: "public", wantStr: `"public"`},
		{name: "bytes", input: []byte("pg_catalog"), wantStr: `"pg_catalog"`},
		{name: "int", input: 42, wantStr: "42"},
		{name: "int32 oid", input: int32(2200), wantStr: "2200"},
		{name: "uint32 oid", input: uint32(4294967295), wantStr: "4294967295"},
		{name: "int64", input: int64(150004), wantStr: "150004"},
		{name: "float64", input: 0.5, wantStr: "0.5"},
		{name: "bool", input: true, wantStr: "True"},
		{name: "nil", input: nil, wantStr: "None"},
		{name: "timestamp", input: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), wantStr: `"2024-01-02T03:04:05Z"`},
		{name: "string slice", input: []string{"a", "b"}, wantStr: `["a", "b"]`},
		{name: "any slice", input: []any{"x", 1, nil}, wantStr: `["x", 1, None]`},
		{
			name:    "rows",
			input:   []map[string]any{{"grantee": "alice", "privileges": []any{"U"}}},
			wantStr: `[{"grantee": "alice", "privileges": ["U"]}]`,
		},
		{name: "map keys sorted", input: map[string]any{"b": 2, "a": 1}, wantStr: `{"a": 1, "b": 2}`},
		{name: "unsupported", input: struct{}{}, wantErr: true},
		{name: "unsupported nested", input: map[string]any{"x": make(chan int)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStr, got.String())
		})
	}
}

func TestToGo(t *testing.T) {
	dict := starlark.NewDict(1)
	require.NoError(t, dict.SetKey(starlark.String("name"), starlark.String("public")))

	tests := []struct {
		name  string
		input starlark.Value
		want  any
	}{
		{name: "none", input: starlark.None, want: nil},
		{name: "string", input: starlark.String("x"), want: "x"},
		{name: "int", input: starlark.MakeInt(7), want: int64(7)},
		{name: "float", input: starlark.Float(1.5), want: 1.5},
		{name: "bool", input: starlark.True, want: true},
		{name: "list", input: starlark.NewList([]starlark.Value{starlark.MakeInt(1)}), want: []any{int64(1)}},
		{name: "dict", input: dict, want: map[string]any{"name": "public"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServerInfo_ToStarlark(t *testing.T) {
	info := &ServerInfo{Type: "pg", VersionNum: 150004, Version: "PostgreSQL 15.4"}
	v, ok := info.ToStarlark().(starlark.HasAttrs)
	require.True(t, ok)

	num, err := v.Attr("version_num")
	require.NoError(t, err)
	assert.Equal(t, "150004", num.String())

	typ, err := v.Attr("type")
	require.NoError(t, err)
	assert.Equal(t, `"pg"`, typ.String())
}
