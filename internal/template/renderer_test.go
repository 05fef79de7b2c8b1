package template_test

import (
	"testing"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/starlark"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, input string, data map[string]any) (string, error) {
	t.Helper()
	ctx, err := starlark.NewExecutionContext(data, &starlark.ServerInfo{Type: "pg", VersionNum: 140000})
	require.NoError(t, err)
	return template.RenderString(input, "test.sql", ctx)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		input string
		data  map[string]any
		want  string
	}{
		{
			name:  "expression",
			input: `CREATE SCHEMA {{ data["name"] }};`,
			data:  map[string]any{"data": map[string]any{"name": "sales"}},
			want:  "CREATE SCHEMA sales;",
		},
		{
			name:  "none renders empty",
			input: "[{{ missing }}]",
			data:  map[string]any{"missing": nil},
			want:  "[]",
		},
		{
			name:  "numbers render as starlark values",
			input: "{{ oid }} {{ ok }}",
			data:  map[string]any{"oid": int32(2200), "ok": true},
			want:  "2200 True",
		},
		{
			name:  "for loop",
			input: "{* for c in cols: *}\n  {{ c }},\n{* endfor *}\n",
			data:  map[string]any{"cols": []string{"id", "name"}},
			want:  "  id,\n  name,\n",
		},
		{
			name:  "for loop with tuple unpacking",
			input: "{* for k, v in opts.items(): *}{{ k }}={{ v }} {* endfor *}",
			data:  map[string]any{"opts": map[string]any{"a": 1, "b": 2}},
			want:  "a=1 b=2 ",
		},
		{
			name:  "loop variable shadows data",
			input: "{* for x in xs *}{{ x }}{* endfor *}{{ x }}",
			data:  map[string]any{"x": "outer", "xs": []string{"1", "2"}},
			want:  "12outer",
		},
		{
			name:  "if true",
			input: "{* if data.get('owner'): *}\nOWNER {{ data['owner'] }}\n{* endif *}\n;",
			data:  map[string]any{"data": map[string]any{"owner": "alice"}},
			want:  "OWNER alice\n;",
		},
		{
			name:  "elif",
			input: "{* if n == 1: *}one{* elif n == 2: *}two{* else: *}many{* endif *}",
			data:  map[string]any{"n": 2},
			want:  "two",
		},
		{
			name:  "else",
			input: "{* if n == 1: *}one{* elif n == 2: *}two{* else: *}many{* endif *}",
			data:  map[string]any{"n": 7},
			want:  "many",
		},
		{
			name:  "falsy values",
			input: "{* if s *}s{* endif *}{* if l *}l{* endif *}{* if z *}z{* endif *}{* if n *}n{* endif *}",
			data:  map[string]any{"s": "", "l": []any{}, "z": 0, "n": nil},
			want:  "",
		},
		{
			name:  "server version gate",
			input: "{* if server.version_num >= 100000: *}IF NOT EXISTS {* endif *}x",
			data:  map[string]any{},
			want:  "IF NOT EXISTS x",
		},
		{
			name:  "comment",
			input: "{# drop the schema #}\nDROP SCHEMA x;",
			data:  map[string]any{},
			want:  "DROP SCHEMA x;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(t, tt.input, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		data  map[string]any
		want  string
	}{
		{name: "undefined name", input: "{{ nope }}", want: "nope"},
		{name: "not iterable", input: "{* for x in n *}{* endfor *}", data: map[string]any{"n": 3}, want: "cannot iterate"},
		{name: "bad unpack", input: "{* for a, b in xs *}{* endfor *}", data: map[string]any{"xs": []string{"abc"}}, want: "cannot unpack"},
		{name: "bad condition", input: "{* if 1 + 'a': *}{* endif *}", want: "evaluating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := render(t, tt.input, tt.data)
			var renderErr *template.RenderError
			require.ErrorAs(t, err, &renderErr)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, "test.sql", renderErr.Position().File)
		})
	}
}

func TestRender_ParsedTemplateIsReusable(t *testing.T) {
	tmpl, err := template.ParseString("DROP SCHEMA {{ name }}{* if cascade *} CASCADE{* endif *};", "schema/delete.sql")
	require.NoError(t, err)

	for _, tc := range []struct {
		cascade bool
		want    string
	}{
		{false, "DROP SCHEMA s;"},
		{true, "DROP SCHEMA s CASCADE;"},
	} {
		ctx, err := starlark.NewExecutionContext(map[string]any{"name": "s", "cascade": tc.cascade}, nil)
		require.NoError(t, err)
		got, err := template.Render(tmpl, ctx)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
