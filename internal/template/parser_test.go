package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString_Structure(t *testing.T) {
	tmpl, err := ParseString(`CREATE SCHEMA {{ data["name"] }}
{* if data.get("owner"): *}
AUTHORIZATION {{ data["owner"] }}
{* elif server.version_num > 90000: *}
-- no owner
{* else: *}
-- old server
{* endif *}
{* for k, v in pairs: *}
{{ k }}={{ v }}
{* endfor *}
`, "schema/9.2/create.sql")
	require.NoError(t, err)
	assert.Equal(t, "schema/9.2/create.sql", tmpl.File)
	require.Len(t, tmpl.Nodes, 5)

	assert.Equal(t, "CREATE SCHEMA ", tmpl.Nodes[0].(*TextNode).Text)
	assert.Equal(t, `data["name"]`, tmpl.Nodes[1].(*ExprNode).Expr)
	assert.Equal(t, "\n", tmpl.Nodes[2].(*TextNode).Text)

	ifBlock, ok := tmpl.Nodes[3].(*IfBlock)
	require.True(t, ok, "expected *IfBlock, got %T", tmpl.Nodes[3])
	assert.Equal(t, `data.get("owner")`, ifBlock.Condition)
	require.Len(t, ifBlock.ElseIfs, 1)
	assert.Equal(t, "server.version_num > 90000", ifBlock.ElseIfs[0].Condition)
	assert.Equal(t, 4, ifBlock.ElseIfs[0].Pos().Line)
	require.Len(t, ifBlock.Else, 1)
	assert.Equal(t, "-- old server\n", ifBlock.Else[0].(*TextNode).Text)

	forBlock, ok := tmpl.Nodes[4].(*ForBlock)
	require.True(t, ok, "expected *ForBlock, got %T", tmpl.Nodes[4])
	assert.Equal(t, []string{"k", "v"}, forBlock.VarNames)
	assert.Equal(t, "pairs", forBlock.IterExpr)
	assert.Len(t, forBlock.Body, 4)
}

func TestParseString_ForVariants(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantVars []string
		wantIter string
	}{
		{"with colon", "{* for c in cols: *}x{* endfor *}", []string{"c"}, "cols"},
		{"without colon", "{* for c in cols *}x{* endfor *}", []string{"c"}, "cols"},
		{"slice expression", "{* for c in cols[1:] *}x{* endfor *}", []string{"c"}, "cols[1:]"},
		{"method call", "{* for k, v in d.items(): *}x{* endfor *}", []string{"k", "v"}, "d.items()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseString(tt.input, "")
			require.NoError(t, err)
			require.Len(t, tmpl.Nodes, 1)

			block := tmpl.Nodes[0].(*ForBlock)
			assert.Equal(t, tt.wantVars, block.VarNames)
			assert.Equal(t, tt.wantIter, block.IterExpr)
		})
	}
}

func TestParseString_CommentsDropped(t *testing.T) {
	tmpl, err := ParseString("{# header #}\nSELECT 1;", "")
	require.NoError(t, err)
	require.Len(t, tmpl.Nodes, 1)
	assert.Equal(t, "SELECT 1;", tmpl.Nodes[0].(*TextNode).Text)
}

func TestParseString_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  StmtKind
		wantParse bool
		wantMsg   string
	}{
		{name: "unclosed for", input: "{* for x in y: *}body", wantKind: StmtFor},
		{name: "unclosed if", input: "{* if x: *}body", wantKind: StmtIf},
		{name: "unclosed else", input: "{* if x: *}a{* else: *}b", wantKind: StmtIf},
		{name: "stray endfor", input: "text{* endfor *}", wantKind: StmtEndFor},
		{name: "stray endif", input: "{* endif *}", wantKind: StmtEndIf},
		{name: "stray else", input: "{* else *}", wantKind: StmtElse},
		{name: "endif closes for", input: "{* for x in y: *}{* endif *}", wantKind: StmtEndIf},
		{name: "unknown statement", input: "{* while x *}", wantParse: true, wantMsg: "unknown statement"},
		{name: "bare if", input: "{* if *}", wantParse: true, wantMsg: "unknown statement"},
		{name: "bad loop variable", input: "{* for 1x in y: *}{* endfor *}", wantParse: true, wantMsg: "invalid loop variable"},
		{name: "malformed for", input: "{* for x *}{* endfor *}", wantParse: true, wantMsg: "malformed for"},
		{name: "empty expression", input: "{{ }}", wantParse: true, wantMsg: "empty expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input, "t.sql")
			require.Error(t, err)

			if tt.wantParse {
				var parseErr *ParseError
				require.ErrorAs(t, err, &parseErr)
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}

			var blockErr *UnmatchedBlockError
			require.ErrorAs(t, err, &blockErr)
			assert.Equal(t, tt.wantKind, blockErr.Stmt)
			assert.Contains(t, err.Error(), "t.sql:1:")
		})
	}
}

func TestUnmatchedBlockError_Message(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"{* for x in y: *}", "t.sql:1:1: for block is never closed with {* endfor *}"},
		{"\n{* if x: *}", "t.sql:2:1: if block is never closed with {* endif *}"},
		{"{* endfor *}", "{* endfor *} outside a for block"},
		{"{* elif x: *}", "{* elif *} outside an if block"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseString(tt.input, "t.sql")
			var blockErr *UnmatchedBlockError
			require.ErrorAs(t, err, &blockErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
