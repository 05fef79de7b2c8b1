package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli/config"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/testutil"
)

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand("test")

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func TestNewTemplatesCommand(t *testing.T) {
	cmd := NewTemplatesCommand()

	assert.Equal(t, "templates", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	flags := []string{"server-version", "output", "macros"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

// rpcClient talks to Serve over pipes.
type rpcClient struct {
	t      *testing.T
	w      *io.PipeWriter
	frames *jsonrpc.FrameReader
}

func (c *rpcClient) call(id int, method string, params any) *jsonrpc.Message {
	c.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(c.t, err)
	rawID := json.RawMessage(strconv.Itoa(id))
	body, err := json.Marshal(jsonrpc.Message{JSONRPC: "2.0", ID: &rawID, Method: method, Params: raw})
	require.NoError(c.t, err)
	require.NoError(c.t, jsonrpc.WriteFrame(c.w, body))

	for {
		frame, err := c.frames.Read()
		require.NoError(c.t, err)
		var msg jsonrpc.Message
		require.NoError(c.t, json.Unmarshal(frame, &msg))
		if msg.IsResponse() && msg.IDString() == string(rawID) {
			return &msg
		}
	}
}

func startServe(t *testing.T, cfg *config.Config) (*rpcClient, <-chan error) {
	t.Helper()
	clientToServer, serverIn := io.Pipe()
	serverOut, serverToClient := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := Serve(context.Background(), clientToServer, serverToClient, cfg, testutil.NewTestLogger(t), "9.9.9")
		_ = serverToClient.Close()
		done <- err
	}()
	t.Cleanup(func() { _ = serverIn.Close() })

	return &rpcClient{t: t, w: serverIn, frames: jsonrpc.NewFrameReader(serverOut)}, done
}

func waitServe(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the client disconnected")
	}
}

func TestServe(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) *config.Config
	}{
		{
			name: "embedded templates",
			cfg: func(*testing.T) *config.Config {
				return config.GetConfig(context.Background())
			},
		},
		{
			name: "watched templates dir",
			cfg: func(t *testing.T) *config.Config {
				cfg := config.GetConfig(context.Background())
				cfg.TemplatesDir = t.TempDir()
				cfg.WatchTemplates = true
				return cfg
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, done := startServe(t, tt.cfg(t))

			resp := client.call(1, "version", nil)
			require.Nil(t, resp.Error)
			assert.JSONEq(t, `"9.9.9"`, string(resp.Result))

			resp = client.call(2, "objectexplorer/closesession", map[string]string{"sessionId": "objectexplorer://u@h:d/"})
			require.NotNil(t, resp.Error)
			assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "unknown object explorer session")

			resp = client.call(3, "scripting/script", map[string]string{"sessionId": "x", "nodePath": "/", "operation": "rename"})
			require.NotNil(t, resp.Error)
			assert.Contains(t, resp.Error.Message, "operation must be one of")

			resp = client.call(4, "connection/disconnect", map[string]string{"ownerUri": "file:///nothing.sql"})
			require.Nil(t, resp.Error)
			assert.JSONEq(t, "false", string(resp.Result))

			require.NoError(t, client.w.Close())
			waitServe(t, done)
		})
	}
}

func TestServe_MissingTemplatesDir(t *testing.T) {
	cfg := config.GetConfig(context.Background())
	cfg.TemplatesDir = filepath.Join(t.TempDir(), "missing")

	err := Serve(context.Background(), strings.NewReader(""), io.Discard, cfg, testutil.NewTestLogger(t), "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "templates directory")
}

func executeTemplates(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewTemplatesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTemplatesCommand_Table(t *testing.T) {
	out, err := executeTemplates(t, "--server-version", "100005", "--macros")
	require.NoError(t, err)

	assert.Contains(t, out, "Templates: embedded")
	assert.Contains(t, out, "Resolved for 10.5")
	assert.Contains(t, out, "Trigger Function")
	assert.Contains(t, out, "9.2, 10.0")
	assert.Contains(t, out, "utils.qt_ident")
}

func TestTemplatesCommand_YAML(t *testing.T) {
	tests := []struct {
		name          string
		serverVersion string
		want          map[string]string
		wantError     bool
	}{
		{
			name:          "postgres 10",
			serverVersion: "100005",
			want:          map[string]string{"table": "10.0", "function": "9.2", "schema": "9.2"},
		},
		{
			name:          "postgres 15",
			serverVersion: "150004",
			want:          map[string]string{"table": "10.0", "function": "11.0", "sequence": "10.0"},
		},
		{
			name:          "older than every template",
			serverVersion: "90100",
			want:          map[string]string{"table": "", "schema": ""},
			wantError:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeTemplates(t, "-o", "yaml", "--server-version", tt.serverVersion)
			require.NoError(t, err)

			var report templatesReport
			require.NoError(t, yaml.Unmarshal([]byte(out), &report))
			assert.Equal(t, "embedded", report.Source)

			resolved := make(map[string]templateCategory)
			for _, c := range report.Categories {
				resolved[c.Name] = c
			}
			for name, version := range tt.want {
				c, ok := resolved[name]
				require.True(t, ok, "category %q should be listed", name)
				assert.Equal(t, version, c.Resolved, name)
				assert.Equal(t, tt.wantError, c.Error != "", name)
			}
		})
	}
}

func TestTemplatesCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"unknown output", []string{"-o", "json"}, "output must be one of table, yaml"},
		{"negative version", []string{"--server-version", "-1"}, "server-version must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeTemplates(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
