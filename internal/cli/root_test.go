package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantText bool
	}{
		{"text", config.LogFormatText, true},
		{"json", config.LogFormatJSON, false},
		{"auto on a pipe", config.LogFormatAuto, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			logger, closeFn, err := newLogger(&config.Config{LogLevel: "warn", LogFormat: tt.format}, buf)
			require.NoError(t, err)
			defer func() { _ = closeFn() }()

			_, isText := logger.Handler().(*slog.TextHandler)
			assert.Equal(t, tt.wantText, isText)
			assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))

			logger.Warn("careful", "session", "s1")
			assert.Contains(t, buf.String(), "careful")
			assert.Contains(t, buf.String(), "s1")
		})
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	stderr := new(bytes.Buffer)

	logger, closeFn, err := newLogger(&config.Config{LogLevel: "debug", LogFormat: config.LogFormatJSON, LogFile: path}, stderr)
	require.NoError(t, err)
	logger.Debug("to the file")
	require.NoError(t, closeFn())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"to the file"`)
	assert.Empty(t, stderr.String())
}

func TestNewLogger_Errors(t *testing.T) {
	_, _, err := newLogger(&config.Config{LogLevel: "loud"}, new(bytes.Buffer))
	require.Error(t, err)

	_, _, err = newLogger(&config.Config{LogLevel: "info", LogFile: filepath.Join(t.TempDir(), "no", "such", "dir.log")}, new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening log file")
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_DefaultServes(t *testing.T) {
	chdir(t, t.TempDir())

	// Empty input: the client disconnects immediately.
	out, logs, err := execute(t, "", "--log-format", "text", "--log-level", "info")
	require.NoError(t, err)
	assert.Empty(t, out, "stdout carries only protocol messages")
	assert.Contains(t, logs, "jsonrpc server stopped")
}

func TestRootCmd_Config(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pgtoolsservice.yaml"), []byte("log_level: bogus\n"), 0600))

	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		contains string
	}{
		{
			name:     "invalid file value",
			args:     []string{"templates"},
			contains: "log_level must be one of",
		},
		{
			name:     "flag repairs file value",
			args:     []string{"templates", "--log-level", "debug", "-o", "yaml"},
			contains: "",
		},
		{
			name:     "env repairs file value",
			args:     []string{"templates", "-o", "yaml"},
			env:      map[string]string{"PGTOOLS_LOG_LEVEL": "warn"},
			contains: "",
		},
		{
			name:     "missing templates dir",
			args:     []string{"templates", "--log-level", "info", "--templates-dir", filepath.Join(dir, "missing")},
			contains: "templates directory",
		},
		{
			name:     "explicit config file",
			args:     []string{"templates", "--config", filepath.Join(dir, "absent.yaml")},
			contains: "error reading config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			out, _, err := execute(t, "", tt.args...)
			if tt.contains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.contains)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, "source: embedded")
		})
	}
}

func TestRootCmd_Completion(t *testing.T) {
	out, _, err := execute(t, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "pgtoolsservice")
}

// chdir changes the working directory for the duration of the test; it
// stands in for testing.T.Chdir, which needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
