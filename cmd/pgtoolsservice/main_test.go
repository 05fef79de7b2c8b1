package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	chdir(t, t.TempDir())
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "pgtoolsservice") {
		t.Errorf("version output should contain 'pgtoolsservice', got: %s", output)
	}
}

func TestHelpListsCommands(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help error = %v", err)
	}

	for _, want := range []string{"serve", "templates", "version", "completion"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("help should list %q, got: %s", want, buf.String())
		}
	}
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
