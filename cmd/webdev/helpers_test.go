package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// project is a temporary webdev project with a config file.
type project struct {
	dir    string
	config string
}

func (p project) assets() string { return filepath.Join(p.dir, "dist") }

func newProject(t *testing.T, buildCommand string, extra string) project {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build commands require a POSIX shell")
	}
	dir := t.TempDir()
	cfg := strings.Join([]string{
		"server:",
		"  listen_address: 127.0.0.1:0",
		"upstream:",
		"  url: http://127.0.0.1:1",
		"build:",
		"  command: " + quoteYAML(buildCommand),
		"  working_dir: " + quoteYAML(dir),
		"  staging_dir: " + quoteYAML(filepath.Join(dir, "staging")),
		"  timeout: 30s",
		"assets:",
		"  root: " + quoteYAML(filepath.Join(dir, "dist")),
		"history:",
		"  path: " + quoteYAML(filepath.Join(dir, "history.db")),
		"telemetry:",
		"  logging:",
		"    level: error",
		"    no_color: true",
		"  metrics:",
		"    namespace: webdev_test",
		extra,
	}, "\n")
	path := filepath.Join(dir, "webdev.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return project{dir: dir, config: path}
}

func quoteYAML(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// executeCommand runs the root command with args and returns stdout,
// stderr and the error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func resetFlags() {
	cfgFile = ""
	verbose = false
	noColor = false
	runFlags.listenAddress = ""
	runFlags.logLevel = ""
	runFlags.mode = ""
	runFlags.upstream = ""
	runFlags.dryRun = false
	buildFlags.quiet = false
	historyFlags.limit = 20
	historyFlags.output = "text"
}
