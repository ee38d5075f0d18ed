package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"Warning": WARN,
		"error":   ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) should fail")
	}
}

func TestInitLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Level: INFO, Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Init(Options{Level: INFO})

	Debug("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry written at info level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warn entry missing: %q", out)
	}
	if Enabled(DEBUG) {
		t.Error("Enabled(DEBUG) should be false at info level")
	}
}

func TestInitWritesFileAndRunID(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "clusterops.log")
	if err := Init(Options{Level: DEBUG, Output: &buf, File: path, RunID: "abc123"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Debug("exec redis-cli -h %s", "10.0.0.1")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	defer Init(Options{Level: INFO})

	if GetLogFilePath() != path {
		t.Errorf("GetLogFilePath = %q, want %q", GetLogFilePath(), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, out := range []string{buf.String(), string(data)} {
		if !strings.Contains(out, "exec redis-cli -h 10.0.0.1") || !strings.Contains(out, "run=abc123") {
			t.Errorf("entry missing message or run field: %q", out)
		}
	}
}
