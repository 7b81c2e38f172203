package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"experimenter/internal/config"
	"experimenter/internal/logging"
	"experimenter/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("server started", logging.String("bind", "127.0.0.1:7001"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "server started" || entry["level"] != "info" || entry["bind"] != "127.0.0.1:7001" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	ts, _ := entry["ts"].(string)
	if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", ts); err != nil {
		t.Fatalf("expected millisecond ts, got %v (%v)", entry["ts"], err)
	}
}

func TestJSONLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("bugzilla request",
		logging.String("api_key", "bz-secret"),
		slog.Group("request", slog.String("Authorization", "Bearer abc")),
		logging.String("host", "https://bugzilla.test"),
	)

	line := buf.String()
	for _, secret := range []string{"bz-secret", "Bearer abc"} {
		if strings.Contains(line, secret) {
			t.Fatalf("secret %q leaked into %q", secret, line)
		}
	}
	if !strings.Contains(line, `"host":"https://bugzilla.test"`) || strings.Count(line, "[redacted]") != 2 {
		t.Fatalf("unexpected entry %q", line)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "tasks").Info("task failed", logging.String("kind", "create_experiment_bug"), logging.Int("attempts", 2))

	line := buf.String()
	for _, fragment := range []string{"INFO tasks: task failed", "kind=create_experiment_bug", "attempts=2"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no source location at info level, got %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no colour codes for a buffer, got %q", line)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with source")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected source location, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRequestID(context.Background(), "req-1")
	ctx = services.WithExperiment(ctx, "pref-flip")
	ctx = services.WithTaskID(ctx, 7)

	logging.WithContext(ctx, logger).Info("handled")

	out := buf.String()
	for _, fragment := range []string{`"request_id":"req-1"`, `"experiment":"pref-flip"`, `"task_id":7`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in %q", fragment, out)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logging.NewNop().Error("ignored")
	logging.WithContext(context.Background(), nil).Info("also ignored")
}
