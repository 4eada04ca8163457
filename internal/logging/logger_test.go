package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"webqa/internal/config"
)

func TestNew_Levels(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "webqa.log")
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	For(logger, CategoryCapture).Info("captured", zap.String("target", "desktop"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"logger":"capture"`) || !strings.Contains(line, `"target":"desktop"`) {
		t.Errorf("unexpected log line: %s", line)
	}
}

func TestFor_NamesCategory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	For(zap.New(core), CategoryMatrix).Debug("state", zap.String("to", "LOADED"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "matrix" {
		t.Errorf("expected logger name matrix, got %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["to"] != "LOADED" {
		t.Errorf("missing field: %v", entries[0].ContextMap())
	}
}

func TestFor_NilLogger(t *testing.T) {
	l := For(nil, CategoryBoot)
	if l == nil {
		t.Fatal("expected no-op logger")
	}
	l.Info("dropped")
}

func TestFilterCategories(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(FilterCategories(core, map[Category]bool{CategoryBrowser: true}))

	For(logger, CategoryBrowser).Info("launch")
	For(logger, CategoryBrowser).Named("rod").With(zap.String("engine", "chromium")).Info("navigate")
	For(logger, CategoryDiff).Info("compared")

	if logs.Len() != 1 {
		t.Fatalf("expected only the diff entry, got %d", logs.Len())
	}
	if logs.All()[0].Message != "compared" {
		t.Errorf("unexpected entry %q", logs.All()[0].Message)
	}
}

func TestDisabledCategories(t *testing.T) {
	got := disabledCategories(map[string]bool{"Browser": false, "diff": true})
	if !got[CategoryBrowser] || got[CategoryDiff] {
		t.Errorf("unexpected disabled set: %v", got)
	}
}
