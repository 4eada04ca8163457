// Package logging builds the zap logger used across webqa and scopes it into
// categories. Libraries receive a *zap.Logger; nothing here is global.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"webqa/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // CLI startup, config resolution
	CategoryBrowser Category = "browser" // Launch, navigation, session teardown
	CategoryCapture Category = "capture" // Screenshot capture and artifact writes
	CategoryDiff    Category = "diff"    // Visual comparison
	CategoryMatrix  Category = "matrix"  // Cross-browser smoke protocol
	CategoryRunner  Category = "runner"  // Scheduling and target isolation
	CategoryReport  Category = "report"  // Summary and report output
)

// New builds a logger from cfg. An empty level means info; an empty format
// means console. When cfg.File is set, entries go to stderr and the file.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = lvl
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zcfg.Sampling = nil
	case "json":
		zcfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	zcfg.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.File)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if disabled := disabledCategories(cfg.Categories); len(disabled) > 0 {
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return FilterCategories(c, disabled)
		}))
	}
	return logger, nil
}

// For returns a logger named after the category. A nil logger yields a no-op
// logger so components can be constructed without one.
func For(l *zap.Logger, c Category) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(string(c))
}

// FilterCategories drops entries logged under any of the disabled categories.
// The category is the first segment of the entry's logger name.
func FilterCategories(core zapcore.Core, disabled map[Category]bool) zapcore.Core {
	return &categoryCore{Core: core, disabled: disabled}
}

type categoryCore struct {
	zapcore.Core
	disabled map[Category]bool
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	return &categoryCore{Core: c.Core.With(fields), disabled: c.disabled}
}

func (c *categoryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	name, _, _ := strings.Cut(ent.LoggerName, ".")
	if c.disabled[Category(name)] {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func disabledCategories(categories map[string]bool) map[Category]bool {
	out := make(map[Category]bool)
	for name, enabled := range categories {
		if !enabled {
			out[Category(strings.ToLower(name))] = true
		}
	}
	return out
}
