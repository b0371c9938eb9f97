// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration options.
type Config struct {
	Level   string // debug|info|warn|error
	Format  string // json|console
	Verbose bool   // forces debug level
}

// New creates a zap logger that writes to stderr.
// stdout is reserved for command output (JSON, TSV, CSV).
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, err
		}
	}
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "console"
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.LevelKey = "level"
	zcfg.EncoderConfig.MessageKey = "msg"
	zcfg.EncoderConfig.CallerKey = "caller"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "htan")), nil
}

// Sync flushes any buffered log entries.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}

// FromEnv creates a Config from HTAN_LOG_LEVEL, HTAN_LOG_FORMAT and HTAN_VERBOSE.
func FromEnv() Config {
	return Config{
		Level:   getenv("HTAN_LOG_LEVEL", "warn"),
		Format:  getenv("HTAN_LOG_FORMAT", "console"),
		Verbose: IsVerbose(),
	}
}

// IsVerbose reports whether HTAN_VERBOSE=1 is set.
func IsVerbose() bool {
	return os.Getenv("HTAN_VERBOSE") == "1"
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Component returns a zap field for the component name.
func Component(name string) zap.Field { return zap.String("component", name) }

// Database returns a zap field for a ClickHouse database name.
func Database(name string) zap.Field { return zap.String("database", name) }

// URL returns a zap field for a request URL with secrets masked.
func URL(u string) zap.Field { return zap.String("url", Mask(u)) }

// Source returns a zap field for a credential source tier.
func Source(tier string) zap.Field { return zap.String("source", tier) }

// SQL returns a zap field for query text.
func SQL(sql string) zap.Field { return zap.String("sql", sql) }

// Status returns a zap field for an HTTP status code.
func Status(code int) zap.Field { return zap.Int("status", code) }

// Rows returns a zap field for a row count.
func Rows(n int) zap.Field { return zap.Int("rows", n) }

// Entity returns a zap field for a Synapse ID, DRS URI or file ID.
func Entity(id string) zap.Field { return zap.String("entity", id) }
