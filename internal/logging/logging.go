// Package logging wires the structured loggers used throughout the
// indexer: a logrus logger for business events (mirroring the
// lg *logrus.Logger injection pattern used by every subsystem
// constructor) and a zap logger for the block driver's hot path, where
// allocation overhead per log call matters across thousands of txs per
// block.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the business-event logger. runesInternals/chainhookInternals
// mirror the [logs] config section: when either is set the logger runs at
// Debug level, otherwise Info.
func New(runesInternals, chainhookInternals bool) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(os.Stdout)
	lg.SetFormatter(&logrus.JSONFormatter{})
	if runesInternals || chainhookInternals {
		lg.SetLevel(logrus.DebugLevel)
	} else {
		lg.SetLevel(logrus.InfoLevel)
	}
	return lg
}

// NewHotPath builds the low-allocation zap logger used by the block driver
// for per-block/per-tx progress logging.
func NewHotPath(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	lg, err := cfg.Build()
	if err != nil {
		// zap's production config only fails to build on a broken sink;
		// fall back to a no-op rather than crash a caller that just wants
		// a logger.
		return zap.NewNop()
	}
	return lg
}
