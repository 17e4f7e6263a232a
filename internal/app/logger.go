package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"whiteboard/internal/config"
)

// NewLogger builds the process logger. Output always goes to stderr so the
// stdio MCP transport keeps stdout to itself.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Production {
		zc = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

// logEmitter writes every hub event at debug level.
type logEmitter struct {
	log *zap.Logger
}

func (e logEmitter) Emit(_ context.Context, event string, data any) {
	if ce := e.log.Check(zap.DebugLevel, "event"); ce != nil {
		ce.Write(zap.String("event", event), zap.Any("data", data))
	}
}
