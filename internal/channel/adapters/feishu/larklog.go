package feishu

import (
	"context"
	"fmt"
	"log/slog"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// larkSlogLogger bridges the lark SDK's logger to slog.
type larkSlogLogger struct {
	logger *slog.Logger
}

func newLarkSlogLogger(log *slog.Logger) larkcore.Logger {
	if log == nil {
		log = slog.Default()
	}
	return &larkSlogLogger{logger: log.With(slog.String("component", "lark_sdk"))}
}

func (l *larkSlogLogger) Debug(_ context.Context, args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *larkSlogLogger) Info(_ context.Context, args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *larkSlogLogger) Warn(_ context.Context, args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *larkSlogLogger) Error(_ context.Context, args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}
