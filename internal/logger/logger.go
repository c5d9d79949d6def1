// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/pkg/id"
)

const (
	defaultLogFile = "storyworld.log"
	filePermission = 0o600

	CorrelationIDKey = "correlation_id"
	BackendPIDKey    = "backend_pid"
)

var (
	logLevels = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	CorrelationIDContextKey = contextKey(CorrelationIDKey)
	BackendPIDContextKey    = contextKey(BackendPIDKey)
)

type (
	contextKey string

	contextHandler struct {
		slog.Handler
		keys []any
	}
)

// New builds the shell logger. The returned io.Closer releases the log file, if one was opened.
func New(logConfig *config.Log) (*slog.Logger, io.Closer) {
	handlerOptions := &slog.HandlerOptions{
		Level: LogLevel(logConfig.Level),
	}

	if LogLevel(logConfig.Level) == slog.LevelDebug {
		handlerOptions.AddSource = true
		handlerOptions.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, ok := a.Value.Any().(*slog.Source)
				if ok {
					directory := filepath.Dir(source.File)
					relativePath := path.Join(filepath.Base(directory), filepath.Base(source.File))
					a.Value = slog.StringValue(relativePath + ":" + strconv.Itoa(source.Line))
				}
			}

			return a
		}
	}

	writer := logWriter(logConfig.Path)

	handler := slog.NewTextHandler(writer, handlerOptions)

	return slog.New(
		contextHandler{
			handler, []any{
				CorrelationIDContextKey,
				BackendPIDContextKey,
			},
		}), closer(writer)
}

func LogLevel(level string) slog.Level {
	if level == "" {
		return slog.LevelInfo
	}

	logLevel, ok := logLevels[strings.ToLower(level)]
	if !ok {
		return slog.LevelInfo
	}

	return logLevel
}

// logWriter never writes to stdout, the window owns the terminal.
func logWriter(logFile string) io.Writer {
	logPath := logFile
	if logFile == "" {
		return os.Stderr
	}

	fileInfo, err := os.Stat(logPath)
	if err != nil {
		slog.Error("Error reading log path, proceeding to log only to stderr", "error", err)

		return os.Stderr
	}

	if fileInfo.IsDir() {
		logPath = path.Join(logPath, defaultLogFile)
	}

	logFileHandle, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePermission)
	if err != nil {
		slog.Error("Failed to open log file, proceeding to log only to stderr", "error", err)

		return os.Stderr
	}

	return logFileHandle
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func closer(writer io.Writer) io.Closer {
	if file, ok := writer.(*os.File); ok && file != os.Stderr {
		return file
	}

	return nopCloser{}
}

func (c contextKey) String() string {
	return string(c)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.observe(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs), h.keys}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name), h.keys}
}

func (h contextHandler) observe(ctx context.Context) (as []slog.Attr) {
	for _, k := range h.keys {
		a, ok := ctx.Value(k).(slog.Attr)
		if !ok {
			continue
		}
		a.Value = a.Value.Resolve()
		as = append(as, a)
	}

	return as
}

func GenerateCorrelationID() slog.Attr {
	return slog.Any(CorrelationIDKey, id.GenerateMessageID())
}

// WithCorrelationID returns a context carrying a fresh correlation ID, so every log line of one
// lifecycle operation (start, shutdown) can be grouped.
func WithCorrelationID(ctx context.Context) context.Context {
	return context.WithValue(ctx, CorrelationIDContextKey, GenerateCorrelationID())
}

func CorrelationID(ctx context.Context) string {
	return CorrelationIDAttr(ctx).Value.String()
}

func CorrelationIDAttr(ctx context.Context) slog.Attr {
	value, ok := ctx.Value(CorrelationIDContextKey).(slog.Attr)
	if !ok {
		correlationID := GenerateCorrelationID()
		slog.DebugContext(
			ctx,
			"Correlation ID not found in context, generating new correlation ID",
			correlationID)

		return correlationID
	}

	return value
}

func WithBackendPID(ctx context.Context, pid int32) context.Context {
	return context.WithValue(ctx, BackendPIDContextKey, slog.Int(BackendPIDKey, int(pid)))
}
