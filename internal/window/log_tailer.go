// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package window

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/nxadm/tail"
)

var tailConfig = tail.Config{
	Follow:    true,
	ReOpen:    true,
	MustExist: false,
	Poll:      true,
	Location: &tail.SeekInfo{
		Whence: io.SeekEnd,
	},
	Logger: tail.DiscardingLogger,
}

// Tailer follows the backend log file from its current end.
type Tailer struct {
	handle *tail.Tail
}

func NewTailer(file string) (*Tailer, error) {
	t, err := tail.TailFile(file, tailConfig)
	if err != nil {
		return nil, err
	}

	return &Tailer{t}, nil
}

// Tail sends every new non-empty line to data until ctx is done.
func (t *Tailer) Tail(ctx context.Context, data chan<- string) {
	for {
		select {
		case line, ok := <-t.handle.Lines:
			if !ok {
				return
			}

			lineContent := parseLine(line)
			if lineContent == "" {
				continue
			}

			select {
			case data <- lineContent:
			case <-ctx.Done():
				handleContextDone(ctx)
				return
			}
		case <-ctx.Done():
			handleContextDone(ctx)

			return
		}
	}
}

// Stop releases the file. It must be called once Tail has returned.
func (t *Tailer) Stop() {
	if err := t.handle.Stop(); err != nil {
		slog.Debug("Failed to stop backend log tailer", "error", err)
	}

	t.handle.Cleanup()
}

func parseLine(line *tail.Line) string {
	if line == nil {
		return ""
	}

	if line.Err != nil {
		return ""
	}

	return strings.TrimRight(line.Text, "\r")
}

func handleContextDone(ctx context.Context) {
	ctxErr := ctx.Err()
	switch ctxErr {
	case context.DeadlineExceeded:
		slog.DebugContext(ctx, "Tailer canceled because deadline was exceeded", "error", ctxErr)
	case context.Canceled:
		slog.DebugContext(ctx, "Tailer forcibly canceled", "error", ctxErr)
	}
	slog.DebugContext(ctx, "Tailer is done")
}
