// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

// Package window presents the running backend to the user. Run blocks for as long as the window is open;
// its return is the window-destroyed event.
package window

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonmartin721/living-story-world/internal/bus"
)

const (
	pluginName     = "window"
	publishTimeout = time.Second

	Title = "Living Storyworld"
)

type Window interface {
	bus.Plugin
	Run(ctx context.Context) error
}

func subscriptions() []string {
	return []string{
		bus.BackendReadyTopic,
		bus.BackendStatusTopic,
		bus.BackendExitedTopic,
	}
}

// publishDestroyed tells the other plugins the window is gone. The run context is typically cancelled
// by then, so the message is queued on a detached one.
func publishDestroyed(ctx context.Context, messagePipe bus.MessagePipeInterface) {
	if messagePipe == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	slog.DebugContext(publishCtx, "Window destroyed")
	messagePipe.Process(publishCtx, &bus.Message{Topic: bus.WindowDestroyedTopic})
}
