// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonmartin721/living-story-world/internal/bus"
	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/internal/model"
)

var errBackendExited = errors.New("backend exited unexpectedly")

// Headless runs without a window: it keeps the shell alive until it is interrupted or the backend dies.
type Headless struct {
	messagePipe bus.MessagePipeInterface
	exited      chan *model.BackendStatus
	opener      Opener
	url         string
	mutex       sync.Mutex
	openBrowser bool
	opened      bool
}

var _ Window = (*Headless)(nil)

func NewHeadless(shellConfig *config.Config) *Headless {
	return &Headless{
		url:         shellConfig.Backend.URL(),
		exited:      make(chan *model.BackendStatus, 1),
		opener:      openInBrowser,
		openBrowser: shellConfig.OpenBrowser,
	}
}

func (h *Headless) Init(ctx context.Context, messagePipe bus.MessagePipeInterface) error {
	slog.DebugContext(ctx, "Starting headless window plugin")

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.messagePipe = messagePipe

	return nil
}

func (*Headless) Close(ctx context.Context) error {
	slog.DebugContext(ctx, "Closing headless window plugin")
	return nil
}

func (*Headless) Info() *bus.Info {
	return &bus.Info{
		Name: pluginName,
	}
}

func (*Headless) Subscriptions() []string {
	return subscriptions()
}

func (h *Headless) Process(ctx context.Context, msg *bus.Message) {
	switch msg.Topic {
	case bus.BackendReadyTopic:
		readiness, ok := msg.Data.(*model.ReadinessResult)
		if !ok || readiness == nil {
			return
		}

		if readiness.Ready {
			slog.InfoContext(ctx, Title+" is ready", "url", h.url)
			h.openOnce(ctx)
		} else {
			slog.WarnContext(ctx, Title+" may not be reachable yet", "url", h.url, "error", readiness.Error)
		}
	case bus.BackendStatusTopic:
		if status, ok := msg.Data.(*model.BackendStatus); ok {
			slog.DebugContext(ctx, "Backend status", "state", status.State, "pid", status.PID, "alive", status.Alive)
		}
	case bus.BackendExitedTopic:
		status, ok := msg.Data.(*model.BackendStatus)
		if !ok {
			return
		}

		select {
		case h.exited <- status:
		default:
		}
	}
}

// openOnce opens the web interface the first time the backend is ready, if configured to.
func (h *Headless) openOnce(ctx context.Context) {
	h.mutex.Lock()
	if !h.openBrowser || h.opened {
		h.mutex.Unlock()
		return
	}
	h.opened = true
	h.mutex.Unlock()

	openURL(ctx, h.opener, h.url)
}

// Run blocks until ctx is done, which is a clean exit, or the backend exits on its own, which is not.
func (h *Headless) Run(ctx context.Context) error {
	slog.InfoContext(ctx, Title+" is running, press Ctrl+C to stop", "url", h.url)

	var err error

	select {
	case <-ctx.Done():
	case status := <-h.exited:
		err = fmt.Errorf("%w: pid %d, %s", errBackendExited, status.PID, status.ExitError)
	}

	h.mutex.Lock()
	messagePipe := h.messagePipe
	h.mutex.Unlock()
	publishDestroyed(ctx, messagePipe)

	return err
}
