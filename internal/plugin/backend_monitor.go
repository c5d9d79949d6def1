// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package plugin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonmartin721/living-story-world/internal/backend"
	"github.com/jonmartin721/living-story-world/internal/bus"
	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/internal/logger"
	"github.com/jonmartin721/living-story-world/internal/model"
)

// Supervisor is the part of backend.Supervisor the monitor depends on.
type Supervisor interface {
	Status(ctx context.Context) *model.BackendStatus
	Readiness() *model.ReadinessResult
	Exited() <-chan struct{}
	Shutdown(ctx context.Context) error
}

// BackendMonitor publishes the state of the supervised backend on the message pipe and stops the
// backend when the window is destroyed.
type BackendMonitor struct {
	supervisor          Supervisor
	messagePipe         bus.MessagePipeInterface
	cancel              context.CancelFunc
	monitoringFrequency time.Duration
	shutdownTimeout     time.Duration
	exitReported        bool
	mutex               sync.Mutex
}

var _ bus.Plugin = (*BackendMonitor)(nil)

func NewBackendMonitor(shellConfig *config.Config, supervisor Supervisor) *BackendMonitor {
	return &BackendMonitor{
		supervisor:          supervisor,
		monitoringFrequency: shellConfig.Monitor.Frequency,
		shutdownTimeout:     shellConfig.Shutdown.Timeout(),
		mutex:               sync.Mutex{},
	}
}

func (bm *BackendMonitor) Init(ctx context.Context, messagePipe bus.MessagePipeInterface) error {
	slog.DebugContext(ctx, "Starting backend monitor plugin", "monitoring_period", bm.monitoringFrequency)

	bm.mutex.Lock()
	bm.messagePipe = messagePipe
	var monitorCtx context.Context
	monitorCtx, bm.cancel = context.WithCancel(ctx)
	bm.mutex.Unlock()

	if readiness := bm.supervisor.Readiness(); readiness != nil {
		messagePipe.Process(ctx, &bus.Message{Topic: bus.BackendReadyTopic, Data: readiness})
	}

	go bm.run(monitorCtx)

	return nil
}

func (bm *BackendMonitor) Close(ctx context.Context) error {
	slog.DebugContext(ctx, "Closing backend monitor plugin")

	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	if bm.cancel != nil {
		bm.cancel()
	}

	return nil
}

func (*BackendMonitor) Info() *bus.Info {
	return &bus.Info{
		Name: "backend-monitor",
	}
}

func (bm *BackendMonitor) Process(ctx context.Context, msg *bus.Message) {
	if msg.Topic != bus.WindowDestroyedTopic {
		return
	}

	// the pipe context is usually already cancelled by the time the window is gone
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bm.shutdownTimeout)
	defer cancel()

	slog.DebugContext(shutdownCtx, "Window destroyed, shutting down backend")

	if err := bm.supervisor.Shutdown(shutdownCtx); err != nil {
		slog.WarnContext(shutdownCtx, "Backend shutdown did not complete", "error", err)
	}
}

func (*BackendMonitor) Subscriptions() []string {
	return []string{
		bus.WindowDestroyedTopic,
	}
}

func (bm *BackendMonitor) run(ctx context.Context) {
	bm.publishStatus(logger.WithCorrelationID(ctx))

	ticker := time.NewTicker(bm.monitoringFrequency)
	defer ticker.Stop()

	exited := bm.supervisor.Exited()

	for {
		select {
		case <-ctx.Done():
			return
		case <-exited:
			// a nil channel blocks, so the exit is only handled once
			exited = nil
			bm.reportExit(logger.WithCorrelationID(ctx))
		case <-ticker.C:
			status := bm.publishStatus(ctx)
			if !status.Alive && status.PID != 0 {
				bm.reportExit(logger.WithCorrelationID(ctx))
			}
		}
	}
}

func (bm *BackendMonitor) publishStatus(ctx context.Context) *model.BackendStatus {
	status := bm.supervisor.Status(ctx)
	slog.DebugContext(ctx, "Backend status", "state", status.State, "pid", status.PID, "alive", status.Alive)

	bm.messagePipe.Process(ctx, &bus.Message{Topic: bus.BackendStatusTopic, Data: status})

	return status
}

// reportExit publishes backend-exited once, and only when the backend exited without being asked to.
func (bm *BackendMonitor) reportExit(ctx context.Context) {
	status := bm.supervisor.Status(ctx)
	if status.State == backend.Stopping.String() || status.State == backend.Stopped.String() {
		slog.DebugContext(ctx, "Backend exited after a shutdown request")
		return
	}

	bm.mutex.Lock()
	if bm.exitReported {
		bm.mutex.Unlock()
		return
	}
	bm.exitReported = true
	bm.mutex.Unlock()

	slog.WarnContext(logger.WithBackendPID(ctx, status.PID), "Backend exited unexpectedly",
		"exit_error", status.ExitError)

	bm.messagePipe.Process(ctx, &bus.Message{Topic: bus.BackendExitedTopic, Data: status})
}
