// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package plugin

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonmartin721/living-story-world/internal/bus"
	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSupervisor struct {
	status    *model.BackendStatus
	readiness *model.ReadinessResult
	exited    chan struct{}
	shutdowns atomic.Int32
	mu        sync.Mutex
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{
		status: &model.BackendStatus{
			State:   "running",
			PID:     4242,
			Alive:   true,
			Command: []string{"python3", "-m", "living_storyworld.cli", "web", "--no-browser"},
		},
		readiness: &model.ReadinessResult{Probe: config.ProbeHTTP, Ready: true, Attempts: 3},
		exited:    make(chan struct{}),
	}
}

func (f *fakeSupervisor) Status(context.Context) *model.BackendStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := *f.status

	return &status
}

func (f *fakeSupervisor) Readiness() *model.ReadinessResult {
	return f.readiness
}

func (f *fakeSupervisor) Exited() <-chan struct{} {
	return f.exited
}

func (f *fakeSupervisor) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	return nil
}

func (f *fakeSupervisor) exit(state string) {
	f.mu.Lock()
	f.status.State = state
	f.status.Alive = false
	f.status.ExitError = "exit status 3"
	f.mu.Unlock()

	close(f.exited)
}

func testConfig(frequency time.Duration) *config.Config {
	return &config.Config{
		Monitor:  &config.Monitor{Frequency: frequency},
		Shutdown: &config.Shutdown{GracePeriod: time.Second, KillTimeout: time.Second},
	}
}

func startMonitor(t *testing.T, supervisor *fakeSupervisor, frequency time.Duration) *bus.FakeMessagePipe {
	t.Helper()

	monitor := NewBackendMonitor(testConfig(frequency), supervisor)
	messagePipe := bus.NewFakeMessagePipe()
	require.NoError(t, messagePipe.Register(10, []bus.Plugin{monitor}))
	require.NoError(t, monitor.Init(context.Background(), messagePipe))

	t.Cleanup(func() {
		assert.NoError(t, monitor.Close(context.Background()))
	})

	return messagePipe
}

func TestBackendMonitor_Init(t *testing.T) {
	supervisor := newFakeSupervisor()
	messagePipe := startMonitor(t, supervisor, time.Hour)

	require.Eventually(t, func() bool {
		return len(messagePipe.GetMessagesByTopic(bus.BackendStatusTopic)) == 1
	}, time.Second, 5*time.Millisecond)

	ready := messagePipe.GetMessagesByTopic(bus.BackendReadyTopic)
	require.Len(t, ready, 1)
	assert.Equal(t, supervisor.readiness, ready[0].Data)

	status, ok := messagePipe.GetMessagesByTopic(bus.BackendStatusTopic)[0].Data.(*model.BackendStatus)
	require.True(t, ok)
	assert.Equal(t, int32(4242), status.PID)
	assert.True(t, status.Alive)
}

func TestBackendMonitor_Init_NotWaited(t *testing.T) {
	supervisor := newFakeSupervisor()
	supervisor.readiness = nil
	messagePipe := startMonitor(t, supervisor, time.Hour)

	require.Eventually(t, func() bool {
		return len(messagePipe.GetMessagesByTopic(bus.BackendStatusTopic)) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, messagePipe.GetMessagesByTopic(bus.BackendReadyTopic))
}

func TestBackendMonitor_StatusUpdates(t *testing.T) {
	messagePipe := startMonitor(t, newFakeSupervisor(), 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(messagePipe.GetMessagesByTopic(bus.BackendStatusTopic)) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestBackendMonitor_UnexpectedExit(t *testing.T) {
	supervisor := newFakeSupervisor()
	messagePipe := startMonitor(t, supervisor, 5*time.Millisecond)

	supervisor.exit("running")

	require.Eventually(t, func() bool {
		return len(messagePipe.GetMessagesByTopic(bus.BackendExitedTopic)) == 1
	}, time.Second, 5*time.Millisecond)

	// later status ticks still see a dead backend but must not report it again
	time.Sleep(50 * time.Millisecond)

	exited := messagePipe.GetMessagesByTopic(bus.BackendExitedTopic)
	require.Len(t, exited, 1)
	status, ok := exited[0].Data.(*model.BackendStatus)
	require.True(t, ok)
	assert.Equal(t, "exit status 3", status.ExitError)
}

func TestBackendMonitor_RequestedExit(t *testing.T) {
	supervisor := newFakeSupervisor()
	messagePipe := startMonitor(t, supervisor, 5*time.Millisecond)

	supervisor.exit("stopping")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, messagePipe.GetMessagesByTopic(bus.BackendExitedTopic))
}

func TestBackendMonitor_Process(t *testing.T) {
	supervisor := newFakeSupervisor()
	monitor := NewBackendMonitor(testConfig(time.Hour), supervisor)

	monitor.Process(context.Background(), &bus.Message{Topic: bus.BackendStatusTopic})
	assert.Equal(t, int32(0), supervisor.shutdowns.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	monitor.Process(ctx, &bus.Message{Topic: bus.WindowDestroyedTopic})
	assert.Equal(t, int32(1), supervisor.shutdowns.Load())
}

func TestBackendMonitor_Info(t *testing.T) {
	monitor := NewBackendMonitor(testConfig(time.Second), newFakeSupervisor())

	assert.Equal(t, "backend-monitor", monitor.Info().Name)
	assert.Equal(t, []string{bus.WindowDestroyedTopic}, monitor.Subscriptions())
}
