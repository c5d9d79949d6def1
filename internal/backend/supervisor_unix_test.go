// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

//go:build unix

package backend

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonmartin721/living-story-world/internal/backoff"
	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSignaller struct {
	next       processSignaller
	terminated atomic.Int32
	killed     atomic.Int32
}

func (c *countingSignaller) Terminate(ctx context.Context, pid int32) error {
	c.terminated.Add(1)
	return c.next.Terminate(ctx, pid)
}

func (c *countingSignaller) Kill(ctx context.Context, pid int32) error {
	c.killed.Add(1)
	return c.next.Kill(ctx, pid)
}

func testParameters(t *testing.T) *Parameters {
	t.Helper()

	return &Parameters{
		Command:     LaunchCommand(runtime.GOOS),
		LogPath:     filepath.Join(t.TempDir(), "backend.log"),
		URL:         "http://127.0.0.1:8001",
		InstanceID:  "0b3c4f8e-5b7a-5d6e-9a1b-2c3d4e5f6a7b",
		WarmUp:      10 * time.Millisecond,
		GracePeriod: 2 * time.Second,
		KillTimeout: 2 * time.Second,
		Readiness: &backoff.Settings{
			InitialInterval:     10 * time.Millisecond,
			MaxInterval:         50 * time.Millisecond,
			MaxElapsedTime:      300 * time.Millisecond,
			Multiplier:          1.5,
			RandomizationFactor: 0.1,
		},
	}
}

func newTestSupervisor(t *testing.T, params *Parameters) (*Supervisor, *countingSignaller) {
	t.Helper()

	supervisor := NewSupervisor(params)
	signaller := &countingSignaller{next: supervisor.signaller}
	supervisor.signaller = signaller

	t.Cleanup(func() {
		assert.NoError(t, supervisor.Shutdown(context.Background()))
	})

	return supervisor, signaller
}

func TestSupervisor_Start(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	params := testParameters(t)
	supervisor, _ := newTestSupervisor(t, params)

	assert.Nil(t, supervisor.Handle())
	require.NoError(t, supervisor.Start(context.Background()))

	handle := supervisor.Handle()
	require.NotNil(t, handle)
	assert.Equal(t, Starting, supervisor.State())
	assert.Positive(t, handle.PID())
	assert.False(t, handle.Exited())
	assert.Equal(t, []string{"python3", "-m", "living_storyworld.cli", "web", "--no-browser"}, handle.Args())

	assert.Eventually(t, func() bool {
		return logContains(params.LogPath, "python3 -m living_storyworld.cli web --no-browser")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSupervisor_Start_SpawnFailure(t *testing.T) {
	helpers.MissingInterpreter(t)
	supervisor, signaller := newTestSupervisor(t, testParameters(t))

	err := supervisor.Start(context.Background())

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	require.ErrorIs(t, err, exec.ErrNotFound)
	assert.Equal(t, "python3", spawnErr.Command.Name)
	assert.Nil(t, supervisor.Handle())
	assert.Equal(t, Stopped, supervisor.State())

	require.NoError(t, supervisor.Shutdown(context.Background()))
	assert.Equal(t, int32(0), signaller.terminated.Load())

	select {
	case <-supervisor.Stopped():
	default:
		t.Fatal("supervisor should be stopped after a failed spawn")
	}
}

func TestSupervisor_Start_Twice(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	supervisor, _ := newTestSupervisor(t, testParameters(t))

	require.NoError(t, supervisor.Start(context.Background()))
	handle := supervisor.Handle()

	require.ErrorIs(t, supervisor.Start(context.Background()), ErrAlreadyStarted)
	assert.Same(t, handle, supervisor.Handle())
}

func TestSupervisor_Shutdown_NeverStarted(t *testing.T) {
	supervisor, signaller := newTestSupervisor(t, testParameters(t))

	require.NoError(t, supervisor.Shutdown(context.Background()))
	require.NoError(t, supervisor.Shutdown(context.Background()))

	assert.Equal(t, NotStarted, supervisor.State())
	assert.Equal(t, int32(0), signaller.terminated.Load())
}

func TestSupervisor_Shutdown_TerminatesOnce(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	supervisor, signaller := newTestSupervisor(t, testParameters(t))
	require.NoError(t, supervisor.Start(context.Background()))
	handle := supervisor.Handle()

	require.NoError(t, supervisor.Shutdown(context.Background()))

	assert.Equal(t, int32(1), signaller.terminated.Load())
	assert.Equal(t, int32(0), signaller.killed.Load())
	assert.True(t, handle.Exited())
	assert.Nil(t, supervisor.Handle())
	assert.Equal(t, Stopped, supervisor.State())

	require.NoError(t, supervisor.Shutdown(context.Background()))
	assert.Equal(t, int32(1), signaller.terminated.Load())
}

func TestSupervisor_Shutdown_Concurrent(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	supervisor, signaller := newTestSupervisor(t, testParameters(t))
	require.NoError(t, supervisor.Start(context.Background()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, supervisor.Shutdown(context.Background()))
			assert.Equal(t, Stopped, supervisor.State())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), signaller.terminated.Load())
}

func TestSupervisor_Shutdown_KillsStubbornBackend(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.StubbornBackend)
	params := testParameters(t)
	params.GracePeriod = 300 * time.Millisecond
	supervisor, signaller := newTestSupervisor(t, params)
	require.NoError(t, supervisor.Start(context.Background()))
	handle := supervisor.Handle()

	// the TERM trap has to be installed before the termination request is sent
	require.Eventually(t, func() bool {
		return logContains(params.LogPath, "living_storyworld.cli")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, supervisor.Shutdown(context.Background()))

	assert.Equal(t, int32(1), signaller.terminated.Load())
	assert.Equal(t, int32(1), signaller.killed.Load())
	assert.True(t, handle.Exited())
	assert.Equal(t, Stopped, supervisor.State())
}

func TestSupervisor_Shutdown_CrashedBackend(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.CrashingBackend)
	supervisor, signaller := newTestSupervisor(t, testParameters(t))
	require.NoError(t, supervisor.Start(context.Background()))
	handle := supervisor.Handle()

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("backend did not exit")
	}

	var exitErr *exec.ExitError
	require.ErrorAs(t, handle.ExitErr(), &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())

	status := supervisor.Status(context.Background())
	assert.False(t, status.Alive)
	assert.Equal(t, "exit status 3", status.ExitError)

	require.NoError(t, supervisor.Shutdown(context.Background()))
	assert.Equal(t, int32(0), signaller.terminated.Load())
	assert.Equal(t, int32(0), signaller.killed.Load())
	assert.Equal(t, Stopped, supervisor.State())
}

func TestSupervisor_Status_DuringShutdown(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	supervisor, _ := newTestSupervisor(t, testParameters(t))
	require.NoError(t, supervisor.Start(context.Background()))
	handle := supervisor.Handle()
	pid := handle.PID()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				observed := supervisor.Handle()
				if observed != nil && observed != handle {
					t.Errorf("observed a different handle")
				}

				status := supervisor.Status(context.Background())
				if status.PID != 0 && status.PID != pid {
					t.Errorf("observed pid %d, expected %d", status.PID, pid)
				}
				if status.PID != 0 && len(status.Command) != 5 {
					t.Errorf("observed partial command %v", status.Command)
				}
			}
		}()
	}

	require.NoError(t, supervisor.Shutdown(context.Background()))
	close(done)
	wg.Wait()

	status := supervisor.Status(context.Background())
	assert.Equal(t, Stopped.String(), status.State)
	assert.Equal(t, int32(0), status.PID)
	assert.Nil(t, supervisor.Handle())
}

func TestSupervisor_Status(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	supervisor, _ := newTestSupervisor(t, testParameters(t))

	status := supervisor.Status(context.Background())
	assert.Equal(t, NotStarted.String(), status.State)
	assert.Equal(t, "http://127.0.0.1:8001", status.URL)
	assert.Equal(t, "0b3c4f8e-5b7a-5d6e-9a1b-2c3d4e5f6a7b", status.InstanceID)
	assert.False(t, status.Alive)

	require.NoError(t, supervisor.Start(context.Background()))
	_, err := supervisor.WaitReady(context.Background())
	require.NoError(t, err)

	status = supervisor.Status(context.Background())
	assert.Equal(t, Running.String(), status.State)
	assert.Equal(t, supervisor.Handle().PID(), status.PID)
	assert.Equal(t, "python3 -m living_storyworld.cli web --no-browser", status.CommandLine())
	assert.True(t, status.Alive)
	assert.True(t, status.Ready)
	assert.Equal(t, "0b3c4f8e-5b7a-5d6e-9a1b-2c3d4e5f6a7b", status.InstanceID)
	require.NotNil(t, status.Process)
	assert.Equal(t, status.PID, status.Process.PID)
}

func TestSupervisor_WaitReady_WarmUp(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	params := testParameters(t)
	params.WarmUp = config.DefReadinessWarmUp
	supervisor, _ := newTestSupervisor(t, params)
	require.NoError(t, supervisor.Start(context.Background()))

	start := time.Now()
	result, err := supervisor.WaitReady(context.Background())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
	assert.True(t, result.Ready)
	assert.Equal(t, config.ProbeNone, result.Probe)
	assert.Equal(t, Running, supervisor.State())
	assert.Same(t, result, supervisor.Readiness())
}

func TestSupervisor_WaitReady_Probe(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	params := testParameters(t)
	params.Probe = NewTCPProbe(listener.Addr().String(), time.Second)
	supervisor, _ := newTestSupervisor(t, params)
	require.NoError(t, supervisor.Start(context.Background()))

	result, err := supervisor.WaitReady(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Ready)
	assert.Equal(t, config.ProbeTCP, result.Probe)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, Running, supervisor.State())
}

func TestSupervisor_WaitReady_NotReady(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	params := testParameters(t)
	params.Probe = NewTCPProbe(closedAddress(t), 100*time.Millisecond)
	supervisor, _ := newTestSupervisor(t, params)
	require.NoError(t, supervisor.Start(context.Background()))

	result, err := supervisor.WaitReady(context.Background())

	require.ErrorIs(t, err, ErrNotReady)
	assert.False(t, result.Ready)
	assert.Greater(t, result.Attempts, 1)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, Running, supervisor.State())
	assert.False(t, supervisor.Status(context.Background()).Ready)
}

func TestSupervisor_WaitReady_BackendExited(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.CrashingBackend)
	params := testParameters(t)
	params.Probe = NewTCPProbe(closedAddress(t), 100*time.Millisecond)
	params.Readiness.MaxElapsedTime = 5 * time.Second
	supervisor, _ := newTestSupervisor(t, params)
	require.NoError(t, supervisor.Start(context.Background()))

	_, err := supervisor.WaitReady(context.Background())

	require.ErrorIs(t, err, ErrBackendExited)
	assert.NotErrorIs(t, err, ErrNotReady)
}

func TestSupervisor_WaitReady_ContextCancelled(t *testing.T) {
	helpers.FakeInterpreter(t, helpers.GracefulBackend)
	params := testParameters(t)
	params.WarmUp = time.Minute
	supervisor, _ := newTestSupervisor(t, params)
	require.NoError(t, supervisor.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := supervisor.WaitReady(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Running, supervisor.State())
}

func TestSupervisor_WaitReady_NotStarted(t *testing.T) {
	supervisor, _ := newTestSupervisor(t, testParameters(t))

	_, err := supervisor.WaitReady(context.Background())

	require.ErrorIs(t, err, ErrNotStarted)
}

func TestParametersFromConfig(t *testing.T) {
	cfg := &config.Config{
		UUID: "0b3c4f8e-5b7a-5d6e-9a1b-2c3d4e5f6a7b",
		Backend: &config.Backend{
			Host:       config.DefBackendHost,
			Port:       config.DefBackendPort,
			WorkingDir: "/opt/storyworld",
			LogPath:    "/tmp/backend.log",
		},
		Readiness: &config.Readiness{
			Probe:          config.ProbeHTTP,
			WarmUp:         config.DefReadinessWarmUp,
			Timeout:        config.DefReadinessTimeout,
			MaxElapsedTime: config.DefReadinessMaxElapsedTime,
		},
		Shutdown: &config.Shutdown{
			GracePeriod: config.DefShutdownGracePeriod,
			KillTimeout: config.DefShutdownKillTimeout,
		},
	}

	params, err := ParametersFromConfig(cfg, LaunchCommand("linux"))

	require.NoError(t, err)
	assert.IsType(t, &HTTPProbe{}, params.Probe)
	assert.Equal(t, "http://127.0.0.1:8001", params.URL)
	assert.Equal(t, "/opt/storyworld", params.WorkingDir)
	assert.Equal(t, cfg.UUID, params.InstanceID)
	assert.Equal(t, config.DefReadinessMaxElapsedTime, params.Readiness.MaxElapsedTime)
	assert.Equal(t, config.DefShutdownGracePeriod, params.GracePeriod)

	cfg.Readiness.Probe = "udp"
	_, err = ParametersFromConfig(cfg, LaunchCommand("linux"))
	require.Error(t, err)
}

func logContains(path, substr string) bool {
	content, err := os.ReadFile(path)

	return err == nil && strings.Contains(string(content), substr)
}
