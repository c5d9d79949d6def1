// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonmartin721/living-story-world/internal/backoff"
	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/internal/logger"
	"github.com/jonmartin721/living-story-world/internal/model"
)

const (
	logFilePermission = 0o600
	logDirPermission  = 0o750
)

type processSignaller interface {
	// Terminate asks the process to exit.
	Terminate(ctx context.Context, pid int32) error
	// Kill forcefully stops the process.
	Kill(ctx context.Context, pid int32) error
}

// Parameters configure a Supervisor.
type Parameters struct {
	// Probe is nil when readiness is a fixed warm-up delay.
	Probe       Probe
	Readiness   *backoff.Settings
	Command     Command
	InstanceID  string
	WorkingDir  string
	LogPath     string
	URL         string
	WarmUp      time.Duration
	GracePeriod time.Duration
	KillTimeout time.Duration
}

// ParametersFromConfig builds supervisor parameters for the given launch command.
func ParametersFromConfig(cfg *config.Config, command Command) (*Parameters, error) {
	probe, err := NewProbe(cfg.Readiness.Probe, cfg.Backend.Address(), cfg.Readiness.Timeout)
	if err != nil {
		return nil, err
	}

	return &Parameters{
		Command:     command,
		InstanceID:  cfg.UUID,
		WorkingDir:  cfg.Backend.WorkingDir,
		LogPath:     cfg.Backend.LogPath,
		URL:         cfg.Backend.URL(),
		Probe:       probe,
		Readiness:   backoff.FromReadiness(cfg.Readiness),
		WarmUp:      cfg.Readiness.WarmUp,
		GracePeriod: cfg.Shutdown.GracePeriod,
		KillTimeout: cfg.Shutdown.KillTimeout,
	}, nil
}

// Supervisor owns the lifecycle of the backend process. It holds the only reference to the process
// handle; every read and write of the handle and the state happens under mu.
type Supervisor struct {
	signaller processSignaller
	params    *Parameters
	handle    *Handle
	readiness *model.ReadinessResult
	// stopped is closed when the supervisor reaches Stopped.
	stopped chan struct{}
	state   State
	mu      sync.Mutex
}

func NewSupervisor(params *Parameters) *Supervisor {
	return &Supervisor{
		params:    params,
		signaller: osSignaller{},
		stopped:   make(chan struct{}),
		state:     NotStarted,
	}
}

// Start spawns the backend. The handle is stored only once the spawn has succeeded, a failed spawn
// leaves the supervisor Stopped with no handle and returns a *SpawnError.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotStarted {
		return ErrAlreadyStarted
	}

	s.state = Starting

	handle, err := s.spawn(ctx)
	if err != nil {
		s.state = Stopped
		close(s.stopped)

		return err
	}

	s.handle = handle

	return nil
}

func (s *Supervisor) spawn(ctx context.Context) (*Handle, error) {
	command := s.params.Command

	cmd := exec.Command(command.Name, command.Args...)
	cmd.Dir = s.params.WorkingDir
	setSysProcAttr(cmd)

	output := openOutput(ctx, s.params.LogPath)
	if output != nil {
		cmd.Stdout = output
		cmd.Stderr = output
	}

	slog.DebugContext(ctx, "Spawning backend", "command", command.String(), "working_dir", cmd.Dir)

	if err := cmd.Start(); err != nil {
		if output != nil {
			_ = output.Close()
		}

		return nil, &SpawnError{Command: command, Err: err}
	}

	handle := newHandle(cmd, output)

	slog.InfoContext(
		logger.WithBackendPID(ctx, handle.PID()),
		"Backend started",
		"command", command.String(),
		"log_path", s.params.LogPath,
	)

	return handle, nil
}

// openOutput opens the file the backend's stdout and stderr are appended to. Without one the output is
// discarded.
func openOutput(ctx context.Context, logPath string) *os.File {
	if logPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), logDirPermission); err != nil {
		slog.WarnContext(ctx, "Unable to create backend log directory, discarding backend output",
			"log_path", logPath, "error", err)

		return nil
	}

	file, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, logFilePermission)
	if err != nil {
		slog.WarnContext(ctx, "Unable to open backend log file, discarding backend output",
			"log_path", logPath, "error", err)

		return nil
	}

	return file
}

// WaitReady blocks until the backend accepts requests, the readiness budget is spent, the backend exits
// or ctx is done. Either way the supervisor moves on from Starting to Running: a backend that is slow
// to come up is reported, not treated as fatal.
func (s *Supervisor) WaitReady(ctx context.Context) (*model.ReadinessResult, error) {
	s.mu.Lock()
	handle := s.handle
	state := s.state
	s.mu.Unlock()

	if handle == nil || state != Starting {
		return nil, ErrNotStarted
	}

	ctx = logger.WithBackendPID(ctx, handle.PID())
	result := &model.ReadinessResult{Probe: config.ProbeNone}
	start := time.Now()

	var err error
	if s.params.Probe == nil {
		err = warmUp(ctx, handle, s.params.WarmUp)
	} else {
		result.Probe = s.params.Probe.Name()
		result.Attempts, err = backoff.WaitUntil(ctx, s.params.Readiness, func() error {
			if handle.Exited() {
				return backoff.Permanent(ErrBackendExited)
			}

			return s.params.Probe.Probe(ctx)
		})
	}

	result.Elapsed = time.Since(start)
	err = readinessError(ctx, handle, err)

	if err == nil {
		result.Ready = true
		slog.InfoContext(ctx, "Backend ready", "probe", result.Probe, "elapsed", result.Elapsed,
			"attempts", result.Attempts)
	} else {
		result.Error = err.Error()
	}

	s.mu.Lock()
	if s.state == Starting {
		s.state = Running
	}
	s.readiness = result
	s.mu.Unlock()

	return result, err
}

func warmUp(ctx context.Context, handle *Handle, delay time.Duration) error {
	slog.DebugContext(ctx, "Waiting for backend to warm up", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-handle.Done():
		return ErrBackendExited
	case <-ctx.Done():
		return ctx.Err()
	}
}

func readinessError(ctx context.Context, handle *Handle, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBackendExited) || handle.Exited():
		if exitErr := handle.ExitErr(); exitErr != nil {
			return fmt.Errorf("%w: %w", ErrBackendExited, exitErr)
		}

		return ErrBackendExited
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
}

// Shutdown stops the backend and releases its handle. It is safe to call any number of times from any
// goroutine: only the first call that finds a started backend sends a termination request, later calls
// wait for that shutdown to finish. Termination failures are logged, the supervisor always ends Stopped.
// The returned error is only ever ctx.Err() from waiting on a shutdown already in progress.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case NotStarted, Stopped:
		s.mu.Unlock()
		slog.DebugContext(ctx, "Backend not running, nothing to shut down", "state", s.State())

		return nil
	case Stopping:
		stopped := s.stopped
		s.mu.Unlock()

		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case Starting, Running:
	}

	s.state = Stopping
	handle := s.handle
	s.mu.Unlock()

	s.terminate(logger.WithBackendPID(ctx, handle.PID()), handle)

	s.mu.Lock()
	s.handle = nil
	s.state = Stopped
	close(s.stopped)
	s.mu.Unlock()

	return nil
}

func (s *Supervisor) terminate(ctx context.Context, handle *Handle) {
	if handle.Exited() {
		slog.InfoContext(ctx, "Backend already exited", "exit_error", handle.ExitErr())
		return
	}

	slog.InfoContext(ctx, "Terminating backend", "grace_period", s.params.GracePeriod)

	if err := s.signaller.Terminate(ctx, handle.PID()); err != nil {
		logSignalError(ctx, "terminate", err)
	}

	if waitForExit(ctx, handle, s.params.GracePeriod) {
		slog.InfoContext(ctx, "Backend stopped", "exit_error", handle.ExitErr())
		return
	}

	slog.WarnContext(ctx, "Backend did not exit within the grace period, killing it")

	if err := s.signaller.Kill(ctx, handle.PID()); err != nil {
		logSignalError(ctx, "kill", err)
	}

	if waitForExit(ctx, handle, s.params.KillTimeout) {
		slog.InfoContext(ctx, "Backend killed")
		return
	}

	slog.ErrorContext(ctx, "Backend did not exit after being killed", "kill_timeout", s.params.KillTimeout)
}

func logSignalError(ctx context.Context, action string, err error) {
	if errors.Is(err, errProcessGone) || IsNotRunningErr(err) {
		slog.DebugContext(ctx, "Backend already gone", "action", action)
		return
	}

	slog.WarnContext(ctx, "Failed to signal backend", "action", action, "error", err)
}

// waitForExit reports whether the process exited within timeout.
func waitForExit(ctx context.Context, handle *Handle, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-handle.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return handle.Exited()
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Handle returns the current process handle, nil before a successful Start and after Shutdown.
func (s *Supervisor) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.handle
}

// Exited is closed when the backend process exits. It is nil while there is no handle.
func (s *Supervisor) Exited() <-chan struct{} {
	handle := s.Handle()
	if handle == nil {
		return nil
	}

	return handle.Done()
}

// Readiness returns the result of WaitReady, nil until it has returned.
func (s *Supervisor) Readiness() *model.ReadinessResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readiness
}

// Stopped is closed once the supervisor reaches Stopped.
func (s *Supervisor) Stopped() <-chan struct{} {
	return s.stopped
}

// Status returns a snapshot of the backend. The supervisor fields are read in one critical section, the
// OS process details are collected afterwards without holding the lock.
func (s *Supervisor) Status(ctx context.Context) *model.BackendStatus {
	s.mu.Lock()
	status := &model.BackendStatus{
		InstanceID: s.params.InstanceID,
		State:      s.state.String(),
		URL:        s.params.URL,
	}
	handle := s.handle
	readiness := s.readiness
	s.mu.Unlock()

	if handle == nil {
		return status
	}

	status.PID = handle.PID()
	status.Command = handle.Args()
	status.StartedAt = handle.StartedAt()
	status.Alive = !handle.Exited()
	status.Ready = status.Alive && readiness != nil && readiness.Ready

	if exitErr := handle.ExitErr(); exitErr != nil {
		status.ExitError = exitErr.Error()
	}

	if status.Alive {
		process, err := Inspect(ctx, handle.PID())
		if err != nil {
			slog.DebugContext(ctx, "Unable to inspect backend process", "pid", handle.PID(), "error", err)
		} else {
			status.Process = process
		}
	}

	return status
}
