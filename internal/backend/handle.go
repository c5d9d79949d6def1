// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backend

import (
	"os"
	"os/exec"
	"slices"
	"time"
)

// Handle is the supervised backend process. It is created by a successful spawn and owned by the
// Supervisor; everything exposed here is read-only.
type Handle struct {
	startedAt time.Time
	exitErr   error
	cmd       *exec.Cmd
	done      chan struct{}
	args      []string
	pid       int32
}

func newHandle(cmd *exec.Cmd, output *os.File) *Handle {
	h := &Handle{
		startedAt: time.Now(),
		cmd:       cmd,
		done:      make(chan struct{}),
		args:      slices.Clone(cmd.Args),
		pid:       int32(cmd.Process.Pid),
	}

	go h.wait(output)

	return h
}

// wait reaps the process. exitErr is written before done is closed and only read after.
func (h *Handle) wait(output *os.File) {
	err := h.cmd.Wait()
	if output != nil {
		_ = output.Close()
	}

	h.exitErr = err
	close(h.done)
}

func (h *Handle) PID() int32 {
	return h.pid
}

// Args returns the argument vector the process was started with.
func (h *Handle) Args() []string {
	return slices.Clone(h.args)
}

func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the error reported by the process exit, nil while it is still running or when it
// exited with status 0.
func (h *Handle) ExitErr() error {
	if !h.Exited() {
		return nil
	}

	return h.exitErr
}
