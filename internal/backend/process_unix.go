// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

//go:build unix

package backend

import (
	"context"
	"errors"
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the backend in its own process group so that uvicorn and anything it forks are
// signalled together, and so a Ctrl+C in the shell's terminal reaches only the shell.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	setParentDeathSignal(cmd.SysProcAttr)
}

type osSignaller struct{}

var _ processSignaller = osSignaller{}

func (osSignaller) Terminate(_ context.Context, pid int32) error {
	return signalGroup(pid, syscall.SIGTERM)
}

func (osSignaller) Kill(_ context.Context, pid int32) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func signalGroup(pid int32, sig syscall.Signal) error {
	err := syscall.Kill(-int(pid), sig)
	if errors.Is(err, syscall.ESRCH) {
		return errProcessGone
	}

	return err
}
