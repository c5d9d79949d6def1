// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

//go:build windows

package backend

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

// setSysProcAttr hides the console window python would otherwise open and detaches the backend from
// the shell's console Ctrl+C handling.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

type osSignaller struct{}

var _ processSignaller = osSignaller{}

// Terminate kills the process tree. Windows has no SIGTERM a console-less python process would see.
func (osSignaller) Terminate(ctx context.Context, pid int32) error {
	return killTree(ctx, pid)
}

func (osSignaller) Kill(ctx context.Context, pid int32) error {
	return killTree(ctx, pid)
}

func killTree(ctx context.Context, pid int32) error {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if IsNotRunningErr(err) {
			return errProcessGone
		}

		return err
	}

	children, err := proc.ChildrenWithContext(ctx)
	if err != nil && !errors.Is(err, process.ErrorNoChildren) {
		slog.DebugContext(ctx, "Unable to list backend child processes", "error", err)
	}

	for _, child := range children {
		if childErr := killTree(ctx, child.Pid); childErr != nil && !errors.Is(childErr, errProcessGone) {
			slog.WarnContext(ctx, "Failed to kill backend child process", "pid", child.Pid, "error", childErr)
		}
	}

	return proc.KillWithContext(ctx)
}
