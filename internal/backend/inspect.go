// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonmartin721/living-story-world/internal/model"
	"github.com/shirou/gopsutil/v4/process"
)

// IsNotRunningErr returns true if this error is due to the OS process no longer running.
func IsNotRunningErr(err error) bool { return errors.Is(err, process.ErrorProcessNotRunning) }

// Inspect returns an OS level snapshot of the process with the given pid.
func Inspect(ctx context.Context, pid int32) (*model.BackendProcess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}

	name, _ := proc.NameWithContext(ctx)
	cmdLine, _ := proc.CmdlineWithContext(ctx)
	ppid, _ := proc.PpidWithContext(ctx)
	status, _ := proc.StatusWithContext(ctx) // slow: shells out to ps on darwin
	cpuPercent, _ := proc.CPUPercentWithContext(ctx)

	var created time.Time
	if millisSinceEpoch, createErr := proc.CreateTimeWithContext(ctx); createErr == nil {
		created = time.UnixMilli(millisSinceEpoch)
	}

	var rss uint64
	if memory, memErr := proc.MemoryInfoWithContext(ctx); memErr == nil && memory != nil {
		rss = memory.RSS
	}

	children, _ := proc.ChildrenWithContext(ctx)

	return &model.BackendProcess{
		PID:        proc.Pid,
		PPID:       ppid,
		Name:       name,
		Cmd:        cmdLine,
		Status:     strings.Join(status, " "),
		Created:    created,
		MemoryRSS:  rss,
		CPUPercent: cpuPercent,
		Children:   len(children),
	}, ctx.Err()
}
