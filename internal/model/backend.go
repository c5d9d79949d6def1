// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package model

import (
	"strings"
	"time"
)

// BackendStatus is a point-in-time view of the supervised backend, safe to hand to other goroutines.
// InstanceID identifies the shell supervising it and is stable across restarts.
type BackendStatus struct {
	StartedAt  time.Time
	Process    *BackendProcess
	InstanceID string
	State      string
	URL        string
	ExitError  string
	Command    []string
	PID        int32
	Alive      bool
	Ready      bool
}

// CommandLine returns the launch command as a single space separated string.
func (s *BackendStatus) CommandLine() string {
	return strings.Join(s.Command, " ")
}

// Uptime returns how long the backend has been running, or zero if it is not alive.
func (s *BackendStatus) Uptime(now time.Time) time.Duration {
	if !s.Alive || s.StartedAt.IsZero() {
		return 0
	}

	return now.Sub(s.StartedAt).Truncate(time.Second)
}

// BackendProcess is an OS level snapshot of the backend process.
type BackendProcess struct {
	Created    time.Time
	Name       string
	Cmd        string
	Status     string
	MemoryRSS  uint64
	CPUPercent float64
	PID        int32
	PPID       int32
	Children   int
}

// ReadinessResult describes the outcome of waiting for the backend to accept requests.
type ReadinessResult struct {
	Error    string
	Probe    string
	Elapsed  time.Duration
	Attempts int
	Ready    bool
}
