// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backend

import (
	"errors"
	"fmt"
	"os/exec"
)

var (
	ErrAlreadyStarted = errors.New("backend already started")
	ErrNotStarted     = errors.New("backend not started")
	ErrNotReady       = errors.New("backend not ready")
	ErrBackendExited  = errors.New("backend exited")

	// errProcessGone is returned by a processSignaller when there is no process left to signal.
	errProcessGone = errors.New("process already gone")
)

// SpawnError is returned when the backend process could not be created. It is fatal for the shell.
type SpawnError struct {
	Err     error
	Command Command
}

func (e *SpawnError) Error() string {
	if errors.Is(e.Err, exec.ErrNotFound) {
		return fmt.Sprintf("failed to start backend: interpreter %q not found in PATH, "+
			"install Python 3 with the living_storyworld package", e.Command.Name)
	}

	return fmt.Sprintf("failed to start backend %q: %v", e.Command.String(), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
