// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backend

// State is the lifecycle state of the supervised backend.
//
//	NotStarted -> Starting -> Running -> Stopping -> Stopped
//	              Starting -> Stopped (spawn failed)
//	              Starting -> Stopping (shutdown before the backend became ready)
type State int

const (
	NotStarted State = iota
	Starting
	Running
	Stopping
	Stopped
)

var stateNames = map[State]string{
	NotStarted: "not-started",
	Starting:   "starting",
	Running:    "running",
	Stopping:   "stopping",
	Stopped:    "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "unknown"
}
