// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package bus

const (
	BackendReadyTopic    = "backend-ready"
	BackendStatusTopic   = "backend-status"
	BackendExitedTopic   = "backend-exited"
	WindowDestroyedTopic = "window-destroyed"
)
