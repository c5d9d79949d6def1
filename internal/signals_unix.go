// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

//go:build unix

package internal

import (
	"os"
	"syscall"
)

// shutdownSignals end the run and stop the backend. Closing the terminal the window runs in sends SIGHUP.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
