// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	DefLogLevel = "info"
	DefLogPath  = ""

	// The backend binds to 127.0.0.1:8001 unless told otherwise, and it is never told otherwise.
	DefBackendHost = "127.0.0.1"
	DefBackendPort = 8001

	DefBackendLogFileName = "storyworld-backend.log"

	DefReadinessProbe               = ProbeHTTP
	DefReadinessWarmUp              = 2 * time.Second
	DefReadinessTimeout             = 1 * time.Second
	DefReadinessInitialInterval     = 100 * time.Millisecond
	DefReadinessMaxInterval         = 1 * time.Second
	DefReadinessMaxElapsedTime      = 10 * time.Second
	DefReadinessMultiplier          = 1.5
	DefReadinessRandomizationFactor = 0.1

	DefShutdownGracePeriod = 5 * time.Second
	DefShutdownKillTimeout = 2 * time.Second

	DefMonitorFrequency = 5 * time.Second

	DefOpenBrowser = true

	DefQueueSize = 100
)

func DefBackendLogPath() string {
	return filepath.Join(os.TempDir(), DefBackendLogFileName)
}
