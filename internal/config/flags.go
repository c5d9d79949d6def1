// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package config

import (
	"strings"
)

const (
	ConfigPathKey  = "path"
	VersionKey     = "version"
	HeadlessKey    = "headless"
	OpenBrowserKey = "open_browser"
	QueueSizeKey   = "queue_size"

	LogRootKey       = "log"
	BackendRootKey   = "backend"
	ReadinessRootKey = "readiness"
	ShutdownRootKey  = "shutdown"
	MonitorRootKey   = "monitor"
)

var (
	LogLevelKey = pre(LogRootKey) + "level"
	LogPathKey  = pre(LogRootKey) + "path"

	BackendHostKey       = pre(BackendRootKey) + "host"
	BackendPortKey       = pre(BackendRootKey) + "port"
	BackendWorkingDirKey = pre(BackendRootKey) + "working_dir"
	BackendLogPathKey    = pre(BackendRootKey) + "log_path"

	ReadinessProbeKey               = pre(ReadinessRootKey) + "probe"
	ReadinessWarmUpKey              = pre(ReadinessRootKey) + "warm_up"
	ReadinessTimeoutKey             = pre(ReadinessRootKey) + "timeout"
	ReadinessInitialIntervalKey     = pre(ReadinessRootKey) + "initial_interval"
	ReadinessMaxIntervalKey         = pre(ReadinessRootKey) + "max_interval"
	ReadinessMaxElapsedTimeKey      = pre(ReadinessRootKey) + "max_elapsed_time"
	ReadinessMultiplierKey          = pre(ReadinessRootKey) + "multiplier"
	ReadinessRandomizationFactorKey = pre(ReadinessRootKey) + "randomization_factor"

	ShutdownGracePeriodKey = pre(ShutdownRootKey) + "grace_period"
	ShutdownKillTimeoutKey = pre(ShutdownRootKey) + "kill_timeout"

	MonitorFrequencyKey = pre(MonitorRootKey) + "frequency"
)

func pre(prefixes ...string) string {
	joined := strings.Join(prefixes, KeyDelimiter)
	return joined + KeyDelimiter
}
