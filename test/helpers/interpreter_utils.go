// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package helpers

import (
	"os"
	"path/filepath"
	"testing"
)

// Shell scripts that stand in for the python interpreter. Each one prints its arguments so tests can
// check the exact launch command.
const (
	// GracefulBackend exits when asked to terminate.
	GracefulBackend = `#!/bin/sh
echo "$0 $*"
trap 'echo terminated; exit 0' TERM
while :; do sleep 0.1; done
`
	// StubbornBackend ignores termination requests and has to be killed.
	StubbornBackend = `#!/bin/sh
trap '' TERM
echo "$0 $*"
while :; do sleep 0.1; done
`
	// CountingBackend prints a line for every termination request and keeps running, so tests can count
	// how many it received before it is killed.
	CountingBackend = `#!/bin/sh
trap 'echo terminated' TERM
echo "$0 $*"
while :; do sleep 0.1; done
`
	// CrashingBackend exits straight away with status 3.
	CrashingBackend = `#!/bin/sh
echo "$0 $*"
exit 3
`
)

// FakeInterpreter installs script as both python and python3 in a temporary directory that is put
// first on PATH for the rest of the test. It returns the directory.
func FakeInterpreter(t testing.TB, script string) string {
	t.Helper()

	dir := t.TempDir()
	WriteFileWithErrorCheck(t, dir, "python3", script)
	WriteFileWithErrorCheck(t, dir, "python", script)

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	return dir
}

// MissingInterpreter leaves PATH pointing only at an empty directory so no interpreter can be found.
func MissingInterpreter(t testing.TB) {
	t.Helper()

	t.Setenv("PATH", filepath.Join(t.TempDir(), "empty"))
}
