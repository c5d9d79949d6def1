// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package backend

import (
	"strings"
)

const (
	BackendModule = "living_storyworld.cli"

	windowsInterpreter = "python"
	defaultInterpreter = "python3"
)

// Command is the program and arguments the backend is launched with.
type Command struct {
	Name string
	Args []string
}

// Argv returns the full argument vector, program name first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Interpreter returns the Python interpreter name for the target operating system. Windows installs
// expose python, everything else python3.
func Interpreter(goos string) string {
	if goos == "windows" {
		return windowsInterpreter
	}

	return defaultInterpreter
}

// BackendArgs returns the arguments that start the backend web server without opening a browser.
func BackendArgs() []string {
	return []string{"-m", BackendModule, "web", "--no-browser"}
}

// LaunchCommand returns the backend launch command for the target operating system.
func LaunchCommand(goos string) Command {
	return Command{
		Name: Interpreter(goos),
		Args: BackendArgs(),
	}
}
