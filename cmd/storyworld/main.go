// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package main

import (
	"context"
	"os"

	"github.com/jonmartin721/living-story-world/internal"
)

var (
	// set at buildtime
	commit  = ""
	version = ""
)

func main() {
	app := internal.NewApp(commit, version)

	if err := app.Run(context.Background()); err != nil {
		os.Exit(1)
	}
}
