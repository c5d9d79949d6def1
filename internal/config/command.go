// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package config

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	RootCommand = &cobra.Command{
		Use:   "storyworld",
		Short: "Living Storyworld desktop shell",
		Long: `storyworld starts the Living Storyworld backend
(python -m living_storyworld.cli web --no-browser), waits for it to become ready
and opens a window on it. The backend is stopped when the window closes.`,
		SilenceUsage: true,
	}

	CompletionCommand = &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:
  $ source <(storyworld completion bash)

Zsh:
  $ storyworld completion zsh > "${fpath[1]}/_storyworld"

Fish:
  $ storyworld completion fish | source
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			default:
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			}
		},
	}
)
