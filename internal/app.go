// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package internal

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/jonmartin721/living-story-world/internal/backend"
	"github.com/jonmartin721/living-story-world/internal/bus"
	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/internal/logger"
	"github.com/jonmartin721/living-story-world/internal/plugin"
	"github.com/jonmartin721/living-story-world/internal/window"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type App struct {
	newWindow func(shellConfig *config.Config) window.Window
	commit    string
	version   string
	goos      string
}

func NewApp(commit, version string) *App {
	return &App{
		commit:    commit,
		version:   version,
		goos:      runtime.GOOS,
		newWindow: newWindow,
	}
}

func (a *App) Run(ctx context.Context) error {
	config.Init(a.version, a.commit)
	config.RegisterRunner(func(cmd *cobra.Command, _ []string) error {
		return a.run(cmd.Context())
	})

	return config.Execute(ctx)
}

func (a *App) run(ctx context.Context) error {
	if err := config.RegisterConfigFile(); err != nil {
		return err
	}

	shellConfig, err := config.ResolveConfig()
	if err != nil {
		return err
	}

	slogger, closer := logger.New(shellConfig.Log)
	defer closer.Close()
	slog.SetDefault(slogger)

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	ctx = logger.WithCorrelationID(ctx)

	slog.InfoContext(ctx, "Starting "+window.Title, "version", a.version, "commit", a.commit,
		"pid", os.Getpid(), "instance_id", shellConfig.UUID, "config_path", shellConfig.Path)

	params, err := backend.ParametersFromConfig(shellConfig, backend.LaunchCommand(a.goos))
	if err != nil {
		return err
	}

	return a.runSupervised(ctx, shellConfig, backend.NewSupervisor(params))
}

// runSupervised is the setup path: spawn, wait for readiness, then show the window until it is
// destroyed. A failed spawn ends setup before any window exists.
func (a *App) runSupervised(ctx context.Context, shellConfig *config.Config, supervisor *backend.Supervisor) error {
	if err := supervisor.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to start backend", "error", err)
		return err
	}

	defer a.onWindowDestroyed(ctx, shellConfig, supervisor)

	if _, err := supervisor.WaitReady(ctx); err != nil {
		slog.WarnContext(ctx, "Backend is not ready, opening the window anyway",
			"url", shellConfig.Backend.URL(), "error", err)
	}

	win := a.newWindow(shellConfig)

	messagePipe := bus.NewMessagePipe(shellConfig.QueueSize)
	err := messagePipe.Register(shellConfig.QueueSize, []bus.Plugin{
		plugin.NewBackendMonitor(shellConfig, supervisor),
		win,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to register plugins", "error", err)
		return err
	}

	pipeCtx, cancelPipe := context.WithCancel(ctx)
	defer cancelPipe()

	group, groupCtx := errgroup.WithContext(pipeCtx)

	group.Go(func() error {
		messagePipe.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		defer cancelPipe()
		return win.Run(groupCtx)
	})

	return group.Wait()
}

// onWindowDestroyed stops the backend. The run context may already be cancelled by a signal, so the
// shutdown gets its own bounded context.
func (*App) onWindowDestroyed(ctx context.Context, shellConfig *config.Config, supervisor *backend.Supervisor) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shellConfig.Shutdown.Timeout())
	defer cancel()

	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		slog.WarnContext(shutdownCtx, "Backend shutdown did not complete", "error", err)
	}

	slog.InfoContext(shutdownCtx, window.Title+" stopped")
}

func newWindow(shellConfig *config.Config) window.Window {
	if shellConfig.Headless {
		return window.NewHeadless(shellConfig)
	}

	return window.NewShell(shellConfig)
}
