// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package window

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonmartin721/living-story-world/internal/bus"
	"github.com/jonmartin721/living-story-world/internal/config"
	"github.com/jonmartin721/living-story-world/internal/model"
	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"
)

const logLineBuffer = 64

// Shell is the terminal window of the desktop shell. It shows where the backend can be reached, its
// state and the tail of its log.
type Shell struct {
	program     *tea.Program
	messagePipe bus.MessagePipeInterface
	logPath     string
	mutex       sync.Mutex
}

var _ Window = (*Shell)(nil)

// NewShell builds the window. Options are passed to bubbletea and replace the default alternate screen.
func NewShell(shellConfig *config.Config, options ...tea.ProgramOption) *Shell {
	if len(options) == 0 {
		options = []tea.ProgramOption{tea.WithAltScreen()}
	}

	// interrupts cancel the run context, see Run
	options = append(options, tea.WithoutSignalHandler())

	// the browser launcher must not write over the window
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	windowModel := newShellModel(shellConfig.Backend.URL(), shellConfig.Backend.LogPath)
	windowModel.autoOpen = shellConfig.OpenBrowser

	return &Shell{
		program: tea.NewProgram(windowModel, options...),
		logPath: shellConfig.Backend.LogPath,
	}
}

func (s *Shell) Init(ctx context.Context, messagePipe bus.MessagePipeInterface) error {
	slog.DebugContext(ctx, "Starting window plugin")

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.messagePipe = messagePipe

	return nil
}

func (*Shell) Close(ctx context.Context) error {
	slog.DebugContext(ctx, "Closing window plugin")
	return nil
}

func (*Shell) Info() *bus.Info {
	return &bus.Info{
		Name: pluginName,
	}
}

func (*Shell) Subscriptions() []string {
	return subscriptions()
}

// Process forwards backend events to the window. It blocks until the window has started.
func (s *Shell) Process(_ context.Context, msg *bus.Message) {
	switch msg.Topic {
	case bus.BackendStatusTopic:
		if status, ok := msg.Data.(*model.BackendStatus); ok {
			s.program.Send(statusMsg(status))
		}
	case bus.BackendReadyTopic:
		if readiness, ok := msg.Data.(*model.ReadinessResult); ok {
			s.program.Send(readyMsg(readiness))
		}
	case bus.BackendExitedTopic:
		if status, ok := msg.Data.(*model.BackendStatus); ok {
			s.program.Send(exitedMsg(status))
		}
	}
}

// Run shows the window until the user closes it or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		<-groupCtx.Done()
		s.program.Quit()

		return nil
	})

	if s.logPath != "" {
		s.followLog(groupCtx, group)
	}

	_, err := s.program.Run()

	cancel()
	_ = group.Wait()

	s.mutex.Lock()
	messagePipe := s.messagePipe
	s.mutex.Unlock()
	publishDestroyed(ctx, messagePipe)

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("window failed: %w", err)
	}

	return nil
}

func (s *Shell) followLog(ctx context.Context, group *errgroup.Group) {
	tailer, err := NewTailer(s.logPath)
	if err != nil {
		slog.WarnContext(ctx, "Unable to follow backend log", "log_path", s.logPath, "error", err)
		return
	}

	lines := make(chan string, logLineBuffer)

	group.Go(func() error {
		defer tailer.Stop()
		tailer.Tail(ctx, lines)

		return nil
	})

	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case line := <-lines:
				s.program.Send(logLineMsg(line))
			}
		}
	})
}
