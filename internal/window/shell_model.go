// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package window

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonmartin721/living-story-world/internal/model"
)

const (
	maxLogLines      = 200
	defaultLogHeight = 10
	defaultWidth     = 80
	// title, url, state, process and footer lines plus the log box border
	chromeHeight = 9
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	logBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5B8DEF"))
)

type (
	statusMsg  *model.BackendStatus
	readyMsg   *model.ReadinessResult
	exitedMsg  *model.BackendStatus
	logLineMsg string

	browserOpenedMsg bool
)

// shellModel is the bubbletea model of the shell window. browser describes the last attempt to open the
// web interface, autoOpened is set once the ready backend has triggered the automatic open.
type shellModel struct {
	status     *model.BackendStatus
	readiness  *model.ReadinessResult
	exited     *model.BackendStatus
	now        func() time.Time
	opener     Opener
	url        string
	logPath    string
	browser    string
	logLines   []string
	spinner    spinner.Model
	width      int
	height     int
	autoOpen   bool
	autoOpened bool
	quitting   bool
}

func newShellModel(url, logPath string) shellModel {
	return shellModel{
		url:     url,
		logPath: logPath,
		now:     time.Now,
		opener:  openInBrowser,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(warningStyle),
		),
	}
}

func (m shellModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "o":
			return m, m.openBrowser()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case statusMsg:
		m.status = msg
	case readyMsg:
		m.readiness = msg
		if m.autoOpen && !m.autoOpened && msg != nil && msg.Ready {
			m.autoOpened = true
			return m, m.openBrowser()
		}
	case browserOpenedMsg:
		if msg {
			m.browser = "opened in browser"
		} else {
			m.browser = "unable to open browser, see the log"
		}
	case exitedMsg:
		m.exited = msg
	case logLineMsg:
		m.logLines = append(m.logLines, string(msg))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
	case spinner.TickMsg:
		if !m.starting() {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

// openBrowser opens the web interface off the bubbletea event loop.
func (m shellModel) openBrowser() tea.Cmd {
	opener, url := m.opener, m.url

	return func() tea.Msg {
		return browserOpenedMsg(openURL(context.Background(), opener, url))
	}
}

// starting reports whether the backend has neither become ready nor failed yet.
func (m shellModel) starting() bool {
	return m.readiness == nil && m.exited == nil
}

func (m shellModel) View() string {
	if m.quitting {
		return "Stopping " + Title + "...\n"
	}

	lines := []string{
		titleStyle.Render(Title),
		labelStyle.Render("URL     ") + m.url + m.browserLine(),
		labelStyle.Render("Backend ") + m.stateLine(),
		labelStyle.Render("Process ") + m.processLine(),
	}

	lines = append(lines, m.logBox(), footerStyle.Render("o: open in browser, q: quit and stop the backend"))

	return strings.Join(lines, "\n")
}

func (m shellModel) browserLine() string {
	if m.browser == "" {
		return ""
	}

	return labelStyle.Render(" (" + m.browser + ")")
}

func (m shellModel) stateLine() string {
	switch {
	case m.exited != nil:
		exitError := m.exited.ExitError
		if exitError == "" {
			exitError = "exit status 0"
		}

		return errorStyle.Render("exited unexpectedly (" + exitError + ")")
	case m.readiness == nil:
		return m.spinner.View() + " starting"
	case m.readiness.Ready:
		elapsed := m.readiness.Elapsed.Round(time.Millisecond)

		return readyStyle.Render("ready") + labelStyle.Render(fmt.Sprintf(" after %s", elapsed))
	default:
		return warningStyle.Render("not ready") + " " + m.readiness.Error
	}
}

func (m shellModel) processLine() string {
	if m.status == nil || m.status.PID == 0 {
		return labelStyle.Render("-")
	}

	line := fmt.Sprintf("pid %d, %s", m.status.PID, m.status.State)
	if m.status.Alive {
		line += fmt.Sprintf(", up %s", m.status.Uptime(m.now()))
	}

	if m.status.Process != nil {
		line += fmt.Sprintf(", %s rss, %.1f%% cpu", formatBytes(m.status.Process.MemoryRSS), m.status.Process.CPUPercent)
	}

	return line
}

func (m shellModel) logBox() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	height := defaultLogHeight
	if m.height > chromeHeight {
		height = m.height - chromeHeight
	}

	visible := m.logLines
	if len(visible) > height {
		visible = visible[len(visible)-height:]
	}

	content := labelStyle.Render("Waiting for backend output in " + m.logPath)
	if len(visible) > 0 {
		content = strings.Join(visible, "\n")
	}

	// the border takes two columns
	return logBoxStyle.Width(width - 2).Height(height).Render(content)
}

func formatBytes(size uint64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := uint64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
