package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/session"
)

const maxBarWidth = 60

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

func stateStyle(s session.State) lipgloss.Style {
	switch {
	case s.Ready():
		return okStyle
	case s == session.Failed:
		return errorStyle
	default:
		return mutedStyle
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type progressMsg float64

type finishedMsg struct{ err error }

// progressModel draws a single progress bar for one session.
type progressModel struct {
	title      string
	bar        progress.Model
	percent    float64
	cancel     func()
	cancelling bool
	done       bool
	err        error
}

func newProgressModel(title string, cancel func()) progressModel {
	return progressModel{
		title:  title,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel: cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
	case progressMsg:
		m.percent = float64(msg)
	case finishedMsg:
		m.done = true
		m.err = msg.err
		if msg.err == nil {
			m.percent = 1
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.percent))
	b.WriteString("\n")

	switch {
	case m.done && errors.Is(m.err, session.ErrCancelled):
		b.WriteString(mutedStyle.Render("cancelled"))
	case m.done && m.err != nil:
		b.WriteString(errorStyle.Render("failed: " + m.err.Error()))
	case m.done:
		b.WriteString(okStyle.Render("ready"))
	case m.cancelling:
		b.WriteString(mutedStyle.Render("cancelling..."))
	default:
		b.WriteString(mutedStyle.Render("q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// programConsumer forwards session events into a running tea.Program.
type programConsumer struct {
	p *tea.Program
}

func (c programConsumer) OnProgress(f float64) { c.p.Send(progressMsg(f)) }
func (c programConsumer) OnReady()             { c.p.Send(finishedMsg{}) }
func (c programConsumer) OnFailed(err error)   { c.p.Send(finishedMsg{err: err}) }

// runWithProgressBar starts a session and draws its progress until it
// ends. Pressing q or ctrl+c cancels the session.
func runWithProgressBar(ctx context.Context, mgr *session.Manager, path string) (*session.Session, error) {
	var s *session.Session
	model := newProgressModel(filepath.Base(path), func() { s.Cancel() })
	prog := tea.NewProgram(model, tea.WithOutput(os.Stderr))

	s, err := mgr.Start(ctx, path, programConsumer{p: prog})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.Done():
		}
	}()

	if _, err := prog.Run(); err != nil {
		s.Cancel()
		<-s.Done()
		return s, fmt.Errorf("progress display: %w", err)
	}
	<-s.Done()
	return s, nil
}

// logReporter logs progress in ten percent steps for non-interactive runs.
type logReporter struct {
	name string
	emit func(format string, args ...interface{})

	mu   sync.Mutex
	next int
}

func newLogReporter(name string) *logReporter {
	return &logReporter{name: name, emit: logging.Info}
}

func (r *logReporter) OnProgress(f float64) {
	step := int(f * 10)
	r.mu.Lock()
	defer r.mu.Unlock()
	if step < r.next {
		return
	}
	r.next = step + 1
	r.emit("%s: %3.0f%%", r.name, f*100)
}

func (r *logReporter) OnReady() {
	r.emit("%s: thumbnails ready", r.name)
}

func (r *logReporter) OnFailed(err error) {
	r.emit("%s: %v", r.name, err)
}
