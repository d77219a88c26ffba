// Package tui implements the kanban dashboard shown by "fspec board".
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/fspec/internal/project"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
	"github.com/Iron-Ham/fspec/internal/watch"
)

// DefaultRefreshInterval is used when Options.RefreshInterval is not set.
const DefaultRefreshInterval = 2 * time.Second

// loadTimeout bounds one board load, including lock retries.
const loadTimeout = 30 * time.Second

// BoardLoader loads a board snapshot. *project.Store satisfies it.
type BoardLoader interface {
	Board(ctx context.Context) (*project.Board, error)
}

// Options configure the dashboard.
type Options struct {
	// RefreshInterval is the period of the background reload.
	RefreshInterval time.Duration
	// Changes, when non-nil, triggers a reload for every event.
	Changes <-chan watch.Event
}

// Messages

type tickMsg time.Time

type boardMsg struct {
	board *project.Board
	err   error
}

type changeMsg watch.Event

type changesClosedMsg struct{}

// Model is the bubbletea model of the dashboard.
type Model struct {
	loader  BoardLoader
	opts    Options
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	board      *project.Board
	err        error
	loading    bool
	lastChange []string

	width  int
	height int
}

// New creates a dashboard reading from loader.
func New(loader BoardLoader, opts Options) Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styles.Primary),
	)
	return Model{
		loader:  loader,
		opts:    opts,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		loading: true,
	}
}

// Init starts the first load, the refresh tick and the change listener.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.load(), m.tick()}
	if m.opts.Changes != nil {
		cmds = append(cmds, m.waitForChange())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case boardMsg:
		m.loading = false
		if msg.err != nil {
			// Keep showing the last good board.
			m.err = msg.err
			return m, nil
		}
		m.board = msg.board
		m.err = nil
		return m, nil

	case tickMsg:
		if m.loading {
			return m, m.tick()
		}
		m.loading = true
		return m, tea.Batch(m.load(), m.tick())

	case changeMsg:
		m.lastChange = msg.Paths
		m.loading = true
		return m, tea.Batch(m.load(), m.waitForChange())

	case changesClosedMsg:
		m.opts.Changes = nil
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	return m.render()
}

// Run shows the dashboard until the user quits.
func Run(loader BoardLoader, opts Options) error {
	p := tea.NewProgram(New(loader, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Commands

func (m Model) load() tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		board, err := loader.Board(ctx)
		return boardMsg{board: board, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForChange() tea.Cmd {
	changes := m.opts.Changes
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-changes
		if !ok {
			return changesClosedMsg{}
		}
		return changeMsg(ev)
	}
}
