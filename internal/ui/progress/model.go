package progress

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/ui/styles"
)

// Model renders the supervised tasks of one operation
type Model struct {
	board       *Board
	events      <-chan task.Event
	cancel      context.CancelFunc
	spinner     spinner.Model
	progressBar progress.Model
	done        bool
	err         error
	width       int
}

// NewModel creates a model reading events until the operation is done.
// cancel is called when the user interrupts.
func NewModel(title string, events <-chan task.Event, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(30),
	)

	return Model{
		board:       NewBoard(title),
		events:      events,
		cancel:      cancel,
		spinner:     s,
		progressBar: p,
		width:       80,
	}
}

type (
	// EventMsg carries one supervisor event
	EventMsg struct{ Event task.Event }

	// DoneMsg signals the entire operation is complete
	DoneMsg struct{ Err error }
)

func waitForEvent(events <-chan task.Event) tea.Cmd {
	return func() tea.Msg {
		return EventMsg{Event: <-events}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize(), waitForEvent(m.events))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = min(msg.Width-20, 40)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.board.Apply(msg.Event)
		return m, waitForEvent(m.events)

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the progress display
func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Text).
		Bold(true)
	b.WriteString(titleStyle.Render(m.board.Title))
	b.WriteString("\n\n")

	indent := "  "
	for _, row := range m.board.Rows {
		icon := StyledIcon(row.State)
		if row.State == StateInProgress {
			icon = m.spinner.View()
		}

		b.WriteString(fmt.Sprintf("%s%s %s", indent, icon, StepStyle(row.State).Render(row.Name)))
		switch {
		case row.State == StateInProgress && row.Phase != "":
			b.WriteString(styles.MutedText.Render(" - " + row.Phase))
		case row.State == StateError && row.Err != nil:
			b.WriteString(styles.ErrorText.Render(" - " + row.Err.Error()))
		}
		b.WriteString("\n")

		if row.State == StateInProgress {
			b.WriteString(indent + "  " + m.progressBar.ViewAs(row.Fraction) + "\n")
		}
	}

	b.WriteString("\n")
	return b.String()
}

// GetError returns the error the operation finished with
func (m Model) GetError() error {
	return m.err
}

// IsDone returns true if the operation is complete
func (m Model) IsDone() bool {
	return m.done
}

// Board returns the rows seen so far
func (m Model) Board() *Board {
	return m.board
}

// Run executes work while rendering every task sup publishes, and returns
// the error of work
func Run(ctx context.Context, sup *task.Supervisor, title string, work func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe := sup.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(NewModel(title, events, cancel))

	errCh := make(chan error, 1)
	go func() {
		err := work(ctx)
		errCh <- err
		p.Send(DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errCh
		return fmt.Errorf("failed to render progress: %w", err)
	}
	return <-errCh
}
