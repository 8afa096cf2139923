package progress

import (
	"errors"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/ui/styles"
)

// State represents the display state of a task row
type State int

const (
	StatePending State = iota
	StateInProgress
	StateComplete
	StateCancelled
	StateError
)

// StateOf maps a task lifecycle state to its display state
func StateOf(s task.State) State {
	switch s {
	case task.Running:
		return StateInProgress
	case task.Completed:
		return StateComplete
	case task.Cancelled:
		return StateCancelled
	default:
		return StateError
	}
}

// Row is one supervised task on screen
type Row struct {
	ID       string
	Name     string
	Phase    string
	Fraction float64
	State    State
	Err      error
}

// Terminal reports whether the task behind the row has finished
func (r *Row) Terminal() bool {
	return r.State != StatePending && r.State != StateInProgress
}

// Icons - Nerd Font with ASCII fallback
type Icons struct {
	Check   string
	Cross   string
	Arrow   string
	Pending string
	Warning string
	Spinner string
}

var (
	// NerdFontIcons uses Nerd Font glyphs
	NerdFontIcons = Icons{
		Check:   "\uf00c",
		Cross:   "\uf00d",
		Arrow:   "\uf061",
		Pending: "\uf111",
		Warning: "\uf071",
		Spinner: "\uf110",
	}

	// ASCIIIcons uses simple ASCII characters
	ASCIIIcons = Icons{
		Check:   "+",
		Cross:   "x",
		Arrow:   "->",
		Pending: "o",
		Warning: "!",
		Spinner: "*",
	}
)

// GetIcons returns the icon set selected by CRAFTCTL_NERD_FONTS
func GetIcons() Icons {
	if os.Getenv("CRAFTCTL_NERD_FONTS") == "1" {
		return NerdFontIcons
	}
	return ASCIIIcons
}

// Icon styles
var (
	IconStyleCheck   = lipgloss.NewStyle().Foreground(styles.Success)
	IconStyleCross   = lipgloss.NewStyle().Foreground(styles.Error)
	IconStyleArrow   = lipgloss.NewStyle().Foreground(styles.Primary)
	IconStylePending = lipgloss.NewStyle().Foreground(styles.Muted)
	IconStyleWarning = lipgloss.NewStyle().Foreground(styles.Warning)
	IconStyleSpinner = lipgloss.NewStyle().Foreground(styles.Primary)
)

// StyledIcon returns a styled icon string for the given state
func StyledIcon(state State) string {
	icons := GetIcons()
	switch state {
	case StateComplete:
		return IconStyleCheck.Render(icons.Check)
	case StateError:
		return IconStyleCross.Render(icons.Cross)
	case StateCancelled:
		return IconStyleWarning.Render(icons.Warning)
	case StateInProgress:
		return IconStyleSpinner.Render(icons.Spinner)
	default:
		return IconStylePending.Render(icons.Pending)
	}
}

// StepStyle returns the text style for a row in state
func StepStyle(state State) lipgloss.Style {
	switch state {
	case StateComplete:
		return styles.SuccessText
	case StateError:
		return styles.ErrorText
	case StateCancelled:
		return styles.WarningText
	case StateInProgress:
		return styles.NormalText.Bold(true)
	default:
		return styles.MutedText
	}
}

// Board holds every task seen since the operation started, in order of
// first appearance
type Board struct {
	Title string
	Rows  []*Row

	index map[string]*Row
}

// NewBoard creates an empty board
func NewBoard(title string) *Board {
	return &Board{Title: title, index: make(map[string]*Row)}
}

// Apply records ev and returns the affected row
func (b *Board) Apply(ev task.Event) *Row {
	row, ok := b.index[ev.TaskID]
	if !ok {
		row = &Row{ID: ev.TaskID, Name: ev.Name}
		b.index[ev.TaskID] = row
		b.Rows = append(b.Rows, row)
	}

	if ev.Status.Phase != "" {
		row.Phase = ev.Status.Phase
	}
	if ev.Status.Fraction > row.Fraction {
		row.Fraction = ev.Status.Fraction
	}
	row.State = StateOf(ev.State)
	row.Err = ev.Err
	if row.State == StateComplete {
		row.Fraction = 1
	}
	return row
}

// Active returns the rows still in progress
func (b *Board) Active() []*Row {
	var rows []*Row
	for _, r := range b.Rows {
		if !r.Terminal() {
			rows = append(rows, r)
		}
	}
	return rows
}

// Err joins the errors of every failed row
func (b *Board) Err() error {
	var errs []error
	for _, r := range b.Rows {
		if r.State == StateError && r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
