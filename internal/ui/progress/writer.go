package progress

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/bnema/craftctl/internal/task"
)

// PlainWriter prints task events as lines, for terminals without a TUI and
// for piped output. A row is printed again when its phase changes or its
// progress crosses another tenth.
type PlainWriter struct {
	w     io.Writer
	board *Board
	last  map[string]string
}

// NewPlainWriter creates a writer printing to w
func NewPlainWriter(w io.Writer) *PlainWriter {
	return &PlainWriter{w: w, board: NewBoard(""), last: make(map[string]string)}
}

// Write prints ev when it changes what the reader sees
func (p *PlainWriter) Write(ev task.Event) {
	row := p.board.Apply(ev)

	var line string
	switch row.State {
	case StateComplete:
		line = FormatStep(row.State, row.Name)
	case StateError:
		line = FormatStep(row.State, row.Name+": "+errString(row.Err))
	case StateCancelled:
		line = FormatStep(row.State, row.Name+": cancelled")
	default:
		bucket := math.Floor(row.Fraction*10) * 10
		line = FormatProgressLine(row.Name, row.Phase, bucket)
	}

	if p.last[row.ID] == line {
		return
	}
	p.last[row.ID] = line
	_, _ = fmt.Fprintln(p.w, line)
}

// Board returns the rows seen so far
func (p *PlainWriter) Board() *Board {
	return p.board
}

func errString(err error) string {
	if err == nil {
		return "failed"
	}
	return err.Error()
}

// RunPlain executes work while printing every task sup publishes to w, and
// returns the error of work
func RunPlain(ctx context.Context, sup *task.Supervisor, w io.Writer, work func(ctx context.Context) error) error {
	events, unsubscribe := sup.Subscribe()

	pw := NewPlainWriter(w)
	stop := make(chan struct{})
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for {
			select {
			case ev := <-events:
				pw.Write(ev)
			case <-stop:
				// Flush what was published before work returned
				for {
					select {
					case ev := <-events:
						pw.Write(ev)
					default:
						return
					}
				}
			}
		}
	}()

	err := work(ctx)
	close(stop)
	<-printed
	unsubscribe()
	return err
}
