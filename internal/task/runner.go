package task

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// Runner executes one encoded job and forwards its non-terminal messages to emit.
// It returns nil on success and ErrCancelled on cooperative cancellation.
type Runner interface {
	Run(ctx context.Context, input []byte, emit func(Message)) error
}

// ProcessRunner runs every job in a fresh worker process. The worker reads the
// envelope on stdin and writes messages as JSON lines on stdout.
type ProcessRunner struct {
	Executable string
	Args       []string
	Env        []string
	Log        *log.Logger
}

// NewProcessRunner re-executes the current binary with args
func NewProcessRunner(logger *log.Logger, args ...string) (*ProcessRunner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return &ProcessRunner{Executable: exe, Args: args, Log: logger}, nil
}

func (r *ProcessRunner) Run(ctx context.Context, input []byte, emit func(Message)) error {
	cmd := exec.CommandContext(ctx, r.Executable, r.Args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 10 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start job process: %w", err)
	}
	r.Log.Debug("Job process started", "pid", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		forwardLines(stderr, func(line string) {
			r.Log.Info(line, "source", "job")
		})
	}()

	var terminal *Message
	forwardLines(stdout, func(line string) {
		var m Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			r.Log.Debug(line, "source", "job")
			return
		}
		if m.Terminal() {
			if terminal == nil {
				terminal = &m
			}
			return
		}
		emit(m)
	})
	wg.Wait()

	waitErr := cmd.Wait()
	return outcome(ctx, terminal, cmd.ProcessState, waitErr)
}

// outcome combines the terminal message and the process exit, which are
// independent signals.
func outcome(ctx context.Context, terminal *Message, state *os.ProcessState, waitErr error) error {
	if (terminal != nil && terminal.Cancelled) || interrupted(state) {
		return ErrCancelled
	}

	if terminal != nil && terminal.Exit && terminal.Code != 0 {
		if terminal.Error != "" {
			return fmt.Errorf("job exited with code %d: %s", terminal.Code, terminal.Error)
		}
		return fmt.Errorf("job exited with code %d", terminal.Code)
	}

	if waitErr != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("job process exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("job process failed: %w", waitErr)
	}

	if terminal == nil {
		return errors.New("job process exited without a terminal message")
	}
	return nil
}

// interrupted reports an exit caused by SIGINT, either as a signal or as the
// conventional 130 exit status
func interrupted(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	if state.ExitCode() == 130 {
		return true
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok {
		return ws.Signaled() && ws.Signal() == syscall.SIGINT
	}
	return false
}

func forwardLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			fn(line)
		}
	}
}
