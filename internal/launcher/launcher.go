package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/version"
)

// DefaultJava is used when no java executable is configured
const DefaultJava = "java"

// Launcher starts installed versions
type Launcher struct {
	log    *log.Logger
	layout layout.Layout
	java   string
}

// New creates a launcher for the store at l
func New(logger *log.Logger, l layout.Layout, java string) *Launcher {
	if java == "" {
		java = DefaultJava
	}
	return &Launcher{log: logger, layout: l, java: java}
}

// Command prepares the game process for the installed version id without
// starting it
func (l *Launcher) Command(ctx context.Context, id string, opts Options) (*exec.Cmd, error) {
	if err := layout.ValidName(id); err != nil {
		return nil, err
	}
	d, err := version.Resolve(l.layout, id)
	if err != nil {
		return nil, err
	}

	env := version.CurrentEnvironment()
	if opts.Env != nil {
		env = *opts.Env
	}
	if err := PrepareNatives(l.layout, d, env); err != nil {
		return nil, err
	}

	if opts.GameDir == "" {
		opts.GameDir = l.layout.Instance(id)
	}
	if err := os.MkdirAll(opts.GameDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create game directory: %w", err)
	}

	args, err := BuildArgs(l.layout, d, opts)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, l.java, args...)
	cmd.Dir = opts.GameDir
	cmd.Env = gameEnv(l.log, os.Environ(), detectGPUVendor())
	return cmd, nil
}

// Launch runs the game until it exits. Its output is forwarded to the log.
func (l *Launcher) Launch(ctx context.Context, id string, opts Options) error {
	cmd, err := l.Command(ctx, id, opts)
	if err != nil {
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	l.log.Info("Launching", "version", id, "java", l.java, "workdir", cmd.Dir)
	l.log.Debug("Game command", "args", cmd.Args[1:])

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start java: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forward(stdout, func(line string) { l.log.Info(line, "source", "game") })
	}()
	go func() {
		defer wg.Done()
		forward(stderr, func(line string) { l.log.Warn(line, "source", "game") })
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("game exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("game process failed: %w", err)
	}
	l.log.Info("Game exited", "version", id)
	return nil
}

func forward(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}

// Clean removes the temporary download directory and every extracted
// natives directory, and returns the number of bytes freed
func (l *Launcher) Clean() (int64, error) {
	targets := []string{l.layout.TempDir()}

	entries, err := os.ReadDir(l.layout.VersionsDir())
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to read versions directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			targets = append(targets, l.layout.NativesDir(e.Name()))
		}
	}

	var freed int64
	for _, dir := range targets {
		size := dirSize(dir)
		if err := os.RemoveAll(dir); err != nil {
			return freed, fmt.Errorf("failed to remove %s: %w", dir, err)
		}
		if size > 0 {
			l.log.Debug("Removed directory", "path", dir, "size", FormatBytes(size))
		}
		freed += size
	}

	l.log.Info("Clean complete", "freed", FormatBytes(freed))
	return freed, nil
}

func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
