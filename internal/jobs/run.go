package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bnema/craftctl/internal/download"
	"github.com/bnema/craftctl/internal/task"
)

// Env carries what a job needs besides its payload
type Env struct {
	Log        *log.Logger
	Reporter   task.Reporter
	HTTPClient *http.Client
}

func (e Env) downloader() *download.Downloader {
	if e.HTTPClient != nil {
		return download.New(e.Log, download.WithHTTPClient(e.HTTPClient))
	}
	return download.New(e.Log)
}

// Run executes one decoded payload
func Run(ctx context.Context, p task.Payload, env Env) error {
	if env.Log == nil {
		env.Log = log.New(io.Discard)
	}
	if env.Reporter == nil {
		env.Reporter = task.ReporterFunc(func(task.Message) {})
	}

	switch job := p.(type) {
	case AssetsJob:
		return runAssets(ctx, job, env)
	case LibrariesJob:
		return runLibraries(ctx, job, env)
	case ForgeProcessorsJob:
		return runProcessors(ctx, job, env)
	case ModsJob:
		return runMods(ctx, job, env)
	default:
		return fmt.Errorf("%w: unsupported payload %T", ErrInvalidPayload, p)
	}
}

// forEach calls fn for every index. Sequential mode stops at the first error;
// parallel mode starts all items at once and joins their errors.
// done is called with the number of finished items after each one.
func forEach(ctx context.Context, parallel bool, n int, fn func(ctx context.Context, i int) error, done func(completed int)) error {
	if !parallel {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
			done(i + 1)
		}
		return nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		errs      []error
		completed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := fn(ctx, i); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			mu.Lock()
			completed++
			done(completed)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func fraction(completed, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(completed) / float64(total)
}

// Serve is the worker process entry point: it reads one envelope from in,
// runs it and writes progress and exactly one terminal message to out.
func Serve(ctx context.Context, in io.Reader, out io.Writer, logger *log.Logger) int {
	emitter := task.NewEmitter(out)

	data, err := io.ReadAll(in)
	if err != nil {
		emitter.Exit(1, fmt.Errorf("failed to read payload: %w", err))
		return 1
	}

	p, err := Decode(data)
	if err != nil {
		emitter.Exit(2, err)
		return 2
	}

	logger.Debug("Job started", "kind", p.Kind())

	err = Run(ctx, p, Env{Log: logger, Reporter: emitter})
	switch {
	case err == nil:
		emitter.End()
		return 0
	case errors.Is(err, context.Canceled) || errors.Is(err, task.ErrCancelled):
		emitter.Cancelled()
		return 130
	default:
		logger.Error("Job failed", "kind", p.Kind(), "error", err)
		emitter.Exit(1, err)
		return 1
	}
}

// LocalRunner runs jobs in the calling process
type LocalRunner struct {
	Log        *log.Logger
	HTTPClient *http.Client
}

func (r *LocalRunner) Run(ctx context.Context, input []byte, emit func(task.Message)) error {
	p, err := Decode(input)
	if err != nil {
		return err
	}

	err = Run(ctx, p, Env{Log: r.Log, Reporter: task.ReporterFunc(emit), HTTPClient: r.HTTPClient})
	if errors.Is(err, context.Canceled) {
		return task.ErrCancelled
	}
	return err
}
