package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bnema/craftctl/internal/config"
	"github.com/bnema/craftctl/internal/installer"
	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/launcher"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/meta"
	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/ui/progress"
)

// app is the object graph shared by the commands
type app struct {
	cfg       *config.Config
	layout    layout.Layout
	resolver  *meta.Resolver
	tasks     *task.Supervisor
	installer *installer.Installer
	launcher  *launcher.Launcher
}

func newApp(ctx context.Context) (*app, error) {
	logger := getLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	l := layout.New(cfg.Root)
	if err := os.MkdirAll(l.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store %s: %w", l.Root, err)
	}

	var runner task.Runner
	if cfg.InProcess {
		runner = &jobs.LocalRunner{Log: logger}
	} else {
		args := []string{"job"}
		if verbose {
			args = append(args, "--verbose")
		}
		pr, err := task.NewProcessRunner(logger, args...)
		if err != nil {
			return nil, err
		}
		runner = pr
	}

	policy := meta.Forever()
	if ttl := time.Duration(cfg.CatalogTTL); ttl > 0 {
		policy = meta.TTL(ttl)
	}
	resolver := meta.New(meta.Options{
		Endpoints: cfg.Endpoints.Endpoints,
		Policy:    policy,
		Logger:    logger,
	})

	tasks := task.NewSupervisor(ctx, runner, logger)

	inst := installer.New(installer.Options{
		Layout:     l,
		Resolver:   resolver,
		Supervisor: tasks,
		Logger:     logger,
		Config: installer.Config{
			ForgeMaven: cfg.Endpoints.ForgeMaven,
			CurseAPI:   cfg.Endpoints.CurseAPI,
			AssetsURL:  cfg.Endpoints.Assets,
			Java:       cfg.Java,
			Parallel:   cfg.Parallel,
		},
	})

	logger.Debug("Store ready", "root", l.Root, "in_process", cfg.InProcess)

	return &app{
		cfg:       cfg,
		layout:    l,
		resolver:  resolver,
		tasks:     tasks,
		installer: inst,
		launcher:  launcher.New(logger, l, cfg.Java),
	}, nil
}

// track runs work while rendering the tasks it starts
func (a *app) track(ctx context.Context, title string, work func(ctx context.Context) error) error {
	if plain {
		progress.PrintTitle(title)
		return progress.RunPlain(ctx, a.tasks, os.Stdout, work)
	}
	return progress.Run(ctx, a.tasks, title, work)
}
