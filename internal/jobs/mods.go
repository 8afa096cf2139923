package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/bnema/craftctl/internal/checksum"
	"github.com/bnema/craftctl/internal/curse"
	"github.com/bnema/craftctl/internal/layout"
)

var ErrInvalidLocation = errors.New("invalid download location")

func runMods(ctx context.Context, job ModsJob, env Env) error {
	client := curse.New(job.CurseAPI, env.HTTPClient)
	d := env.downloader()
	modsDir := filepath.Join(job.InstanceDir, "mods")

	total := len(job.Files) + len(job.Sources)
	report := func(completed int) {
		env.Reporter.Progress(fmt.Sprintf("Downloading mods (%d/%d)", completed, total), fraction(completed, total))
	}

	err := forEach(ctx, job.Parallel, len(job.Files), func(ctx context.Context, i int) error {
		f := job.Files[i]
		location, err := client.DownloadURL(ctx, f.ProjectID, f.FileID)
		if err != nil {
			return fmt.Errorf("failed to resolve mod %d/%d: %w", f.ProjectID, f.FileID, err)
		}

		name, err := fileName(location)
		if err != nil {
			return fmt.Errorf("mod %d/%d: %w", f.ProjectID, f.FileID, err)
		}
		dest := filepath.Join(modsDir, name)
		if checksum.IsValid(dest, "") {
			return nil
		}
		_, err = d.Download(ctx, location, dest)
		return err
	}, report)
	if err != nil {
		return err
	}

	for i, src := range job.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest, err := src.Path(job.InstanceDir)
		if err != nil {
			return err
		}
		if err := syncSource(ctx, src, dest, env); err != nil {
			return err
		}
		report(len(job.Files) + i + 1)
	}
	return nil
}

func syncSource(ctx context.Context, src GitSource, dest string, env Env) error {
	if isGitRepo(dest) {
		err := updateSource(ctx, dest)
		if errors.Is(err, errAlreadyUpToDate) {
			env.Log.Debug("Pack source up to date", "path", dest)
			return nil
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	env.Log.Debug("Cloning pack source", "url", src.URL, "path", dest)
	return cloneSource(ctx, src, dest)
}

// fileName is the unescaped last path element of a download location
func fileName(location string) (string, error) {
	name := location
	if u, err := url.Parse(location); err == nil {
		name = u.Path
	}
	name = path.Base(name)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if err := layout.ValidName(name); err != nil {
		return "", fmt.Errorf("%w: no file name in %q", ErrInvalidLocation, location)
	}
	return name, nil
}
