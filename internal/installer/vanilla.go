package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/version"
)

// VanillaTaskName is the display name of a vanilla installation
func VanillaTaskName(id string) string {
	return "Vanilla " + id
}

// InstallVanilla installs a game version with its client jar, assets, logging
// configuration and libraries, and returns its id.
func (in *Installer) InstallVanilla(ctx context.Context, id string, force bool) (string, error) {
	if err := layout.ValidName(id); err != nil {
		return "", err
	}

	err := in.install(ctx, VanillaTaskName(id), in.layout.VersionDir(id), force, func(ctx context.Context, t *task.Task) error {
		return in.vanilla(ctx, t, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// vanilla builds the version directory in the staging tree and publishes it
// after the last step, so a failed run leaves nothing in versions/
func (in *Installer) vanilla(ctx context.Context, t *task.Task, id string) error {
	l := in.layout
	stage := l.Staging(id)

	t.Progress("Fetching version metadata", 0)
	raw, err := in.meta.VersionDescriptor(ctx, id)
	if err != nil {
		return upstreamMissing(err, "version "+id)
	}

	var d version.Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("failed to parse version %s: %w", id, err)
	}

	if err := os.MkdirAll(stage.VersionDir(id), 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	seed(l.VersionJSON(id), stage.VersionJSON(id))
	if !fileExists(stage.VersionJSON(id)) {
		if err := version.WriteRaw(stage, id, raw); err != nil {
			return err
		}
	}

	t.Progress("Downloading client", 0.02)
	if client := d.Downloads["client"]; client != nil {
		seed(l.VersionJar(id), stage.VersionJar(id))
		if _, err := in.download.Ensure(ctx, client.URL, stage.VersionJar(id), client.SHA1); err != nil {
			return fmt.Errorf("failed to download client jar: %w", err)
		}
	}

	if d.AssetIndex != nil {
		t.Progress("Downloading asset index", 0.05)
		if _, err := in.download.Ensure(ctx, d.AssetIndex.URL, l.AssetIndex(d.AssetIndex.ID), d.AssetIndex.SHA1); err != nil {
			return fmt.Errorf("failed to download asset index: %w", err)
		}

		assets := jobs.AssetsJob{
			Root:     l.Root,
			IndexID:  d.AssetIndex.ID,
			BaseURL:  in.cfg.AssetsURL,
			Parallel: in.cfg.Parallel,
		}
		if err := in.runJob(ctx, t, assets, 0.05, 0.6); err != nil {
			return err
		}
	}

	if logging := d.Logging["client"]; logging != nil && logging.File.URL != "" {
		t.Progress("Downloading logging configuration", 0.6)
		if _, err := in.download.Ensure(ctx, logging.File.URL, l.LogConfig(logging.File.ID), logging.File.SHA1); err != nil {
			return fmt.Errorf("failed to download logging configuration: %w", err)
		}
	}

	libraries := jobs.LibrariesJob{
		Root:       l.Root,
		Mode:       jobs.Type1,
		Libraries:  d.Libraries,
		ForgeMaven: in.cfg.ForgeMaven,
		Parallel:   in.cfg.Parallel,
	}
	if err := in.runJob(ctx, t, libraries, 0.62, 1); err != nil {
		return err
	}
	return in.publish(id)
}
