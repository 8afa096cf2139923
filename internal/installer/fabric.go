package installer

import (
	"context"
	"fmt"
	"os"

	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/meta"
	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/version"
)

// FabricVersionID is the on-disk version id of a fabric loader on a game version
func FabricVersionID(loader, gameVersion string) string {
	return "fabric-loader-" + loader + "-" + gameVersion
}

// FabricTaskName is the display name of a fabric installation
func FabricTaskName(loader, mappings string) string {
	return "Fabric " + loader + "-" + mappings
}

// InstallFabric installs the vanilla version targeted by mappings and a
// synthesized fabric version on top of it, and returns the fabric version id.
func (in *Installer) InstallFabric(ctx context.Context, mappings, loader string, force bool) (string, error) {
	gameVersion := meta.Fabricify(mappings).GameVersion

	if _, err := in.InstallVanilla(ctx, gameVersion, force); err != nil {
		return "", err
	}

	id := FabricVersionID(loader, gameVersion)
	if err := layout.ValidName(id); err != nil {
		return "", err
	}
	err := in.install(ctx, FabricTaskName(loader, mappings), in.layout.VersionDir(id), force, func(ctx context.Context, t *task.Task) error {
		return in.fabric(ctx, t, id, gameVersion, mappings, loader)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (in *Installer) fabric(ctx context.Context, t *task.Task, id, gameVersion, mappings, loader string) error {
	t.Progress("Fetching fabric launch metadata", 0)
	lm, err := in.meta.FabricLaunchMeta(ctx, loader)
	if err != nil {
		return upstreamMissing(err, "fabric loader "+loader)
	}

	repo := in.meta.Endpoints().FabricMaven
	libraries := append(lm.Libraries,
		version.Library{Name: meta.LoaderCoordinate(loader), URL: repo},
		version.Library{Name: meta.MappingsCoordinate(mappings), URL: repo},
	)

	d := &version.Descriptor{
		ID:           id,
		InheritsFrom: gameVersion,
		Type:         "release",
		MainClass:    lm.MainClass,
		Libraries:    libraries,
		Arguments:    &version.Arguments{},
	}
	for _, tweaker := range lm.Tweakers {
		d.Arguments.Game = append(d.Arguments.Game, version.Literal("--tweakClass"), version.Literal(tweaker))
	}

	stage := in.layout.Staging(id)
	if err := os.MkdirAll(stage.VersionDir(id), 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := version.Write(stage, d); err != nil {
		return err
	}

	// Fabric has no client jar of its own
	if err := os.WriteFile(stage.VersionJar(id), nil, 0644); err != nil {
		return fmt.Errorf("failed to write placeholder jar: %w", err)
	}

	err = in.runJob(ctx, t, jobs.LibrariesJob{
		Root:      in.layout.Root,
		Mode:      jobs.Type2,
		Libraries: libraries,
		Parallel:  in.cfg.Parallel,
	}, 0.05, 1)
	if err != nil {
		return err
	}
	return in.publish(id)
}
