package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/buger/jsonparser"

	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/maven"
	"github.com/bnema/craftctl/internal/meta"
	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/version"
)

// ForgeVersionID is the on-disk version id of a forge build.
// Modern builds are prefixed with the game version, legacy builds use the bare loader id.
func ForgeVersionID(e meta.ForgeEntry) string {
	if e.Modern() {
		return e.GameVersion + "-" + e.Name
	}
	return e.Name
}

// ForgeTaskName is the display name of a forge installation
func ForgeTaskName(e meta.ForgeEntry) string {
	if e.Modern() {
		return "Forge " + e.GameVersion + "-" + e.Name
	}
	return "Forge " + e.Name
}

// InstallForge installs the vanilla parent and then the forge build loaderID,
// and returns the forge version id.
func (in *Installer) InstallForge(ctx context.Context, loaderID string, force bool) (string, error) {
	entry, err := in.meta.Forge(ctx, loaderID)
	if err != nil {
		return "", upstreamMissing(err, "forge "+loaderID)
	}

	if _, err := in.InstallVanilla(ctx, entry.GameVersion, force); err != nil {
		return "", err
	}

	id := ForgeVersionID(*entry)
	if err := layout.ValidName(id); err != nil {
		return "", err
	}
	err = in.install(ctx, ForgeTaskName(*entry), in.layout.VersionDir(id), force, func(ctx context.Context, t *task.Task) error {
		return in.forge(ctx, t, *entry, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (in *Installer) forge(ctx context.Context, t *task.Task, entry meta.ForgeEntry, id string) error {
	t.Progress("Preparing forge "+entry.Name, 0)

	data, err := forgeVersionJSON([]byte(entry.VersionJSON), id, entry)
	if err != nil {
		return err
	}

	var d version.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to parse forge version %s: %w", entry.Name, err)
	}

	stage := in.layout.Staging(id)
	if err := os.MkdirAll(stage.VersionDir(id), 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := version.WriteRaw(stage, id, data); err != nil {
		return err
	}

	if !entry.Modern() {
		err := in.runJob(ctx, t, jobs.LibrariesJob{
			Root:       in.layout.Root,
			Mode:       jobs.Type2,
			Libraries:  d.Libraries,
			ForgeMaven: in.cfg.ForgeMaven,
			Parallel:   in.cfg.Parallel,
		}, 0, 1)
		if err != nil {
			return err
		}
		return in.publish(id)
	}

	if entry.InstallProfileJSON == "" {
		return missing("forge %s has no install profile", entry.Name)
	}

	var installProfile struct {
		Libraries []version.Library `json:"libraries"`
	}
	if err := json.Unmarshal([]byte(entry.InstallProfileJSON), &installProfile); err != nil {
		return fmt.Errorf("failed to parse forge install profile: %w", err)
	}

	libraries := jobs.LibrariesJob{
		Root:       in.layout.Root,
		Mode:       jobs.Type1,
		Libraries:  unionLibraries(d.Libraries, installProfile.Libraries),
		ForgeMaven: in.cfg.ForgeMaven,
		Parallel:   in.cfg.Parallel,
	}
	if err := in.runJob(ctx, t, libraries, 0, 0.4); err != nil {
		return err
	}

	processors := jobs.ForgeProcessorsJob{
		Root:           in.layout.Root,
		VersionID:      id,
		GameVersion:    entry.GameVersion,
		InstallerURL:   in.forgeInstallerURL(entry),
		InstallProfile: json.RawMessage(entry.InstallProfileJSON),
		Java:           in.cfg.Java,
	}
	if err := in.runJob(ctx, t, processors, 0.4, 1); err != nil {
		return err
	}
	return in.publish(id)
}

// forgeVersionJSON rewrites the embedded forge version JSON for the store:
// comments and an empty logging block are dropped, the id is replaced and
// the vanilla parent is referenced.
func forgeVersionJSON(data []byte, id string, entry meta.ForgeEntry) ([]byte, error) {
	if len(data) == 0 {
		return nil, missing("forge %s has no version JSON", entry.Name)
	}

	data = jsonparser.Delete(data, "_comment_")
	if logging, dataType, _, err := jsonparser.Get(data, "logging"); err == nil && dataType == jsonparser.Object && isEmptyObject(logging) {
		data = jsonparser.Delete(data, "logging")
	}

	var err error
	if data, err = setString(data, id, "id"); err != nil {
		return nil, err
	}
	if _, err := jsonparser.GetString(data, "inheritsFrom"); errors.Is(err, jsonparser.KeyPathNotFoundError) {
		if data, err = setString(data, entry.GameVersion, "inheritsFrom"); err != nil {
			return nil, err
		}
	}
	if !entry.Modern() {
		if data, err = setString(data, entry.GameVersion, "jar"); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func setString(data []byte, value string, key string) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out, err := jsonparser.Set(data, raw, key)
	if err != nil {
		return nil, fmt.Errorf("failed to set %s in version JSON: %w", key, err)
	}
	return out, nil
}

func isEmptyObject(raw []byte) bool {
	empty := true
	_ = jsonparser.ObjectEach(raw, func([]byte, []byte, jsonparser.ValueType, int) error {
		empty = false
		return nil
	})
	return empty
}

// unionLibraries appends the entries of extra whose coordinate is not in base
func unionLibraries(base, extra []version.Library) []version.Library {
	seen := make(map[string]bool, len(base))
	out := make([]version.Library, 0, len(base)+len(extra))
	for _, lib := range base {
		seen[lib.Name] = true
		out = append(out, lib)
	}
	for _, lib := range extra {
		if seen[lib.Name] {
			continue
		}
		seen[lib.Name] = true
		out = append(out, lib)
	}
	return out
}

func (in *Installer) forgeInstallerURL(entry meta.ForgeEntry) string {
	if entry.InstallerURL != "" {
		return entry.InstallerURL
	}
	base := in.cfg.ForgeMaven
	if base == "" {
		base = jobs.DefaultForgeMaven
	}
	coord := maven.Parse("net.minecraftforge:forge:" + entry.GameVersion + "-" + entry.Name + ":installer")
	return coord.URL(base)
}
