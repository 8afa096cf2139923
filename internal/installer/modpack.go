package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/craftctl/internal/download"
	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/version"
)

// instanceFile records what a modpack instance runs on
const instanceFile = "craftctl-instance.json"

// ModpackManifest is the manifest.json of a curse modpack archive
type ModpackManifest struct {
	Name      string `json:"name"`
	Overrides string `json:"overrides"`
	Minecraft struct {
		Version    string      `json:"version"`
		ModLoaders []ModLoader `json:"modLoaders"`
	} `json:"minecraft"`
	Files []jobs.ModFile `json:"files"`
}

// ModLoader is one loader declared by a modpack, e.g. forge-36.1.0
type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

// PrimaryForge returns the loader id of the primary forge loader
func (m *ModpackManifest) PrimaryForge() (string, bool) {
	for _, loader := range m.Minecraft.ModLoaders {
		if !loader.Primary {
			continue
		}
		if id, ok := strings.CutPrefix(loader.ID, "forge-"); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// Modpack is the result of a modpack installation
type Modpack struct {
	Name      string              `json:"name"`
	VersionID string              `json:"versionId"`
	Version   *version.Descriptor `json:"-"`
}

// ModpackTaskName is the display name of a modpack installation
func ModpackTaskName(name string) string {
	return "Modpack " + name
}

// InstallCurseModpack installs the modpack archive at url into a fresh
// instance directory, then its forge loader and its mods.
func (in *Installer) InstallCurseModpack(ctx context.Context, name, url string) (*Modpack, error) {
	if err := layout.ValidName(name); err != nil {
		return nil, fmt.Errorf("invalid modpack name: %w", err)
	}
	dir := in.layout.Instance(name)

	t, _ := in.tasks.Do(ModpackTaskName(name), func(ctx context.Context, t *task.Task) error {
		return in.modpack(ctx, t, name, url, dir)
	})
	if err := t.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, instanceFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read instance file: %w", err)
	}
	var pack Modpack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse instance file: %w", err)
	}

	pack.Version, err = version.Resolve(in.layout, pack.VersionID)
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

func (in *Installer) modpack(ctx context.Context, t *task.Task, name, url, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear instance directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create instance directory: %w", err)
	}

	archive := in.layout.Temp("modpack-" + sanitize(name) + ".zip")
	extracted := strings.TrimSuffix(archive, filepath.Ext(archive))
	defer func() {
		_ = os.Remove(archive)
		_ = os.RemoveAll(extracted)
	}()

	t.Progress("Downloading modpack", 0)
	if _, err := in.download.Download(ctx, url, archive); err != nil {
		return fmt.Errorf("failed to download modpack: %w", err)
	}
	if _, err := download.Unzip(archive); err != nil {
		return err
	}

	manifest, err := readModpackManifest(extracted)
	if err != nil {
		return err
	}

	overrides := manifest.Overrides
	if overrides == "" {
		overrides = "overrides"
	}
	if err := copyOverrides(filepath.Join(extracted, overrides), dir, func(done, total int) {
		t.Progress(fmt.Sprintf("Copying overrides (%d/%d)", done, total), 0.1+0.2*float64(done)/float64(total))
	}); err != nil {
		return err
	}

	loader, ok := manifest.PrimaryForge()
	if !ok {
		return missing("modpack %s declares no primary forge loader", name)
	}

	t.Progress("Installing forge "+loader, 0.3)
	versionID, err := in.InstallForge(ctx, loader, false)
	if err != nil {
		return err
	}

	mods := jobs.ModsJob{
		InstanceDir: dir,
		CurseAPI:    in.cfg.CurseAPI,
		Files:       manifest.Files,
		Parallel:    in.cfg.Parallel,
	}
	if err := in.runJob(ctx, t, mods, 0.5, 1); err != nil {
		return err
	}

	record, err := json.MarshalIndent(Modpack{Name: name, VersionID: versionID}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, instanceFile), record, 0644)
}

func readModpackManifest(dir string) (*ModpackManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read modpack manifest: %w", err)
	}

	var m ModpackManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse modpack manifest: %w", err)
	}
	return &m, nil
}

// copyOverrides copies every top level entry of src into dst and reports
// after each one. A pack without overrides is valid.
func copyOverrides(src, dst string, progress func(done, total int)) error {
	entries, err := os.ReadDir(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read overrides: %w", err)
	}

	for i, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			err = copyDir(srcPath, dstPath)
		} else {
			err = copyFile(srcPath, dstPath)
		}
		if err != nil {
			return fmt.Errorf("failed to copy override %s: %w", entry.Name(), err)
		}
		progress(i+1, len(entries))
	}
	return nil
}

func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			err = copyDir(srcPath, dstPath)
		} else {
			err = copyFile(srcPath, dstPath)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer func() { _ = dstFile.Close() }()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// sanitize makes a display name usable as a file name
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
