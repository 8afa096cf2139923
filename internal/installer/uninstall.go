package installer

import (
	"errors"
	"fmt"
	"os"

	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/version"
)

var ErrVersionInUse = errors.New("version is required by another installed version")

// Uninstall removes the version directory of id. Libraries and assets are
// shared between versions and stay in the store.
func (in *Installer) Uninstall(id string) error {
	if err := layout.ValidName(id); err != nil {
		return err
	}
	dir := in.layout.VersionDir(id)
	if !dirExists(dir) {
		return fmt.Errorf("%w: %s", version.ErrNotInstalled, id)
	}

	dependents, err := in.dependents(id)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		return fmt.Errorf("%w: %s is used by %v", ErrVersionInUse, id, dependents)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove version directory: %w", err)
	}
	in.log.Info("Version removed", "version", id, "path", dir)
	return nil
}

// dependents lists the installed versions that inherit from id or use its jar
func (in *Installer) dependents(id string) ([]string, error) {
	entries, err := os.ReadDir(in.layout.VersionsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read versions directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == id {
			continue
		}
		d, err := version.Read(in.layout.VersionJSON(e.Name()))
		if err != nil {
			in.log.Debug("Skipping unreadable version", "version", e.Name(), "error", err)
			continue
		}
		if d.InheritsFrom == id || d.Jar == id {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}
