package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/mod/semver"
)

// ForgeEntry is one forge build. VersionJSON and InstallProfileJSON are
// JSON documents encoded as strings upstream.
type ForgeEntry struct {
	GameVersion        string `json:"gameVersion"`
	Name               string `json:"name"`
	Recommended        bool   `json:"recommended"`
	DateModified       string `json:"dateModified"`
	VersionJSON        string `json:"versionJson"`
	InstallProfileJSON string `json:"installProfileJson,omitempty"`
	InstallerURL       string `json:"installerUrl,omitempty"`
}

// Modern reports whether the build uses the processor based installer (1.14+)
func (e ForgeEntry) Modern() bool {
	return IsModernForge(e.GameVersion)
}

// IsModernForge reports whether a game version is at least 1.14
func IsModernForge(gameVersion string) bool {
	mm := semver.MajorMinor("v" + gameVersion)
	if mm == "" {
		return false
	}
	return semver.Compare(mm, "v1.14") >= 0
}

func (r *Resolver) forgeEntries(ctx context.Context) ([]ForgeEntry, error) {
	return load(ctx, r, &r.forge, func(ctx context.Context) ([]ForgeEntry, error) {
		body, err := r.get(ctx, r.endpoints.ForgeCatalog)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch forge catalog: %w", err)
		}

		var entries []ForgeEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse forge catalog: %w", err)
		}

		r.log.Debug("Forge catalog loaded", "builds", len(entries))
		return entries, nil
	})
}

// Forge looks up a forge build by its loader version id
func (r *Resolver) Forge(ctx context.Context, loaderID string) (*ForgeEntry, error) {
	entries, err := r.forgeEntries(ctx)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].Name == loaderID {
			entry := entries[i]
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("%w: forge %s", ErrUnknownVersion, loaderID)
}

// attachForge adds every build to the bucket of its exact game version,
// newest build first
func attachForge(c *Catalog, entries []ForgeEntry) {
	for _, e := range entries {
		if v, ok := c.FindGameVersion(e.GameVersion); ok {
			v.Forge = append(v.Forge, e)
		}
	}

	for _, release := range c.Releases {
		sortForge(release.Forge)
		for _, snapshot := range release.Snapshots {
			sortForge(snapshot.Forge)
		}
	}
}

func sortForge(entries []ForgeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return semver.Compare("v"+entries[i].Name, "v"+entries[j].Name) > 0
	})
}
