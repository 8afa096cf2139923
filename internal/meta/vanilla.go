package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type manifestEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	ReleaseTime time.Time `json:"releaseTime"`
}

// GameVersion is one catalog bucket. Releases own the snapshots published
// after them; loader builds are attached by exact game version.
type GameVersion struct {
	ID          string
	Type        string
	URL         string
	ReleaseTime time.Time
	Snapshots   []*GameVersion
	Forge       []ForgeEntry
	Fabric      []FabricVersion
}

// Catalog groups upstream versions into release buckets
type Catalog struct {
	Releases []*GameVersion

	// Old holds alpha and beta versions
	Old []*GameVersion

	// Loaders is every fabric loader build, unattached
	Loaders []FabricVersion
}

// FindGameVersion searches releases and their snapshots. Absence is not an error.
func (c *Catalog) FindGameVersion(id string) (*GameVersion, bool) {
	for _, release := range c.Releases {
		if release.ID == id {
			return release, true
		}
		for _, snapshot := range release.Snapshots {
			if snapshot.ID == id {
				return snapshot, true
			}
		}
	}
	return nil, false
}

func (r *Resolver) manifestEntries(ctx context.Context) ([]manifestEntry, error) {
	return load(ctx, r, &r.manifest, func(ctx context.Context) ([]manifestEntry, error) {
		body, err := r.get(ctx, r.endpoints.VersionManifest)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch version manifest: %w", err)
		}

		var manifest struct {
			Versions []manifestEntry `json:"versions"`
		}
		if err := json.Unmarshal(body, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse version manifest: %w", err)
		}

		r.log.Debug("Version manifest loaded", "versions", len(manifest.Versions))
		return manifest.Versions, nil
	})
}

// Vanilla returns the release catalog without loader attachments
func (r *Resolver) Vanilla(ctx context.Context) (*Catalog, error) {
	entries, err := r.manifestEntries(ctx)
	if err != nil {
		return nil, err
	}
	return buildCatalog(entries), nil
}

// buildCatalog walks the manifest newest first. Snapshots wait until the next
// (older) release is reached and become part of it.
func buildCatalog(entries []manifestEntry) *Catalog {
	c := &Catalog{}
	var pending []*GameVersion

	for _, e := range entries {
		v := &GameVersion{ID: e.ID, Type: e.Type, URL: e.URL, ReleaseTime: e.ReleaseTime}

		switch e.Type {
		case "release":
			v.Snapshots = pending
			pending = nil
			c.Releases = append(c.Releases, v)
		case "snapshot":
			pending = append(pending, v)
		default:
			c.Old = append(c.Old, v)
		}
	}

	c.Old = append(c.Old, pending...)
	return c
}

// VersionDescriptor fetches the upstream version JSON for id
func (r *Resolver) VersionDescriptor(ctx context.Context, id string) ([]byte, error) {
	entries, err := r.manifestEntries(ctx)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.ID != id {
			continue
		}
		body, err := r.get(ctx, e.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch version %s: %w", id, err)
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, id)
}
