package meta

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bnema/craftctl/internal/maven"
	"github.com/bnema/craftctl/internal/version"
)

const (
	FabricLoaderCoordinate   = "net.fabricmc:fabric-loader"
	FabricMappingsCoordinate = "net.fabricmc:yarn"
)

// FabricVersion is a fabric loader or mappings build
type FabricVersion struct {
	Version     string
	GameVersion string
	BuildID     string
	URL         string
}

// Fabricify splits a fabric build string into game version and build id.
//
//	1.16.5+build.61 -> 1.16.5, 61
//	1.16.5-1.7.0    -> 1.16.5, 0
//	0.11.3          -> 0.11, 3
func Fabricify(v string) FabricVersion {
	fv := FabricVersion{Version: v}

	if strings.Contains(v, "+build.") {
		fv.GameVersion = v[:strings.LastIndex(v, "+")]
	} else {
		sep := "."
		if strings.Contains(v, "-") {
			sep = "-"
		}
		if i := strings.LastIndex(v, sep); i >= 0 {
			fv.GameVersion = v[:i]
		} else {
			fv.GameVersion = v
		}
	}

	fv.BuildID = v[strings.LastIndex(v, ".")+1:]
	return fv
}

// fabricArtifact builds the maven coordinate of a fabric build
func fabricArtifact(coordinate, v string) maven.Coordinate {
	return maven.Parse(coordinate + ":" + v)
}

// LoaderCoordinate is the library name of a fabric loader build
func LoaderCoordinate(loader string) string {
	return FabricLoaderCoordinate + ":" + loader
}

// MappingsCoordinate is the library name of a mappings build
func MappingsCoordinate(mappings string) string {
	return FabricMappingsCoordinate + ":" + mappings
}

type mavenMetadata struct {
	Versions []string `xml:"versioning>versions>version"`
}

func (r *Resolver) fabricFeed(ctx context.Context, url, coordinate string) ([]FabricVersion, error) {
	body, err := r.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fabric metadata: %w", err)
	}

	var md mavenMetadata
	if err := xml.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("failed to parse fabric metadata: %w", err)
	}

	builds := make([]FabricVersion, 0, len(md.Versions))
	for _, v := range md.Versions {
		fv := Fabricify(v)
		fv.URL = fabricArtifact(coordinate, v).URL(r.endpoints.FabricMaven)
		builds = append(builds, fv)
	}
	return builds, nil
}

// FabricLoaders returns every loader build
func (r *Resolver) FabricLoaders(ctx context.Context) ([]FabricVersion, error) {
	return load(ctx, r, &r.loaders, func(ctx context.Context) ([]FabricVersion, error) {
		return r.fabricFeed(ctx, r.endpoints.FabricLoader, FabricLoaderCoordinate)
	})
}

// FabricMappings returns every mappings build
func (r *Resolver) FabricMappings(ctx context.Context) ([]FabricVersion, error) {
	return load(ctx, r, &r.mappings, func(ctx context.Context) ([]FabricVersion, error) {
		return r.fabricFeed(ctx, r.endpoints.FabricMappings, FabricMappingsCoordinate)
	})
}

func attachFabric(c *Catalog, builds []FabricVersion) {
	for _, b := range builds {
		if v, ok := c.FindGameVersion(b.GameVersion); ok {
			v.Fabric = append(v.Fabric, b)
		}
	}
}

// Catalog returns the vanilla catalog with forge and fabric builds attached.
// A loader feed that cannot be fetched is logged and left out.
func (r *Resolver) Catalog(ctx context.Context) (*Catalog, error) {
	c, err := r.Vanilla(ctx)
	if err != nil {
		return nil, err
	}

	if r.endpoints.ForgeCatalog != "" {
		if entries, err := r.forgeEntries(ctx); err != nil {
			r.log.Warn("Forge catalog unavailable", "error", err)
		} else {
			attachForge(c, entries)
		}
	}

	if mappings, err := r.FabricMappings(ctx); err != nil {
		r.log.Warn("Fabric mappings unavailable", "error", err)
	} else {
		attachFabric(c, mappings)
	}

	if loaders, err := r.FabricLoaders(ctx); err != nil {
		r.log.Warn("Fabric loaders unavailable", "error", err)
	} else {
		attachFabric(c, loaders)
		c.Loaders = loaders
	}

	return c, nil
}

// LaunchMeta is the launch information published with a fabric loader build
type LaunchMeta struct {
	MainClass string
	Libraries []version.Library
	Tweakers  []string
}

// FabricLaunchMeta fetches the launch meta of a loader build
func (r *Resolver) FabricLaunchMeta(ctx context.Context, loader string) (*LaunchMeta, error) {
	coord := fabricArtifact(FabricLoaderCoordinate, loader)
	coord.Extension = "json"

	body, err := r.get(ctx, coord.URL(r.endpoints.FabricMaven))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fabric launch meta: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid fabric launch meta for %s", loader)
	}

	lm := &LaunchMeta{}

	mainClass := gjson.GetBytes(body, "mainClass")
	if mainClass.IsObject() {
		lm.MainClass = mainClass.Get("client").String()
	} else {
		lm.MainClass = mainClass.String()
	}

	for _, key := range []string{"libraries.common", "libraries.client"} {
		raw := gjson.GetBytes(body, key)
		if !raw.Exists() {
			continue
		}
		var libs []version.Library
		if err := json.Unmarshal([]byte(raw.Raw), &libs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		lm.Libraries = append(lm.Libraries, libs...)
	}

	gjson.GetBytes(body, "launchwrapper.tweakers.client").ForEach(func(_, value gjson.Result) bool {
		lm.Tweakers = append(lm.Tweakers, value.String())
		return true
	})

	return lm, nil
}
