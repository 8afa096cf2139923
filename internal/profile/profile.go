package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flavor is the mod loader family of a profile
type Flavor string

const (
	Vanilla Flavor = "vanilla"
	Forge   Flavor = "forge"
	Fabric  Flavor = "fabric"
)

var ErrInvalidProfile = errors.New("invalid profile")

// Resolution is the initial game window size
type Resolution struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Memory is the JVM heap range in megabytes
type Memory struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Source is a resource or shader pack kept in sync with a git repository
type Source struct {
	URL string `yaml:"url"`
	Ref string `yaml:"ref,omitempty"`
	// Dir is relative to the game directory, e.g. resourcepacks/faithful
	Dir string `yaml:"dir"`
}

// Profile is the read-only view the installer and launcher need
type Profile interface {
	Flavor() Flavor
	// Version is the vanilla game version id
	Version() string
	// Forge is the forge loader id
	Forge() string
	// Fabric returns the mappings and loader builds
	Fabric() (mappings, loader string)
	Memory() Memory
	Resolution() *Resolution
	JavaArgs() []string
	Directory() string
	Sources() []Source
}

// File is a profile stored as YAML
type File struct {
	Name      string `yaml:"name"`
	Kind      Flavor `yaml:"flavor"`
	GameID    string `yaml:"version,omitempty"`
	ForgeID   string `yaml:"forge,omitempty"`
	FabricIDs struct {
		Mappings string `yaml:"mappings"`
		Loader   string `yaml:"loader"`
	} `yaml:"fabric,omitempty"`
	Mem    Memory      `yaml:"memory,omitempty"`
	Window *Resolution `yaml:"resolution,omitempty"`
	Java   []string    `yaml:"java_args,omitempty"`
	Dir    string      `yaml:"directory"`
	Packs  []Source    `yaml:"sources,omitempty"`

	// Player is the offline player name used at launch
	Player string `yaml:"player,omitempty"`
}

func (f *File) Flavor() Flavor { return f.Kind }
func (f *File) Version() string { return f.GameID }
func (f *File) Forge() string { return f.ForgeID }
func (f *File) Memory() Memory { return f.Mem }
func (f *File) Resolution() *Resolution { return f.Window }
func (f *File) JavaArgs() []string { return f.Java }
func (f *File) Directory() string { return f.Dir }

func (f *File) Sources() []Source { return f.Packs }
func (f *File) Fabric() (string, string) { return f.FabricIDs.Mappings, f.FabricIDs.Loader }

// Load reads and validates a profile file. A relative directory is resolved
// against the profile file location.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	if f.Dir == "" {
		f.Dir = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if !filepath.IsAbs(f.Dir) {
		f.Dir = filepath.Join(filepath.Dir(path), f.Dir)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks that the selectors of the flavor are set
func (f *File) Validate() error {
	switch f.Kind {
	case Vanilla:
		if f.GameID == "" {
			return fmt.Errorf("%w: vanilla profile without version", ErrInvalidProfile)
		}
	case Forge:
		if f.ForgeID == "" {
			return fmt.Errorf("%w: forge profile without forge loader", ErrInvalidProfile)
		}
	case Fabric:
		if f.FabricIDs.Mappings == "" || f.FabricIDs.Loader == "" {
			return fmt.Errorf("%w: fabric profile needs mappings and loader", ErrInvalidProfile)
		}
	default:
		return fmt.Errorf("%w: unknown flavor %q", ErrInvalidProfile, f.Kind)
	}

	if f.Mem.Min > 0 && f.Mem.Max > 0 && f.Mem.Min > f.Mem.Max {
		return fmt.Errorf("%w: minimum memory above maximum", ErrInvalidProfile)
	}
	for _, src := range f.Packs {
		if src.URL == "" {
			return fmt.Errorf("%w: source without url", ErrInvalidProfile)
		}
		if rel := filepath.FromSlash(src.Dir); !filepath.IsLocal(rel) || filepath.Clean(rel) == "." {
			return fmt.Errorf("%w: source directory %q must stay inside the game directory", ErrInvalidProfile, src.Dir)
		}
	}
	return nil
}
