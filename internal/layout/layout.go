package layout

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid name")

// Layout derives every artifact path from a single store root.
// Nothing outside this package should join store paths by hand.
type Layout struct {
	Root string
}

// New returns a layout rooted at root
func New(root string) Layout {
	return Layout{Root: root}
}

// ValidName rejects names that would not stay a single directory below
// versions/ or instances/
func ValidName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case filepath.Base(name) != name || filepath.IsAbs(name):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (l Layout) VersionsDir() string {
	return filepath.Join(l.Root, "versions")
}

// VersionDir is versions/<id>
func (l Layout) VersionDir(id string) string {
	return filepath.Join(l.VersionsDir(), id)
}

// VersionJSON is versions/<id>/<id>.json
func (l Layout) VersionJSON(id string) string {
	return filepath.Join(l.VersionDir(id), id+".json")
}

// VersionJar is versions/<id>/<id>.jar
func (l Layout) VersionJar(id string) string {
	return filepath.Join(l.VersionDir(id), id+".jar")
}

// NativesDir is where native classifiers of a version are extracted before launch
func (l Layout) NativesDir(id string) string {
	return filepath.Join(l.VersionDir(id), "natives")
}

func (l Layout) LibrariesDir() string {
	return filepath.Join(l.Root, "libraries")
}

// Library converts a slash separated maven path into a path under libraries/
func (l Layout) Library(rel string) string {
	return filepath.Join(l.LibrariesDir(), filepath.FromSlash(rel))
}

func (l Layout) AssetsDir() string {
	return filepath.Join(l.Root, "assets")
}

// AssetIndex is assets/indexes/<id>.json
func (l Layout) AssetIndex(id string) string {
	return filepath.Join(l.AssetsDir(), "indexes", id+".json")
}

// AssetObject is the content addressed location assets/objects/<hash[0:2]>/<hash>
func (l Layout) AssetObject(hash string) string {
	hash = strings.ToLower(hash)
	prefix := hash
	if len(hash) > 2 {
		prefix = hash[:2]
	}
	return filepath.Join(l.AssetsDir(), "objects", prefix, hash)
}

// LogConfig is assets/log_configs/<file>
func (l Layout) LogConfig(file string) string {
	return filepath.Join(l.AssetsDir(), "log_configs", file)
}

func (l Layout) TempDir() string {
	return filepath.Join(l.Root, "temp")
}

// Staging is a private tree under temp/ where the version directory of id is
// built before it is moved into versions/
func (l Layout) Staging(id string) Layout {
	return New(l.Temp("install-" + id))
}

// Temp returns a path inside the temp directory
func (l Layout) Temp(name string) string {
	return filepath.Join(l.TempDir(), name)
}

func (l Layout) InstancesDir() string {
	return filepath.Join(l.Root, "instances")
}

// Instance is the game directory of a named instance (modpacks)
func (l Layout) Instance(name string) string {
	return filepath.Join(l.InstancesDir(), name)
}
