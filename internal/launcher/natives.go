package launcher

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/craftctl/internal/download"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/maven"
	"github.com/bnema/craftctl/internal/version"
)

// nativePath is the archive of lib's classifier for env
func nativePath(l layout.Layout, lib version.Library, env version.Environment) (string, bool) {
	classifier, ok := lib.NativeClassifier(env)
	if !ok {
		return "", false
	}
	if lib.Downloads != nil {
		if f := lib.Downloads.Classifiers[classifier]; f != nil && f.Path != "" {
			return l.Library(f.Path), true
		}
	}
	return l.Library(maven.Parse(lib.Name).WithClassifier(classifier).Path()), true
}

// PrepareNatives extracts the native archives of d into its natives directory.
// The directory is rebuilt on every call.
func PrepareNatives(l layout.Layout, d *version.Descriptor, env version.Environment) error {
	dir := l.NativesDir(d.ID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear natives directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create natives directory: %w", err)
	}

	for _, lib := range d.Libraries {
		if !lib.Rules.Allows(env) {
			continue
		}

		var archive string
		switch {
		case lib.Natives != nil:
			path, ok := nativePath(l, lib, env)
			if !ok {
				continue
			}
			archive = path
		case isNativeArtifact(lib.Name):
			// Newer descriptors list natives as plain libraries with a natives-* classifier
			archive = l.Library(lib.Path())
		default:
			continue
		}

		var exclude []string
		if lib.Extract != nil {
			exclude = lib.Extract.Exclude
		}
		if err := download.ExtractZip(archive, dir, exclude); err != nil {
			return fmt.Errorf("failed to extract natives of %s: %w", lib.Name, err)
		}
	}
	return nil
}

func isNativeArtifact(name string) bool {
	return strings.HasPrefix(maven.Parse(name).Classifier, "natives-")
}
