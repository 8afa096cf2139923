package version

import (
	"fmt"

	"github.com/bnema/craftctl/internal/layout"
)

// JarID is the version whose client jar goes on the classpath
func (d *Descriptor) JarID() string {
	if d.Jar != "" {
		return d.Jar
	}
	return d.ID
}

// Merge folds parent into child and returns the effective descriptor.
// Libraries and arguments are parent entries followed by child entries.
// Only identical coordinates collapse; the child's entry replaces the parent's in place.
func Merge(child, parent *Descriptor) *Descriptor {
	merged := *child
	merged.InheritsFrom = ""

	if merged.MainClass == "" {
		merged.MainClass = parent.MainClass
	}
	if merged.Type == "" {
		merged.Type = parent.Type
	}
	if merged.MinecraftArguments == "" {
		merged.MinecraftArguments = parent.MinecraftArguments
	}
	if merged.AssetIndex == nil {
		merged.AssetIndex = parent.AssetIndex
	}
	if merged.Assets == "" {
		merged.Assets = parent.Assets
	}
	if len(merged.Logging) == 0 {
		merged.Logging = parent.Logging
	}
	if len(merged.Downloads) == 0 {
		merged.Downloads = parent.Downloads
	}
	if merged.Jar == "" {
		merged.Jar = parent.JarID()
	}

	merged.Libraries = mergeLibraries(parent.Libraries, child.Libraries)
	merged.Arguments = mergeArguments(parent.Arguments, child.Arguments)
	return &merged
}

// mergeLibraries appends child to parent. A child entry whose coordinate the
// parent lists takes the place of the parent's first such entry. Duplicates
// within one side are kept.
func mergeLibraries(parent, child []Library) []Library {
	libs := make([]Library, 0, len(parent)+len(child))
	libs = append(libs, parent...)

	index := make(map[string]int, len(parent))
	for i, lib := range parent {
		if _, ok := index[lib.Name]; !ok && lib.Name != "" {
			index[lib.Name] = i
		}
	}

	for _, lib := range child {
		if i, ok := index[lib.Name]; ok {
			libs[i] = lib
			delete(index, lib.Name)
			continue
		}
		libs = append(libs, lib)
	}
	return libs
}

func mergeArguments(parent, child *Arguments) *Arguments {
	if parent == nil {
		return child
	}
	if child == nil {
		return parent
	}

	return &Arguments{
		Game: append(append([]Argument{}, parent.Game...), child.Game...),
		JVM:  append(append([]Argument{}, parent.JVM...), child.JVM...),
	}
}

// Resolve loads id and every ancestor it inherits from and merges them
func Resolve(l layout.Layout, id string) (*Descriptor, error) {
	return resolve(l, id, map[string]bool{})
}

func resolve(l layout.Layout, id string, seen map[string]bool) (*Descriptor, error) {
	if seen[id] {
		return nil, fmt.Errorf("%w: %s", ErrInheritanceCycle, id)
	}
	seen[id] = true

	d, err := Read(l.VersionJSON(id))
	if err != nil {
		return nil, err
	}
	if d.InheritsFrom == "" {
		return d, nil
	}

	parent, err := resolve(l, d.InheritsFrom, seen)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent of %s: %w", id, err)
	}
	return Merge(d, parent), nil
}
