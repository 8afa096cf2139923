package jobs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/craftctl/internal/checksum"
	"github.com/bnema/craftctl/internal/download"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/maven"
	"github.com/bnema/craftctl/internal/version"
)

// DefaultForgeMaven hosts forge artifacts
const DefaultForgeMaven = "https://maven.minecraftforge.net/"

// brokenLog4jMirror serves corrupted log4j artifacts referenced by old forge profiles
const brokenLog4jMirror = "https://files.minecraftforge.net/maven/org/apache/logging/log4j/"

type libraryInstaller struct {
	layout     layout.Layout
	downloader *download.Downloader
	env        version.Environment
	forgeMaven string
}

func runLibraries(ctx context.Context, job LibrariesJob, env Env) error {
	li := &libraryInstaller{
		layout:     layout.New(job.Root),
		downloader: env.downloader(),
		env:        version.CurrentEnvironment(),
		forgeMaven: job.ForgeMaven,
	}
	if li.forgeMaven == "" {
		li.forgeMaven = DefaultForgeMaven
	}

	install := li.type1
	if job.Mode == Type2 {
		install = li.type2
	}

	env.Log.Debug("Installing libraries", "mode", job.Mode, "count", len(job.Libraries))

	total := len(job.Libraries)
	return forEach(ctx, job.Parallel, total, func(ctx context.Context, i int) error {
		lib := job.Libraries[i]
		if err := install(ctx, lib); err != nil {
			return fmt.Errorf("failed to install library %s: %w", lib.Name, err)
		}
		return nil
	}, func(completed int) {
		env.Reporter.Progress(fmt.Sprintf("Downloading libraries (%d/%d)", completed, total), fraction(completed, total))
	})
}

// type1 installs a vanilla shaped library: rules, primary artifact, native classifier
func (li *libraryInstaller) type1(ctx context.Context, lib version.Library) error {
	if !lib.Rules.Allows(li.env) {
		return nil
	}

	if lib.Downloads == nil {
		return li.type2(ctx, lib)
	}

	if art := lib.Downloads.Artifact; art != nil {
		file := li.fixArtifact(lib, *art)
		if file.URL != "" {
			if _, err := li.downloader.Ensure(ctx, file.URL, li.layout.Library(lib.Path()), file.SHA1); err != nil {
				return err
			}
		}
	}

	classifier, ok := lib.NativeClassifier(li.env)
	if !ok {
		return nil
	}
	native, ok := lib.Downloads.Classifiers[classifier]
	if !ok || native == nil {
		return nil
	}

	rel := native.Path
	if rel == "" {
		rel = maven.Parse(lib.Name).WithClassifier(classifier).Path()
	}
	_, err := li.downloader.Ensure(ctx, native.URL, li.layout.Library(rel), native.SHA1)
	return err
}

// fixArtifact applies the upstream URL corrections.
// Forge profiles list the universal jar with an empty URL, and some old profiles
// point log4j at a mirror that serves broken files.
func (li *libraryInstaller) fixArtifact(lib version.Library, art version.File) version.File {
	if art.URL == "" && strings.HasPrefix(lib.Name, "net.minecraftforge:forge:") {
		coord := maven.Parse(lib.Name)
		if coord.Classifier == "" {
			coord = coord.WithClassifier("universal")
		}
		art.URL = coord.URL(li.forgeMaven)
		art.SHA1 = ""
		return art
	}

	if strings.HasPrefix(art.URL, brokenLog4jMirror) {
		art.URL = maven.CentralURL + "org/apache/logging/log4j/" + strings.TrimPrefix(art.URL, brokenLog4jMirror)
	}
	return art
}

// type2 installs a maven shaped library
func (li *libraryInstaller) type2(ctx context.Context, lib version.Library) error {
	if lib.ClientReq != nil && !*lib.ClientReq {
		return nil
	}
	if !lib.Rules.Allows(li.env) {
		return nil
	}

	coord := maven.Parse(lib.Name)
	url := coord.URL(lib.URL)
	dest := li.layout.Library(coord.Path())

	if anyValid(dest, lib.Checksums) {
		return nil
	}

	if lib.Packed == "" {
		_, err := li.downloader.Download(ctx, url, dest)
		return err
	}

	packed := dest + "." + lib.Packed
	if _, err := li.downloader.Download(ctx, url+"."+lib.Packed, packed); err != nil {
		return err
	}
	if _, err := download.Decompress(packed); err != nil {
		return err
	}
	return os.Remove(packed)
}

// anyValid reports whether path matches one of the declared checksums.
// No checksums means existence only.
func anyValid(path string, sums []string) bool {
	if len(sums) == 0 {
		return checksum.IsValid(path, "")
	}
	for _, sum := range sums {
		if checksum.IsValid(path, sum) {
			return true
		}
	}
	return false
}
