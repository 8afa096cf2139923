package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bnema/craftctl/internal/checksum"
	"github.com/bnema/craftctl/internal/download"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/maven"
)

var ErrUnresolvedToken = errors.New("unresolved token in processor arguments")

// ProcessFailure is a processor that exited with a non-zero code
type ProcessFailure struct {
	Processor string
	Code      int
}

func (e *ProcessFailure) Error() string {
	return fmt.Sprintf("processor %s exited with code %d", e.Processor, e.Code)
}

// InstallProfile is the part of a forge install_profile.json the processors need
type InstallProfile struct {
	Data       map[string]SidedValue `json:"data"`
	Processors []Processor           `json:"processors"`
}

// SidedValue holds the client and server value of a data entry
type SidedValue struct {
	Client string `json:"client"`
	Server string `json:"server"`
}

// Processor is one post processing step
type Processor struct {
	Jar       string            `json:"jar"`
	Classpath []string          `json:"classpath"`
	Args      []string          `json:"args"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Sides     []string          `json:"sides,omitempty"`
}

func (p Processor) runsOnClient() bool {
	if len(p.Sides) == 0 {
		return true
	}
	for _, side := range p.Sides {
		if side == "client" {
			return true
		}
	}
	return false
}

var tokenPattern = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

type processorRunner struct {
	layout    layout.Layout
	installer string
	extracted string
	data      map[string]string
	java      string
	env       Env
}

func runProcessors(ctx context.Context, job ForgeProcessorsJob, env Env) error {
	var profile InstallProfile
	if err := json.Unmarshal(job.InstallProfile, &profile); err != nil {
		return fmt.Errorf("failed to parse install profile: %w", err)
	}

	l := layout.New(job.Root)
	installer := l.Temp("forge-" + job.VersionID + "-installer.jar")
	extracted := strings.TrimSuffix(installer, ".jar")
	defer func() {
		_ = os.Remove(installer)
		_ = os.RemoveAll(extracted)
	}()

	env.Reporter.Progress("Downloading forge installer", 0)
	if _, err := env.downloader().Download(ctx, job.InstallerURL, installer); err != nil {
		return fmt.Errorf("failed to download forge installer: %w", err)
	}
	if err := download.ExtractZip(installer, extracted, nil); err != nil {
		return err
	}

	java := job.Java
	if java == "" {
		java = "java"
	}

	pr := &processorRunner{
		layout:    l,
		installer: installer,
		extracted: extracted,
		java:      java,
		env:       env,
	}
	pr.data = pr.buildData(profile.Data, job.GameVersion)

	total := len(profile.Processors)
	for i, proc := range profile.Processors {
		if err := ctx.Err(); err != nil {
			return err
		}

		env.Reporter.Progress(fmt.Sprintf("Running forge processor %d/%d", i+1, total), fraction(i, total))
		if err := pr.run(ctx, proc); err != nil {
			return err
		}
	}

	env.Reporter.Progress("Forge processors done", 1)
	return nil
}

// buildData resolves the client value of every data entry and adds the
// standard variables
func (pr *processorRunner) buildData(data map[string]SidedValue, gameVersion string) map[string]string {
	resolved := map[string]string{
		"SIDE":              "client",
		"MINECRAFT_JAR":     pr.layout.VersionJar(gameVersion),
		"MINECRAFT_VERSION": gameVersion,
		"ROOT":              pr.layout.Root,
		"INSTALLER":         pr.installer,
		"LIBRARY_DIR":       pr.layout.LibrariesDir(),
	}

	for key, v := range data {
		resolved[key] = pr.resolveValue(v.Client)
	}
	return resolved
}

// resolveValue handles the three data forms: [coordinate], /path inside the
// installer and literals (optionally single quoted)
func (pr *processorRunner) resolveValue(v string) string {
	switch {
	case strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]"):
		return pr.layout.Library(maven.ResolveLibraryPath(v))
	case strings.HasPrefix(v, "/"):
		return filepath.Join(pr.extracted, filepath.FromSlash(strings.TrimPrefix(v, "/")))
	case len(v) >= 2 && strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'"):
		return v[1 : len(v)-1]
	default:
		return v
	}
}

// substitute replaces {KEY} tokens and a whole-argument [coordinate]
func (pr *processorRunner) substitute(arg string) string {
	if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
		return pr.layout.Library(maven.ResolveLibraryPath(arg))
	}
	return tokenPattern.ReplaceAllStringFunc(arg, func(tok string) string {
		if v, ok := pr.data[tok[1:len(tok)-1]]; ok {
			return v
		}
		return tok
	})
}

// Args returns the fully substituted arguments of p
func (pr *processorRunner) Args(p Processor) ([]string, error) {
	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		args[i] = pr.substitute(a)
		if tok := tokenPattern.FindString(args[i]); tok != "" {
			return nil, fmt.Errorf("%w: %s in %q", ErrUnresolvedToken, tok, a)
		}
	}
	return args, nil
}

// outputsValid reports whether every declared output exists with its checksum
func (pr *processorRunner) outputsValid(p Processor) bool {
	if len(p.Outputs) == 0 {
		return false
	}
	for file, sum := range p.Outputs {
		if !checksum.IsValid(pr.substitute(file), pr.substitute(sum)) {
			return false
		}
	}
	return true
}

func (pr *processorRunner) run(ctx context.Context, p Processor) error {
	if !p.runsOnClient() {
		return nil
	}
	if pr.outputsValid(p) {
		pr.env.Log.Debug("Processor outputs already valid, skipping", "jar", p.Jar)
		return nil
	}

	jar := pr.layout.Library(maven.ResolveLibraryPath(p.Jar))
	mainClass, err := maven.FindMainClass(jar)
	if err != nil {
		return err
	}

	classpath := []string{jar}
	for _, coord := range p.Classpath {
		classpath = append(classpath, pr.layout.Library(maven.ResolveLibraryPath(coord)))
	}

	args, err := pr.Args(p)
	if err != nil {
		return err
	}

	cmdArgs := append([]string{"-cp", strings.Join(classpath, string(os.PathListSeparator)), mainClass}, args...)
	pr.env.Log.Debug("Running processor", "jar", p.Jar, "main", mainClass)

	cmd := exec.CommandContext(ctx, pr.java, cmdArgs...)
	cmd.Dir = pr.layout.Root
	if err := runForwarding(cmd, pr.env.Reporter.Log); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ProcessFailure{Processor: p.Jar, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run processor %s: %w", p.Jar, err)
	}
	return nil
}
