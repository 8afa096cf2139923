package installer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/bnema/craftctl/internal/download"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/meta"
	"github.com/bnema/craftctl/internal/profile"
	"github.com/bnema/craftctl/internal/task"
)

// KindMissingUpstreamData is the Failure kind for absent versions and loaders
const KindMissingUpstreamData = "MissingUpstreamData"

// Failure is an installation error the UI renders as a message
type Failure struct {
	Kind    string `json:"error"`
	Message string `json:"errorMessage"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func missing(format string, args ...any) *Failure {
	return &Failure{Kind: KindMissingUpstreamData, Message: fmt.Sprintf(format, args...)}
}

// Config holds the installer settings that are not upstream catalogs
type Config struct {
	ForgeMaven string
	CurseAPI   string
	AssetsURL  string
	Java       string
	Parallel   bool
}

// Options wires an Installer
type Options struct {
	Layout     layout.Layout
	Resolver   *meta.Resolver
	Supervisor *task.Supervisor
	Logger     *log.Logger
	HTTPClient *http.Client
	Config     Config
}

// Installer installs versions into the artifact store. Every installation
// runs as a supervised task named after what it installs.
type Installer struct {
	layout   layout.Layout
	meta     *meta.Resolver
	tasks    *task.Supervisor
	download *download.Downloader
	log      *log.Logger
	cfg      Config
}

// New creates an installer
func New(opts Options) *Installer {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	var dlOpts []download.Option
	if opts.HTTPClient != nil {
		dlOpts = append(dlOpts, download.WithHTTPClient(opts.HTTPClient))
	}

	return &Installer{
		layout:   opts.Layout,
		meta:     opts.Resolver,
		tasks:    opts.Supervisor,
		download: download.New(opts.Logger, dlOpts...),
		log:      opts.Logger,
		cfg:      opts.Config,
	}
}

// Layout returns the artifact store the installer writes to
func (in *Installer) Layout() layout.Layout {
	return in.layout
}

// install attaches to a live task called name or starts body as that task.
// An attached caller returns once the task succeeds unless force is set.
// Without force an existing target directory means installed.
func (in *Installer) install(ctx context.Context, name, dir string, force bool, body func(ctx context.Context, t *task.Task) error) error {
	if t, ok := in.tasks.Find(name); ok {
		in.log.Debug("Waiting for running installation", "task", name)
		if err := t.Wait(ctx); err != nil {
			return err
		}
		if !force {
			return nil
		}
	}

	if !force && dirExists(dir) {
		// The directory may belong to a task started since the lookup above
		if t, ok := in.tasks.Find(name); ok {
			return t.Wait(ctx)
		}
		in.log.Debug("Already installed", "task", name, "path", dir)
		return nil
	}

	t, created := in.tasks.Do(name, body)
	if !created {
		in.log.Debug("Attached to running installation", "task", name)
	}
	return t.Wait(ctx)
}

// runJob runs payload for t and maps its progress into [from, to]
func (in *Installer) runJob(ctx context.Context, t *task.Task, payload task.Payload, from, to float64) error {
	return in.tasks.RunJob(ctx, t.ID, payload, task.Span{From: from, To: to})
}

// InstallProfile installs whatever p selects, syncs its git packs and
// returns the version id to launch
func (in *Installer) InstallProfile(ctx context.Context, p profile.Profile) (string, error) {
	var (
		id  string
		err error
	)
	switch p.Flavor() {
	case profile.Vanilla:
		id, err = in.InstallVanilla(ctx, p.Version(), false)
	case profile.Forge:
		id, err = in.InstallForge(ctx, p.Forge(), false)
	case profile.Fabric:
		mappings, loader := p.Fabric()
		id, err = in.InstallFabric(ctx, mappings, loader, false)
	default:
		return "", fmt.Errorf("%w: unknown flavor %q", profile.ErrInvalidProfile, p.Flavor())
	}
	if err != nil {
		return "", err
	}

	dir := p.Directory()
	if dir == "" {
		dir = in.layout.Instance(id)
	}
	if err := in.SyncSources(ctx, dir, p.Sources()); err != nil {
		return "", err
	}
	return id, nil
}

// publish moves the staged directory of id into versions/, replacing an
// earlier installation
func (in *Installer) publish(id string) error {
	stage := in.layout.Staging(id)
	dst := in.layout.VersionDir(id)

	if err := os.MkdirAll(in.layout.VersionsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create versions directory: %w", err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to replace version directory: %w", err)
	}
	if err := os.Rename(stage.VersionDir(id), dst); err != nil {
		return fmt.Errorf("failed to publish version directory: %w", err)
	}
	_ = os.RemoveAll(stage.Root)

	in.log.Debug("Version published", "version", id, "path", dst)
	return nil
}

// seed copies a file of an earlier installation into the staging tree so
// it is validated instead of downloaded again
func seed(published, staged string) {
	if fileExists(staged) || !fileExists(published) {
		return
	}
	_ = copyFile(published, staged)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// upstreamMissing converts an unknown version lookup into a Failure
func upstreamMissing(err error, what string) error {
	if errors.Is(err, meta.ErrUnknownVersion) {
		return missing("%s is not available upstream", what)
	}
	return err
}
