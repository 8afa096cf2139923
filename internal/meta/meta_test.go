package meta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

const testManifest = `{"versions": [
	{"id": "21w03a", "type": "snapshot", "url": "%s/v/21w03a.json"},
	{"id": "1.16.5", "type": "release", "url": "%s/v/1.16.5.json"},
	{"id": "1.16.5-rc1", "type": "snapshot", "url": "%s/v/1.16.5-rc1.json"},
	{"id": "20w51a", "type": "snapshot", "url": "%s/v/20w51a.json"},
	{"id": "1.16.4", "type": "release", "url": "%s/v/1.16.4.json"},
	{"id": "b1.7.3", "type": "old_beta", "url": "%s/v/b1.7.3.json"}
]}`

const testForgeCatalog = `[
	{"gameVersion": "1.16.5", "name": "36.0.0", "versionJson": "{}"},
	{"gameVersion": "1.16.5", "name": "36.1.0", "versionJson": "{}"},
	{"gameVersion": "1.15.2", "name": "31.2.0", "versionJson": "{}"}
]`

const testYarnMetadata = `<metadata><versioning><versions>
	<version>1.16.5+build.61</version><version>21w03a+build.2</version>
</versions></versioning></metadata>`

const testLoaderMetadata = `<metadata><versioning><versions>
	<version>0.11.3</version>
</versions></versioning></metadata>`

type upstream struct {
	srv   *httptest.Server
	calls map[string]*atomic.Int32
}

func newUpstream(t *testing.T, routes map[string]string) *upstream {
	t.Helper()

	u := &upstream{calls: map[string]*atomic.Int32{}}
	for path := range routes {
		u.calls[path] = &atomic.Int32{}
	}

	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		u.calls[r.URL.Path].Add(1)
		if body == "manifest" {
			body = expandManifest(u.srv.URL)
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func expandManifest(base string) string {
	args := make([]any, 6)
	for i := range args {
		args[i] = base
	}
	return fmt.Sprintf(testManifest, args...)
}

func newTestResolver(u *upstream, opts Options) *Resolver {
	opts.Endpoints = Endpoints{
		VersionManifest: u.srv.URL + "/manifest.json",
		ForgeCatalog:    u.srv.URL + "/forge.json",
		FabricLoader:    u.srv.URL + "/loader/maven-metadata.xml",
		FabricMappings:  u.srv.URL + "/yarn/maven-metadata.xml",
		FabricMaven:     u.srv.URL + "/maven/",
	}
	opts.HTTPClient = u.srv.Client()
	opts.Logger = log.New(io.Discard)
	return New(opts)
}

func TestFabricify(t *testing.T) {
	tests := []struct {
		in          string
		gameVersion string
		buildID     string
	}{
		{"1.16.5+build.61", "1.16.5", "61"},
		{"1.16.5-1.7.0", "1.16.5", "0"},
		{"20w51a+build.1", "20w51a", "1"},
		{"0.11.3", "0.11", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Fabricify(tt.in)
			if got.GameVersion != tt.gameVersion || got.BuildID != tt.buildID {
				t.Fatalf("Fabricify(%q) = {%q, %q}, want {%q, %q}",
					tt.in, got.GameVersion, got.BuildID, tt.gameVersion, tt.buildID)
			}
			if got.Version != tt.in {
				t.Fatalf("version not preserved: %q", got.Version)
			}
		})
	}
}

func TestIsModernForge(t *testing.T) {
	tests := map[string]bool{
		"1.16.5": true,
		"1.14":   true,
		"1.14.4": true,
		"1.13.2": false,
		"1.7.10": false,
		"20w51a": false,
		"1.20.1": true,
		"1.12.2": false,
	}
	for in, want := range tests {
		if got := IsModernForge(in); got != want {
			t.Errorf("IsModernForge(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestVanillaGroupsSnapshotsUnderReleases(t *testing.T) {
	u := newUpstream(t, map[string]string{"/manifest.json": "manifest"})
	r := newTestResolver(u, Options{})

	c, err := r.Vanilla(context.Background())
	if err != nil {
		t.Fatalf("Vanilla() returned error: %v", err)
	}

	if len(c.Releases) != 2 || c.Releases[0].ID != "1.16.5" || c.Releases[1].ID != "1.16.4" {
		t.Fatalf("unexpected releases: %+v", c.Releases)
	}
	if len(c.Releases[0].Snapshots) != 1 || c.Releases[0].Snapshots[0].ID != "21w03a" {
		t.Fatalf("unexpected 1.16.5 snapshots: %+v", c.Releases[0].Snapshots)
	}
	if len(c.Releases[1].Snapshots) != 2 {
		t.Fatalf("unexpected 1.16.4 snapshots: %+v", c.Releases[1].Snapshots)
	}
	if len(c.Old) != 1 || c.Old[0].ID != "b1.7.3" {
		t.Fatalf("unexpected old versions: %+v", c.Old)
	}

	if v, ok := c.FindGameVersion("20w51a"); !ok || v.Type != "snapshot" {
		t.Fatalf("FindGameVersion(20w51a) = %v, %v", v, ok)
	}
	if _, ok := c.FindGameVersion("1.99"); ok {
		t.Fatal("FindGameVersion should report absence")
	}
}

func TestConcurrentFirstUseFetchesOnce(t *testing.T) {
	u := newUpstream(t, map[string]string{"/manifest.json": "manifest"})
	r := newTestResolver(u, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Vanilla(context.Background()); err != nil {
				t.Errorf("Vanilla() returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := u.calls["/manifest.json"].Load(); got != 1 {
		t.Fatalf("expected 1 manifest fetch, got %d", got)
	}
}

func TestTTLPolicyRefetches(t *testing.T) {
	u := newUpstream(t, map[string]string{"/manifest.json": "manifest"})

	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newTestResolver(u, Options{
		Policy: TTL(time.Hour),
		Clock:  func() time.Time { return now },
	})

	ctx := context.Background()
	_, _ = r.Vanilla(ctx)
	now = now.Add(30 * time.Minute)
	_, _ = r.Vanilla(ctx)
	if got := u.calls["/manifest.json"].Load(); got != 1 {
		t.Fatalf("expected cached catalog, got %d fetches", got)
	}

	now = now.Add(time.Hour)
	_, _ = r.Vanilla(ctx)
	if got := u.calls["/manifest.json"].Load(); got != 2 {
		t.Fatalf("expected refetch after TTL, got %d fetches", got)
	}
}

func TestVersionDescriptorUnknown(t *testing.T) {
	u := newUpstream(t, map[string]string{
		"/manifest.json": "manifest",
		"/v/1.16.5.json": `{"id": "1.16.5"}`,
	})
	r := newTestResolver(u, Options{})

	body, err := r.VersionDescriptor(context.Background(), "1.16.5")
	if err != nil || string(body) != `{"id": "1.16.5"}` {
		t.Fatalf("VersionDescriptor() = %q, %v", body, err)
	}

	if _, err := r.VersionDescriptor(context.Background(), "9.9.9"); !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestCatalogAttachesLoaders(t *testing.T) {
	u := newUpstream(t, map[string]string{
		"/manifest.json":             "manifest",
		"/forge.json":                testForgeCatalog,
		"/yarn/maven-metadata.xml":   testYarnMetadata,
		"/loader/maven-metadata.xml": testLoaderMetadata,
	})
	r := newTestResolver(u, Options{})

	c, err := r.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog() returned error: %v", err)
	}

	release, _ := c.FindGameVersion("1.16.5")
	if len(release.Forge) != 2 || release.Forge[0].Name != "36.1.0" {
		t.Fatalf("unexpected forge builds: %+v", release.Forge)
	}
	if len(release.Fabric) != 1 || release.Fabric[0].URL != u.srv.URL+"/maven/net/fabricmc/yarn/1.16.5+build.61/yarn-1.16.5+build.61.jar" {
		t.Fatalf("unexpected fabric builds: %+v", release.Fabric)
	}
	snapshot, _ := c.FindGameVersion("21w03a")
	if len(snapshot.Fabric) != 1 {
		t.Fatalf("snapshot mappings not attached: %+v", snapshot.Fabric)
	}
	if len(c.Loaders) != 1 || c.Loaders[0].Version != "0.11.3" {
		t.Fatalf("unexpected loaders: %+v", c.Loaders)
	}

	entry, err := r.Forge(context.Background(), "36.1.0")
	if err != nil || entry.GameVersion != "1.16.5" || !entry.Modern() {
		t.Fatalf("Forge() = %+v, %v", entry, err)
	}
	if got := u.calls["/forge.json"].Load(); got != 1 {
		t.Fatalf("expected forge catalog to be fetched once, got %d", got)
	}
}

func TestFabricLaunchMeta(t *testing.T) {
	tests := []struct {
		name string
		body string
		main string
		libs int
		tw   int
	}{
		{
			name: "object main class",
			body: `{"mainClass": {"client": "net.fabricmc.loader.launch.knot.KnotClient", "server": "x"},
				"libraries": {"common": [{"name": "net.fabricmc:tiny-mappings-parser:0.2.2.14", "url": "https://maven.fabricmc.net/"}],
				"client": [], "server": [{"name": "server:only:1"}]}}`,
			main: "net.fabricmc.loader.launch.knot.KnotClient",
			libs: 1,
		},
		{
			name: "string main class with tweakers",
			body: `{"mainClass": "net.minecraft.launchwrapper.Launch",
				"libraries": {"common": [{"name": "a:b:1"}], "client": [{"name": "c:d:2"}]},
				"launchwrapper": {"tweakers": {"client": ["net.fabricmc.loader.launch.FabricClientTweaker"]}}}`,
			main: "net.minecraft.launchwrapper.Launch",
			libs: 2,
			tw:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, map[string]string{
				"/maven/net/fabricmc/fabric-loader/0.11.3/fabric-loader-0.11.3.json": tt.body,
			})
			r := newTestResolver(u, Options{})

			lm, err := r.FabricLaunchMeta(context.Background(), "0.11.3")
			if err != nil {
				t.Fatalf("FabricLaunchMeta() returned error: %v", err)
			}
			if lm.MainClass != tt.main {
				t.Fatalf("unexpected main class %q", lm.MainClass)
			}
			if len(lm.Libraries) != tt.libs || len(lm.Tweakers) != tt.tw {
				t.Fatalf("unexpected meta: %+v", lm)
			}
		})
	}
}
