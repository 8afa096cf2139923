package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/craftctl/internal/checksum"
	"github.com/bnema/craftctl/internal/download"
	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/meta"
	"github.com/bnema/craftctl/internal/profile"
	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/version"
)

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

const testIndex = `{"objects":{"icons/icon_16x16.png":{"hash":"%s","size":5}}}`

const testVersion = `{
	"id": "%[2]s",
	"type": "release",
	"mainClass": "net.minecraft.client.main.Main",
	"assetIndex": {"id": "1.16", "url": "%[1]s/index.json", "sha1": "%[3]s"},
	"downloads": {"client": {"url": "%[1]s/client.jar", "sha1": "%[4]s"}},
	"logging": {"client": {
		"argument": "-Dlog4j.configurationFile=${path}",
		"file": {"id": "client-1.12.xml", "url": "%[1]s/log.xml", "sha1": "%[5]s"},
		"type": "log4j2-xml"
	}},
	"libraries": [
		{"name": "com.example:here:1.0", "rules": [{"action": "allow", "os": {"name": "%[6]s"}}],
		 "downloads": {"artifact": {"path": "com/example/here/1.0/here-1.0.jar", "url": "%[1]s/lib.jar", "sha1": "%[7]s"}}},
		{"name": "com.example:elsewhere:1.0", "rules": [{"action": "allow", "os": {"name": "%[8]s"}}],
		 "downloads": {"artifact": {"path": "com/example/elsewhere/1.0/elsewhere-1.0.jar", "url": "%[1]s/missing.jar"}}}
	]
}`

const testModernForge = `{
	"_comment_": ["generated by the forge installer"],
	"id": "1.16.5-forge-36.1.0",
	"inheritsFrom": "1.16.5",
	"mainClass": "cpw.mods.modlauncher.Launcher",
	"logging": {},
	"libraries": [
		{"name": "net.minecraftforge:forge:1.16.5-36.1.0",
		 "downloads": {"artifact": {"path": "net/minecraftforge/forge/1.16.5-36.1.0/forge-1.16.5-36.1.0.jar", "url": ""}}}
	]
}`

const testInstallProfile = `{
	"data": {},
	"processors": [],
	"libraries": [
		{"name": "net.minecraftforge:forge:1.16.5-36.1.0",
		 "downloads": {"artifact": {"path": "net/minecraftforge/forge/1.16.5-36.1.0/forge-1.16.5-36.1.0.jar", "url": ""}}},
		{"name": "net.minecraftforge:installertools:1.1.11",
		 "downloads": {"artifact": {"path": "net/minecraftforge/installertools/1.1.11/installertools-1.1.11.jar", "url": "https://maven.example/installertools.jar"}}}
	]
}`

const testLegacyForge = `{
	"id": "1.12.2-forge-14.23.5.2860",
	"libraries": [{"name": "net.minecraft:launchwrapper:1.12"}]
}`

const testFabricMeta = `{
	"mainClass": {"client": "net.fabricmc.loader.launch.knot.KnotClient", "server": "x"},
	"libraries": {"common": [{"name": "org.ow2.asm:asm:9.1", "url": "https://maven.fabricmc.net/"}], "client": []}
}`

type upstream struct {
	srv     *httptest.Server
	mu      sync.Mutex
	hits    map[string]int
	modpack []byte

	// failClient is the number of client jar requests answered with 500
	failClient int
}

func otherPlatform() string {
	if version.PlatformName(runtime.GOOS) == "linux" {
		return "osx"
	}
	return "linux"
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	u := &upstream{hits: map[string]int{}}
	assetHash := sha1Hex("asset")
	index := fmt.Sprintf(testIndex, assetHash)

	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		u.mu.Lock()
		u.hits[p]++
		fail := p == "/client.jar" && u.failClient > 0
		if fail {
			u.failClient--
		}
		u.mu.Unlock()

		if fail {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}

		base := u.srv.URL
		switch {
		case p == "/manifest.json":
			_, _ = fmt.Fprintf(w, `{"versions": [
				{"id": "1.16.5", "type": "release", "url": "%[1]s/v/1.16.5.json"},
				{"id": "1.12.2", "type": "release", "url": "%[1]s/v/1.12.2.json"}
			]}`, base)
		case strings.HasPrefix(p, "/v/"):
			id := strings.TrimSuffix(path.Base(p), ".json")
			_, _ = fmt.Fprintf(w, testVersion, base, id, sha1Hex(index), sha1Hex("client"), sha1Hex("log"),
				version.PlatformName(runtime.GOOS), sha1Hex("library"), otherPlatform())
		case p == "/index.json":
			_, _ = io.WriteString(w, index)
		case p == "/assets/"+assetHash[:2]+"/"+assetHash:
			_, _ = io.WriteString(w, "asset")
		case p == "/client.jar":
			_, _ = io.WriteString(w, "client")
		case p == "/lib.jar":
			_, _ = io.WriteString(w, "library")
		case p == "/log.xml":
			_, _ = io.WriteString(w, "log")
		case p == "/forge.json":
			_, _ = w.Write(forgeCatalog(t, base))
		case p == "/maven/net/fabricmc/fabric-loader/0.11.3/fabric-loader-0.11.3.json":
			_, _ = io.WriteString(w, testFabricMeta)
		case p == "/pack.zip" && u.modpack != nil:
			_, _ = w.Write(u.modpack)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) count(p string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[p]
}

func (u *upstream) total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.hits {
		n += c
	}
	return n
}

func forgeCatalog(t *testing.T, base string) []byte {
	entries := []meta.ForgeEntry{
		{GameVersion: "1.16.5", Name: "36.1.0", VersionJSON: testModernForge, InstallProfileJSON: testInstallProfile, InstallerURL: base + "/installer.jar"},
		{GameVersion: "1.12.2", Name: "14.23.5.2860", VersionJSON: testLegacyForge},
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Error(err)
	}
	return data
}

// recordingRunner accepts every job without running it
type recordingRunner struct {
	mu   sync.Mutex
	jobs []task.Payload
}

func (r *recordingRunner) Run(ctx context.Context, input []byte, emit func(task.Message)) error {
	p, err := jobs.Decode(input)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.jobs = append(r.jobs, p)
	r.mu.Unlock()

	// Slow enough for concurrent callers to overlap
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (r *recordingRunner) ofKind(kind string) []task.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []task.Payload
	for _, p := range r.jobs {
		if p.Kind() == kind {
			out = append(out, p)
		}
	}
	return out
}

// failOnceRunner records every job and fails the first one of kind
type failOnceRunner struct {
	recordingRunner
	kind   string
	failed atomic.Bool
}

func (r *failOnceRunner) Run(ctx context.Context, input []byte, emit func(task.Message)) error {
	if err := r.recordingRunner.Run(ctx, input, emit); err != nil {
		return err
	}
	p, err := jobs.Decode(input)
	if err != nil {
		return err
	}
	if p.Kind() == r.kind && r.failed.CompareAndSwap(false, true) {
		return &jobs.ProcessFailure{Processor: "net.minecraftforge:binarypatcher:1.0.12", Code: 1}
	}
	return nil
}

func newTestInstaller(t *testing.T, u *upstream, runner task.Runner) (*Installer, *task.Supervisor) {
	t.Helper()

	logger := log.New(io.Discard)
	if runner == nil {
		runner = &jobs.LocalRunner{Log: logger, HTTPClient: u.srv.Client()}
	}
	sup := task.NewSupervisor(context.Background(), runner, logger)

	resolver := meta.New(meta.Options{
		Endpoints: meta.Endpoints{
			VersionManifest: u.srv.URL + "/manifest.json",
			ForgeCatalog:    u.srv.URL + "/forge.json",
			FabricMaven:     u.srv.URL + "/maven/",
		},
		HTTPClient: u.srv.Client(),
		Logger:     logger,
	})

	in := New(Options{
		Layout:     layout.New(t.TempDir()),
		Resolver:   resolver,
		Supervisor: sup,
		Logger:     logger,
		HTTPClient: u.srv.Client(),
		Config: Config{
			AssetsURL:  u.srv.URL + "/assets/",
			ForgeMaven: u.srv.URL + "/forge-maven/",
			CurseAPI:   u.srv.URL + "/curse",
		},
	})
	return in, sup
}

type eventLog struct {
	mu     sync.Mutex
	events []task.Event
}

func collect(t *testing.T, sup *task.Supervisor) *eventLog {
	ch, stop := sup.Subscribe()
	el := &eventLog{}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev := <-ch:
				el.mu.Lock()
				el.events = append(el.events, ev)
				el.mu.Unlock()
			case <-done:
				return
			}
		}
	}()
	t.Cleanup(func() {
		stop()
		close(done)
	})
	return el
}

// terminal waits for the terminal event of the task called name
func (el *eventLog) terminal(t *testing.T, name string) task.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		el.mu.Lock()
		for _, ev := range el.events {
			if ev.Name == name && ev.State != task.Running {
				el.mu.Unlock()
				return ev
			}
		}
		el.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no terminal event for %s", name)
	return task.Event{}
}

func TestInstallVanillaReplacesStaleLibrary(t *testing.T) {
	u := newUpstream(t)
	in, sup := newTestInstaller(t, u, nil)
	events := collect(t, sup)
	l := in.Layout()

	stub := l.Library("com/example/here/1.0/here-1.0.jar")
	if err := os.MkdirAll(filepath.Dir(stub), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stub, []byte("stale stub"), 0644); err != nil {
		t.Fatal(err)
	}

	id, err := in.InstallVanilla(context.Background(), "1.16.5", false)
	if err != nil {
		t.Fatalf("InstallVanilla() returned error: %v", err)
	}
	if id != "1.16.5" {
		t.Fatalf("id = %q", id)
	}

	if !checksum.IsValid(stub, sha1Hex("library")) {
		t.Fatal("stale library was not replaced")
	}
	if u.count("/missing.jar") != 0 {
		t.Fatal("library for another platform was downloaded")
	}

	for _, p := range []string{l.VersionJSON(id), l.VersionJar(id), l.AssetIndex("1.16"), l.AssetObject(sha1Hex("asset")), l.LogConfig("client-1.12.xml")} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}

	ev := events.terminal(t, VanillaTaskName("1.16.5"))
	if ev.State != task.Completed || ev.Status.Fraction != 1.0 {
		t.Fatalf("unexpected terminal event %+v", ev)
	}
}

func TestInstallVanillaIsIdempotent(t *testing.T) {
	u := newUpstream(t)
	in, _ := newTestInstaller(t, u, nil)

	if _, err := in.InstallVanilla(context.Background(), "1.16.5", false); err != nil {
		t.Fatalf("first InstallVanilla() returned error: %v", err)
	}
	first := u.total()

	if _, err := in.InstallVanilla(context.Background(), "1.16.5", false); err != nil {
		t.Fatalf("second InstallVanilla() returned error: %v", err)
	}
	if u.total() != first {
		t.Fatalf("second install did network I/O: %d requests after %d", u.total(), first)
	}

	if _, err := in.InstallVanilla(context.Background(), "1.16.5", true); err != nil {
		t.Fatalf("forced InstallVanilla() returned error: %v", err)
	}
	if u.count("/v/1.16.5.json") != 2 {
		t.Fatalf("forced install should fetch the descriptor again, got %d", u.count("/v/1.16.5.json"))
	}
	if u.count("/client.jar") != 1 {
		t.Fatal("valid client jar was downloaded again")
	}
}

func TestInstallVanillaResumesAfterFailedDownload(t *testing.T) {
	u := newUpstream(t)
	u.failClient = 1
	in, _ := newTestInstaller(t, u, nil)
	l := in.Layout()

	_, err := in.InstallVanilla(context.Background(), "1.16.5", false)
	var status *download.StatusError
	if !errors.As(err, &status) || status.Code != http.StatusInternalServerError {
		t.Fatalf("first InstallVanilla() error = %v, want a 500 status error", err)
	}
	if dirExists(l.VersionDir("1.16.5")) {
		t.Fatal("failed install left a version directory")
	}

	id, err := in.InstallVanilla(context.Background(), "1.16.5", false)
	if err != nil {
		t.Fatalf("second InstallVanilla() returned error: %v", err)
	}
	if u.count("/client.jar") != 2 {
		t.Fatalf("client jar requests = %d, want 2", u.count("/client.jar"))
	}
	if !checksum.IsValid(l.VersionJar(id), sha1Hex("client")) {
		t.Fatal("client jar missing after retry")
	}
	assertTempEmpty(t, l)
}

func TestInstallVanillaUnknownVersion(t *testing.T) {
	u := newUpstream(t)
	in, _ := newTestInstaller(t, u, nil)

	_, err := in.InstallVanilla(context.Background(), "9.9", false)
	var failure *Failure
	if !errors.As(err, &failure) || failure.Kind != KindMissingUpstreamData {
		t.Fatalf("expected a MissingUpstreamData failure, got %v", err)
	}
	if dirExists(in.Layout().VersionDir("9.9")) {
		t.Fatal("failed install left a version directory")
	}

	data, err := json.Marshal(failure)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"error":"MissingUpstreamData"`) || !strings.Contains(string(data), `"errorMessage":`) {
		t.Fatalf("unexpected failure encoding %s", data)
	}
}

func TestInstallForgeDeduplicatesConcurrentRequests(t *testing.T) {
	u := newUpstream(t)
	runner := &recordingRunner{}
	in, _ := newTestInstaller(t, u, runner)

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = in.InstallForge(context.Background(), "36.1.0", false)
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil || ids[i] != "1.16.5-36.1.0" {
			t.Fatalf("caller %d: id = %q, err = %v", i, ids[i], errs[i])
		}
	}
	if n := len(runner.ofKind(jobs.KindForgeProcessors)); n != 1 {
		t.Fatalf("expected one processors run, got %d", n)
	}
	if u.count("/forge.json") != 1 {
		t.Fatalf("expected one forge catalog fetch, got %d", u.count("/forge.json"))
	}

	proc := runner.ofKind(jobs.KindForgeProcessors)[0].(jobs.ForgeProcessorsJob)
	if proc.InstallerURL != u.srv.URL+"/installer.jar" || proc.GameVersion != "1.16.5" {
		t.Fatalf("unexpected processors job %+v", proc)
	}

	// Vanilla libraries first, then the merged forge libraries
	libs := runner.ofKind(jobs.KindLibraries)
	if len(libs) != 2 {
		t.Fatalf("expected 2 library jobs, got %d", len(libs))
	}
	forgeLibs := libs[1].(jobs.LibrariesJob)
	if forgeLibs.Mode != jobs.Type1 || len(forgeLibs.Libraries) != 2 {
		t.Fatalf("unexpected forge library job %+v", forgeLibs)
	}

	data, err := os.ReadFile(in.Layout().VersionJSON("1.16.5-36.1.0"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte("_comment_")) || bytes.Contains(data, []byte(`"logging"`)) {
		t.Fatalf("forge version JSON was not cleaned: %s", data)
	}
}

func TestInstallForgeRetriesAfterProcessorFailure(t *testing.T) {
	u := newUpstream(t)
	runner := &failOnceRunner{kind: jobs.KindForgeProcessors}
	in, _ := newTestInstaller(t, u, runner)
	l := in.Layout()

	_, err := in.InstallForge(context.Background(), "36.1.0", false)
	var failure *jobs.ProcessFailure
	if !errors.As(err, &failure) {
		t.Fatalf("first InstallForge() error = %v, want a ProcessFailure", err)
	}
	if dirExists(l.VersionDir("1.16.5-36.1.0")) {
		t.Fatal("failed forge install left a version directory")
	}
	if !dirExists(l.VersionDir("1.16.5")) {
		t.Fatal("vanilla parent should stay installed")
	}

	id, err := in.InstallForge(context.Background(), "36.1.0", false)
	if err != nil {
		t.Fatalf("second InstallForge() returned error: %v", err)
	}
	if n := len(runner.ofKind(jobs.KindForgeProcessors)); n != 2 {
		t.Fatalf("processors ran %d times, want 2", n)
	}
	if _, err := version.Read(l.VersionJSON(id)); err != nil {
		t.Fatalf("forge version not installed: %v", err)
	}
	assertTempEmpty(t, l)
}

func TestInstallRejectsPathNames(t *testing.T) {
	u := newUpstream(t)
	u.modpack = buildModpack(t, "forge-36.1.0")
	in, _ := newTestInstaller(t, u, &recordingRunner{})
	l := in.Layout()

	if _, err := in.InstallVanilla(context.Background(), "1.16.5", false); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"..", "", ".", "a/b"} {
		if _, err := in.InstallCurseModpack(context.Background(), name, u.srv.URL+"/pack.zip"); !errors.Is(err, layout.ErrInvalidName) {
			t.Errorf("InstallCurseModpack(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := in.InstallVanilla(context.Background(), name, false); !errors.Is(err, layout.ErrInvalidName) {
			t.Errorf("InstallVanilla(%q) error = %v, want ErrInvalidName", name, err)
		}
	}

	if u.count("/pack.zip") != 0 {
		t.Fatal("modpack was downloaded for an invalid name")
	}
	if _, err := os.Stat(l.VersionJSON("1.16.5")); err != nil {
		t.Fatalf("store was modified: %v", err)
	}
}

func TestInstallProfileSyncsSources(t *testing.T) {
	u := newUpstream(t)
	runner := &recordingRunner{}
	in, _ := newTestInstaller(t, u, runner)

	dir := t.TempDir()
	p := &profile.File{
		Kind:   profile.Vanilla,
		GameID: "1.16.5",
		Dir:    dir,
		Packs:  []profile.Source{{URL: "https://git.example/faithful.git", Dir: "resourcepacks/faithful"}},
	}

	id, err := in.InstallProfile(context.Background(), p)
	if err != nil || id != "1.16.5" {
		t.Fatalf("InstallProfile() = %q, %v", id, err)
	}

	mods := runner.ofKind(jobs.KindMods)
	if len(mods) != 1 {
		t.Fatalf("expected one mods job, got %d", len(mods))
	}
	job := mods[0].(jobs.ModsJob)
	want := jobs.GitSource{URL: "https://git.example/faithful.git", Dir: "resourcepacks/faithful"}
	if job.InstanceDir != dir || len(job.Sources) != 1 || job.Sources[0] != want || len(job.Files) != 0 {
		t.Fatalf("unexpected mods job %+v", job)
	}

	p.Packs = nil
	if _, err := in.InstallProfile(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if len(runner.ofKind(jobs.KindMods)) != 1 {
		t.Fatal("a profile without sources must not start a mods job")
	}
}

func TestInstallLegacyForge(t *testing.T) {
	u := newUpstream(t)
	runner := &recordingRunner{}
	in, _ := newTestInstaller(t, u, runner)

	id, err := in.InstallForge(context.Background(), "14.23.5.2860", false)
	if err != nil {
		t.Fatalf("InstallForge() returned error: %v", err)
	}
	if id != "14.23.5.2860" {
		t.Fatalf("legacy forge id = %q", id)
	}
	if len(runner.ofKind(jobs.KindForgeProcessors)) != 0 {
		t.Fatal("legacy forge must not run processors")
	}

	libs := runner.ofKind(jobs.KindLibraries)
	if last := libs[len(libs)-1].(jobs.LibrariesJob); last.Mode != jobs.Type2 {
		t.Fatalf("legacy forge libraries mode = %q", last.Mode)
	}

	d, err := version.Read(in.Layout().VersionJSON(id))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != id || d.Jar != "1.12.2" || d.InheritsFrom != "1.12.2" {
		t.Fatalf("unexpected legacy descriptor %+v", d)
	}
}

func TestInstallFabricSynthesizesDescriptor(t *testing.T) {
	u := newUpstream(t)
	runner := &recordingRunner{}
	in, _ := newTestInstaller(t, u, runner)
	l := in.Layout()

	id, err := in.InstallFabric(context.Background(), "1.16.5+build.61", "0.11.3", false)
	if err != nil {
		t.Fatalf("InstallFabric() returned error: %v", err)
	}
	if id != "fabric-loader-0.11.3-1.16.5" {
		t.Fatalf("id = %q", id)
	}

	info, err := os.Stat(l.VersionJar(id))
	if err != nil || info.Size() != 0 {
		t.Fatalf("expected an empty placeholder jar: %v", err)
	}

	d, err := version.Resolve(l, id)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if d.MainClass != "net.fabricmc.loader.launch.knot.KnotClient" {
		t.Fatalf("main class = %q", d.MainClass)
	}
	if d.AssetIndex == nil || d.AssetIndex.ID != "1.16" || d.Logging["client"] == nil {
		t.Fatal("asset index and logging should come from the parent")
	}

	names := make([]string, len(d.Libraries))
	for i, lib := range d.Libraries {
		names[i] = lib.Name
	}
	want := []string{"com.example:here:1.0", "com.example:elsewhere:1.0", "org.ow2.asm:asm:9.1", "net.fabricmc:fabric-loader:0.11.3", "net.fabricmc:yarn:1.16.5+build.61"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("classpath order = %v, want %v", names, want)
	}

	libs := runner.ofKind(jobs.KindLibraries)
	if last := libs[len(libs)-1].(jobs.LibrariesJob); last.Mode != jobs.Type2 || len(last.Libraries) != 3 {
		t.Fatalf("unexpected fabric library job %+v", last)
	}
}

func buildModpack(t *testing.T, loader string) []byte {
	t.Helper()

	manifest := fmt.Sprintf(`{
		"name": "Test Pack",
		"overrides": "overrides",
		"minecraft": {"version": "1.16.5", "modLoaders": [{"id": "%s", "primary": true}]},
		"files": [{"projectID": 238222, "fileID": 3232534, "required": true}]
	}`, loader)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"manifest.json":              manifest,
		"overrides/options.txt":      "renderDistance:8",
		"overrides/config/jei.toml":  "[advanced]",
		"overrides/config/mods.toml": "[mods]",
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestInstallCurseModpack(t *testing.T) {
	u := newUpstream(t)
	u.modpack = buildModpack(t, "forge-36.1.0")
	runner := &recordingRunner{}
	in, sup := newTestInstaller(t, u, runner)
	events := collect(t, sup)
	l := in.Layout()

	pack, err := in.InstallCurseModpack(context.Background(), "Test Pack", u.srv.URL+"/pack.zip")
	if err != nil {
		t.Fatalf("InstallCurseModpack() returned error: %v", err)
	}
	if pack.VersionID != "1.16.5-36.1.0" || pack.Version == nil || pack.Version.MainClass != "cpw.mods.modlauncher.Launcher" {
		t.Fatalf("unexpected modpack result %+v", pack)
	}

	instance := l.Instance("Test Pack")
	for _, name := range []string{"options.txt", "config/jei.toml", "config/mods.toml"} {
		if _, err := os.Stat(filepath.Join(instance, filepath.FromSlash(name))); err != nil {
			t.Errorf("override %s not copied: %v", name, err)
		}
	}

	mods := runner.ofKind(jobs.KindMods)
	if len(mods) != 1 {
		t.Fatalf("expected one mods job, got %d", len(mods))
	}
	if job := mods[0].(jobs.ModsJob); job.InstanceDir != instance || len(job.Files) != 1 || job.CurseAPI != u.srv.URL+"/curse" {
		t.Fatalf("unexpected mods job %+v", job)
	}

	assertTempEmpty(t, l)

	ev := events.terminal(t, ModpackTaskName("Test Pack"))
	if ev.State != task.Completed || ev.Status.Fraction != 1.0 {
		t.Fatalf("unexpected terminal event %+v", ev)
	}
}

func TestInstallCurseModpackWithoutForge(t *testing.T) {
	u := newUpstream(t)
	u.modpack = buildModpack(t, "fabric-0.11.3")
	runner := &recordingRunner{}
	in, _ := newTestInstaller(t, u, runner)

	_, err := in.InstallCurseModpack(context.Background(), "Fabric Pack", u.srv.URL+"/pack.zip")
	var failure *Failure
	if !errors.As(err, &failure) || failure.Kind != KindMissingUpstreamData {
		t.Fatalf("expected a MissingUpstreamData failure, got %v", err)
	}
	if len(runner.ofKind(jobs.KindMods)) != 0 {
		t.Fatal("mods must not be installed without a loader")
	}
	assertTempEmpty(t, in.Layout())
}

func assertTempEmpty(t *testing.T, l layout.Layout) {
	t.Helper()
	entries, err := os.ReadDir(l.TempDir())
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp directory not cleaned: %d entries", len(entries))
	}
}

func TestPrimaryForge(t *testing.T) {
	tests := []struct {
		loaders []ModLoader
		want    string
		ok      bool
	}{
		{[]ModLoader{{ID: "forge-36.1.0", Primary: true}}, "36.1.0", true},
		{[]ModLoader{{ID: "forge-36.0.0"}, {ID: "forge-36.1.0", Primary: true}}, "36.1.0", true},
		{[]ModLoader{{ID: "forge-36.1.0"}}, "", false},
		{[]ModLoader{{ID: "fabric-0.11.3", Primary: true}}, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		var m ModpackManifest
		m.Minecraft.ModLoaders = tt.loaders
		got, ok := m.PrimaryForge()
		if got != tt.want || ok != tt.ok {
			t.Errorf("PrimaryForge(%+v) = %q, %v", tt.loaders, got, ok)
		}
	}
}

func TestForgeNaming(t *testing.T) {
	modern := meta.ForgeEntry{GameVersion: "1.16.5", Name: "36.1.0"}
	legacy := meta.ForgeEntry{GameVersion: "1.12.2", Name: "14.23.5.2860"}

	if got := ForgeVersionID(modern); got != "1.16.5-36.1.0" {
		t.Errorf("modern id = %q", got)
	}
	if got := ForgeTaskName(modern); got != "Forge 1.16.5-36.1.0" {
		t.Errorf("modern task name = %q", got)
	}
	if got := ForgeVersionID(legacy); got != "14.23.5.2860" {
		t.Errorf("legacy id = %q", got)
	}
	if got := ForgeTaskName(legacy); got != "Forge 14.23.5.2860" {
		t.Errorf("legacy task name = %q", got)
	}
}
