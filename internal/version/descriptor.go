package version

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/maven"
)

var (
	ErrNotInstalled     = errors.New("version is not installed")
	ErrInheritanceCycle = errors.New("version inheritance cycle")
)

// Descriptor is a version JSON as stored under versions/<id>/<id>.json.
// Field names follow the upstream manifest so fetched files are stored verbatim.
type Descriptor struct {
	ID                 string             `json:"id"`
	InheritsFrom       string             `json:"inheritsFrom,omitempty"`
	Type               string             `json:"type,omitempty"`
	MainClass          string             `json:"mainClass,omitempty"`
	MinecraftArguments string             `json:"minecraftArguments,omitempty"`
	Arguments          *Arguments         `json:"arguments,omitempty"`
	Libraries          []Library          `json:"libraries,omitempty"`
	AssetIndex         *AssetIndexRef     `json:"assetIndex,omitempty"`
	Assets             string             `json:"assets,omitempty"`
	Downloads          map[string]*File   `json:"downloads,omitempty"`
	Logging            map[string]*Logger `json:"logging,omitempty"`

	// Jar names the version whose client jar is used. Empty means the own jar.
	Jar string `json:"jar,omitempty"`
}

// Arguments holds the modern templated argument lists
type Arguments struct {
	Game []Argument `json:"game,omitempty"`
	JVM  []Argument `json:"jvm,omitempty"`
}

// Argument is either a literal or a rule-guarded list of values
type Argument struct {
	Rules Rules
	Value []string
}

func (a *Argument) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.Value = []string{s}
		return nil
	}

	var raw struct {
		Rules Rules           `json:"rules"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid argument: %w", err)
	}
	a.Rules = raw.Rules

	value := bytes.TrimSpace(raw.Value)
	if len(value) > 0 && value[0] == '"' {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		a.Value = []string{s}
		return nil
	}
	return json.Unmarshal(value, &a.Value)
}

func (a Argument) MarshalJSON() ([]byte, error) {
	if len(a.Rules) == 0 && len(a.Value) == 1 {
		return json.Marshal(a.Value[0])
	}
	return json.Marshal(struct {
		Rules Rules    `json:"rules,omitempty"`
		Value []string `json:"value"`
	}{a.Rules, a.Value})
}

// Literal builds an unconditional argument
func Literal(s string) Argument {
	return Argument{Value: []string{s}}
}

// File is a downloadable artifact with a declared checksum
type File struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}

// AssetIndexRef points at the asset index of a version
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url"`
}

// Logger is the logging configuration of one side (client)
type Logger struct {
	Argument string `json:"argument"`
	File     struct {
		ID   string `json:"id"`
		SHA1 string `json:"sha1,omitempty"`
		Size int64  `json:"size,omitempty"`
		URL  string `json:"url"`
	} `json:"file"`
	Type string `json:"type,omitempty"`
}

// Library is one dependency entry. Vanilla entries carry Downloads,
// maven style entries only Name and an optional repository URL.
type Library struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Rules     Rules             `json:"rules,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Extract   *Extract          `json:"extract,omitempty"`
	ClientReq *bool             `json:"clientreq,omitempty"`
	Checksums []string          `json:"checksums,omitempty"`

	// Packed names the compression of the remote artifact (xz or lzma)
	Packed string `json:"packed,omitempty"`
}

// LibraryDownloads lists the primary artifact and native classifiers
type LibraryDownloads struct {
	Artifact    *File            `json:"artifact,omitempty"`
	Classifiers map[string]*File `json:"classifiers,omitempty"`
}

// Extract lists archive prefixes skipped while unpacking natives
type Extract struct {
	Exclude []string `json:"exclude,omitempty"`
}

// Path returns the library path relative to the libraries dir
func (l Library) Path() string {
	if l.Downloads != nil && l.Downloads.Artifact != nil && l.Downloads.Artifact.Path != "" {
		return l.Downloads.Artifact.Path
	}
	return maven.ResolveLibraryPath(l.Name)
}

// NativeClassifier returns the classifier key for env, with ${arch} substituted
func (l Library) NativeClassifier(env Environment) (string, bool) {
	if l.Natives == nil {
		return "", false
	}
	classifier, ok := l.Natives[env.OS]
	if !ok {
		return "", false
	}
	return env.expandArch(classifier), true
}

// Read loads a descriptor file
func Read(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to read version file: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse version file %s: %w", path, err)
	}
	return &d, nil
}

// Write stores d at its layout path, replacing any previous file
func Write(l layout.Layout, d *Descriptor) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version %s: %w", d.ID, err)
	}
	return WriteRaw(l, d.ID, data)
}

// WriteRaw stores an already encoded descriptor
func WriteRaw(l layout.Layout, id string, data []byte) error {
	path := l.VersionJSON(id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create version directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write version file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move version file: %w", err)
	}
	return nil
}
