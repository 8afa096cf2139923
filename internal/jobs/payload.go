package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bnema/craftctl/internal/task"
	"github.com/bnema/craftctl/internal/version"
)

const (
	KindAssets          = "assets"
	KindLibraries       = "libraries"
	KindForgeProcessors = "forge-processors"
	KindMods            = "mods"
)

// Library job modes
const (
	// Type1 is the vanilla shape: per library rules, downloads and native classifiers
	Type1 = "type1"
	// Type2 is the maven shape used by legacy forge and fabric
	Type2 = "type2"
)

var ErrInvalidPayload = errors.New("invalid job payload")

// AssetsJob downloads every object of an asset index
type AssetsJob struct {
	Root     string `json:"root"`
	IndexID  string `json:"indexId"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Parallel bool   `json:"parallel,omitempty"`
}

func (AssetsJob) Kind() string { return KindAssets }

// LibrariesJob downloads libraries in one of the two modes
type LibrariesJob struct {
	Root       string            `json:"root"`
	Mode       string            `json:"mode"`
	Libraries  []version.Library `json:"libraries"`
	ForgeMaven string            `json:"forgeMaven,omitempty"`
	Parallel   bool              `json:"parallel,omitempty"`
}

func (LibrariesJob) Kind() string { return KindLibraries }

// ForgeProcessorsJob runs the post processors of a modern forge installer
type ForgeProcessorsJob struct {
	Root           string          `json:"root"`
	VersionID      string          `json:"versionId"`
	GameVersion    string          `json:"gameVersion"`
	InstallerURL   string          `json:"installerUrl"`
	InstallProfile json.RawMessage `json:"installProfile"`
	Java           string          `json:"java"`
}

func (ForgeProcessorsJob) Kind() string { return KindForgeProcessors }

// ModFile references one file of a mod repository project
type ModFile struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required,omitempty"`
}

// GitSource is a resource or shader pack cloned from a git repository
type GitSource struct {
	URL string `json:"url"`
	Ref string `json:"ref,omitempty"`

	// Dir is relative to the instance directory
	Dir string `json:"dir"`
}

// Path returns the clone directory below instanceDir. Dir must name a
// subdirectory of it.
func (s GitSource) Path(instanceDir string) (string, error) {
	rel := filepath.FromSlash(s.Dir)
	if !filepath.IsLocal(rel) || filepath.Clean(rel) == "." {
		return "", fmt.Errorf("%w: source directory %q is outside the instance", ErrInvalidPayload, s.Dir)
	}
	return filepath.Join(instanceDir, rel), nil
}

// ModsJob downloads mod files into an instance
type ModsJob struct {
	InstanceDir string      `json:"instanceDir"`
	CurseAPI    string      `json:"curseApi,omitempty"`
	Files       []ModFile   `json:"files,omitempty"`
	Sources     []GitSource `json:"sources,omitempty"`
	Parallel    bool        `json:"parallel,omitempty"`
}

func (ModsJob) Kind() string { return KindMods }

// Decode parses an envelope into its typed payload. Unknown kinds and unknown
// fields are rejected.
func Decode(data []byte) (task.Payload, error) {
	var env task.Envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p task.Payload
	var err error
	switch env.Kind {
	case KindAssets:
		var v AssetsJob
		err = strictUnmarshal(env.Payload, &v)
		p = v
	case KindLibraries:
		var v LibrariesJob
		if err = strictUnmarshal(env.Payload, &v); err == nil && v.Mode != Type1 && v.Mode != Type2 {
			err = fmt.Errorf("unknown library mode %q", v.Mode)
		}
		p = v
	case KindForgeProcessors:
		var v ForgeProcessorsJob
		err = strictUnmarshal(env.Payload, &v)
		p = v
	case KindMods:
		var v ModsJob
		err = strictUnmarshal(env.Payload, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Kind, err)
	}
	return p, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
