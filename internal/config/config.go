package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bnema/craftctl/internal/curse"
	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/meta"
)

const appName = "craftctl"

// Environment variables that override the config file
const (
	EnvRoot              = "CRAFTCTL_ROOT"
	EnvJava              = "CRAFTCTL_JAVA"
	EnvParallelDownloads = "CRAFTCTL_PARALLEL_DOWNLOADS"
	EnvInProcessJobs     = "CRAFTCTL_IN_PROCESS_JOBS"
)

// Endpoints lists every upstream service
type Endpoints struct {
	meta.Endpoints `yaml:",inline"`

	ForgeMaven string `yaml:"forge_maven"`
	CurseAPI   string `yaml:"curse_api"`
	Assets     string `yaml:"assets"`
}

// Config is the effective craftctl configuration
type Config struct {
	// Root is the artifact store
	Root string `yaml:"root"`
	Java string `yaml:"java"`

	// Parallel fans downloads out inside a job
	Parallel bool `yaml:"parallel_downloads"`
	// InProcess runs jobs inside the craftctl process instead of worker processes
	InProcess bool `yaml:"in_process_jobs"`

	// CatalogTTL refreshes upstream catalogs older than this, zero keeps them for the process lifetime
	CatalogTTL Duration `yaml:"catalog_ttl"`

	Endpoints Endpoints `yaml:"endpoints"`
}

// Default returns the configuration used without a config file
func Default() *Config {
	return &Config{
		Root: filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), appName),
		Java: "java",
		Endpoints: Endpoints{
			Endpoints:  meta.DefaultEndpoints(),
			ForgeMaven: jobs.DefaultForgeMaven,
			CurseAPI:   curse.DefaultBaseURL,
			Assets:     jobs.DefaultAssetsURL,
		},
	}
}

// Path returns the location of the config file
func Path() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName, "config.yaml")
}

// Load reads the config file at Path, if any, and applies environment overrides
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config file at path on top of the defaults. A missing
// file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRoot); ok && v != "" {
		c.Root = v
	}
	if v, ok := lookup(EnvJava); ok && v != "" {
		c.Java = v
	}
	for key, dst := range map[string]*bool{
		EnvParallelDownloads: &c.Parallel,
		EnvInProcessJobs:     &c.InProcess,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Save writes the config to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move config: %w", err)
	}
	return nil
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(append([]string{home}, fallback...)...)
}
