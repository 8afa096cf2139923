package version

import (
	"regexp"
	"runtime"
	"strings"
)

// Environment is the platform and feature set rules are evaluated against
type Environment struct {
	// OS uses the upstream names: windows, osx, linux
	OS       string
	Arch     string
	Version  string
	Features map[string]bool
}

// CurrentEnvironment describes the running platform
func CurrentEnvironment() Environment {
	return Environment{
		OS:   PlatformName(runtime.GOOS),
		Arch: runtime.GOARCH,
	}
}

// PlatformName maps a GOOS value to the name used in rules
func PlatformName(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// Bits is "64" or "32", the value substituted for ${arch}
func (e Environment) Bits() string {
	switch e.Arch {
	case "386", "arm", "x86":
		return "32"
	default:
		return "64"
	}
}

func (e Environment) expandArch(s string) string {
	return strings.ReplaceAll(s, "${arch}", e.Bits())
}

// WithFeature returns a copy with a feature flag set
func (e Environment) WithFeature(name string, on bool) Environment {
	features := make(map[string]bool, len(e.Features)+1)
	for k, v := range e.Features {
		features[k] = v
	}
	features[name] = on
	e.Features = features
	return e
}

// Rule is one allow/disallow entry
type Rule struct {
	Action   string          `json:"action"`
	OS       *OSRule         `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// OSRule restricts a rule to a platform
type OSRule struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
}

// Rules is an ordered rule list. The last matching rule wins.
type Rules []Rule

// Allows reports whether the guarded entry is active in env.
// An empty list allows everything, otherwise the default is disallowed.
func (r Rules) Allows(env Environment) bool {
	if len(r) == 0 {
		return true
	}

	allowed := false
	for _, rule := range r {
		if rule.matches(env) {
			allowed = rule.Action == "allow"
		}
	}
	return allowed
}

func (r Rule) matches(env Environment) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != env.OS {
			return false
		}
		if r.OS.Arch != "" && !archMatches(r.OS.Arch, env) {
			return false
		}
		if r.OS.Version != "" && env.Version != "" {
			re, err := regexp.Compile(r.OS.Version)
			if err == nil && !re.MatchString(env.Version) {
				return false
			}
		}
	}

	for name, want := range r.Features {
		if env.Features[name] != want {
			return false
		}
	}
	return true
}

func archMatches(arch string, env Environment) bool {
	switch arch {
	case "x86":
		return env.Bits() == "32"
	case "x86_64", "amd64":
		return env.Arch == "amd64"
	default:
		return arch == env.Arch
	}
}
