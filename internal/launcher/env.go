package launcher

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	gpuAMD     = "amd"
	gpuNVIDIA  = "nvidia"
	gpuIntel   = "intel"
	gpuUnknown = "unknown"
)

// gameEnv returns base extended with the variables the game process needs on
// this desktop. Variables already present in base are never overridden.
func gameEnv(logger *log.Logger, base []string, gpu string) []string {
	set := make(map[string]bool, len(base))
	for _, kv := range base {
		if k, _, ok := strings.Cut(kv, "="); ok {
			set[k] = true
		}
	}

	env := append([]string{}, base...)
	add := func(key, value string) {
		if set[key] {
			return
		}
		set[key] = true
		env = append(env, key+"="+value)
		logger.Debug("Game environment", key, value)
	}

	wayland := lookup(base, "WAYLAND_DISPLAY") != ""
	if wayland {
		// AWT draws blank windows under non-reparenting compositors
		add("_JAVA_AWT_WM_NONREPARENTING", "1")
	}

	switch gpu {
	case gpuAMD:
		add("mesa_glthread", "true")
	case gpuNVIDIA:
		add("__GL_THREADED_OPTIMIZATIONS", "1")
		if wayland {
			add("GBM_BACKEND", "nvidia-drm")
			add("__GLX_VENDOR_LIBRARY_NAME", "nvidia")
		}
	}
	return env
}

func lookup(env []string, key string) string {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// detectGPUVendor reads the vendor of the first DRM cards, then falls back
// to loaded kernel modules
func detectGPUVendor() string {
	for _, path := range []string{
		"/sys/class/drm/card0/device/vendor",
		"/sys/class/drm/card1/device/vendor",
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if vendor := vendorFromID(strings.TrimSpace(string(data))); vendor != gpuUnknown {
			return vendor
		}
	}

	modules, err := os.ReadFile("/proc/modules")
	if err != nil {
		return gpuUnknown
	}
	return vendorFromModules(string(modules))
}

func vendorFromID(id string) string {
	switch id {
	case "0x1002":
		return gpuAMD
	case "0x10de":
		return gpuNVIDIA
	case "0x8086":
		return gpuIntel
	}
	return gpuUnknown
}

func vendorFromModules(modules string) string {
	switch {
	case strings.Contains(modules, "amdgpu"), strings.Contains(modules, "radeon"):
		return gpuAMD
	case strings.Contains(modules, "nvidia"):
		return gpuNVIDIA
	case strings.Contains(modules, "i915"):
		return gpuIntel
	}
	return gpuUnknown
}
