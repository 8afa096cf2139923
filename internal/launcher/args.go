package launcher

import (
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/profile"
	"github.com/bnema/craftctl/internal/version"
)

var ErrUnresolvedToken = errors.New("unresolved token in launch arguments")

const (
	// LauncherName is reported to the game through ${launcher_name}
	LauncherName    = "craftctl"
	LauncherVersion = "1.0"

	featureCustomResolution = "has_custom_resolution"
)

var tokenPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Options carries everything besides the descriptor that ends up in the
// command line
type Options struct {
	Player      string
	UUID        string
	AccessToken string
	GameDir     string
	Memory      profile.Memory
	Resolution  *profile.Resolution
	JavaArgs    []string

	// Env defaults to the running platform
	Env *version.Environment
}

// OptionsFor derives launch options from a profile with an offline account
func OptionsFor(p profile.Profile, player string) Options {
	if player == "" {
		player = "Player"
	}
	return Options{
		Player:      player,
		UUID:        OfflineUUID(player),
		AccessToken: "0",
		GameDir:     p.Directory(),
		Memory:      p.Memory(),
		Resolution:  p.Resolution(),
		JavaArgs:    p.JavaArgs(),
	}
}

// OfflineUUID is the name based (version 3) id of an offline player, without dashes
func OfflineUUID(player string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + player))
	u, _ := uuid.FromBytes(sum[:])
	u[6] = (u[6] & 0x0f) | 0x30
	u[8] = (u[8] & 0x3f) | 0x80
	return strings.ReplaceAll(u.String(), "-", "")
}

// BuildArgs returns the java arguments that start d. d must be the merged
// descriptor of the whole inheritance chain.
func BuildArgs(l layout.Layout, d *version.Descriptor, opts Options) ([]string, error) {
	env := version.CurrentEnvironment()
	if opts.Env != nil {
		env = *opts.Env
	}
	if opts.Resolution != nil {
		env = env.WithFeature(featureCustomResolution, true)
	}

	vars := variables(l, d, opts, Classpath(l, d, env))

	var args []string
	if opts.Memory.Min > 0 {
		args = append(args, fmt.Sprintf("-Xms%dM", opts.Memory.Min))
	}
	if opts.Memory.Max > 0 {
		args = append(args, fmt.Sprintf("-Xmx%dM", opts.Memory.Max))
	}

	if d.Arguments != nil && len(d.Arguments.JVM) > 0 {
		args = append(args, evaluate(d.Arguments.JVM, env)...)
	} else {
		args = append(args,
			"-Djava.library.path=${natives_directory}",
			"-Dminecraft.launcher.brand=${launcher_name}",
			"-Dminecraft.launcher.version=${launcher_version}",
			"-cp", "${classpath}",
		)
	}

	if logging := d.Logging["client"]; logging != nil && logging.Argument != "" {
		path := l.LogConfig(logging.File.ID)
		if _, err := os.Stat(path); err == nil {
			args = append(args, strings.ReplaceAll(logging.Argument, "${path}", path))
		}
	}

	args = append(args, opts.JavaArgs...)
	args = append(args, d.MainClass)

	if d.Arguments != nil && len(d.Arguments.Game) > 0 {
		args = append(args, evaluate(d.Arguments.Game, env)...)
	} else {
		args = append(args, strings.Fields(d.MinecraftArguments)...)
		if opts.Resolution != nil {
			args = append(args, "--width", "${resolution_width}", "--height", "${resolution_height}")
		}
	}

	for i, arg := range args {
		args[i] = expand(arg, vars)
		if m := tokenPattern.FindString(args[i]); m != "" {
			return nil, fmt.Errorf("%w: %s in %q", ErrUnresolvedToken, m, arg)
		}
	}
	return args, nil
}

// Classpath lists the active libraries followed by the client jar
func Classpath(l layout.Layout, d *version.Descriptor, env version.Environment) []string {
	seen := make(map[string]bool)
	var cp []string
	for _, lib := range d.Libraries {
		if !lib.Rules.Allows(env) {
			continue
		}
		// Legacy native only entries carry no main artifact
		if lib.Natives != nil && (lib.Downloads == nil || lib.Downloads.Artifact == nil) {
			continue
		}
		path := l.Library(lib.Path())
		if seen[path] {
			continue
		}
		seen[path] = true
		cp = append(cp, path)
	}
	return append(cp, l.VersionJar(d.JarID()))
}

func evaluate(list []version.Argument, env version.Environment) []string {
	var out []string
	for _, a := range list {
		if a.Rules.Allows(env) {
			out = append(out, a.Value...)
		}
	}
	return out
}

func variables(l layout.Layout, d *version.Descriptor, opts Options, classpath []string) map[string]string {
	assetIndex := d.Assets
	if d.AssetIndex != nil {
		assetIndex = d.AssetIndex.ID
	}

	vars := map[string]string{
		"auth_player_name":    opts.Player,
		"auth_uuid":           opts.UUID,
		"auth_access_token":   opts.AccessToken,
		"auth_session":        opts.AccessToken,
		"auth_xuid":           "0",
		"clientid":            "0",
		"user_type":           "legacy",
		"user_properties":     "{}",
		"version_name":        d.ID,
		"version_type":        d.Type,
		"game_directory":      opts.GameDir,
		"assets_root":         l.AssetsDir(),
		"game_assets":         l.AssetsDir(),
		"assets_index_name":   assetIndex,
		"natives_directory":   l.NativesDir(d.ID),
		"library_directory":   l.LibrariesDir(),
		"classpath_separator": string(os.PathListSeparator),
		"classpath":           strings.Join(classpath, string(os.PathListSeparator)),
		"launcher_name":       LauncherName,
		"launcher_version":    LauncherVersion,
	}
	if opts.Resolution != nil {
		vars["resolution_width"] = strconv.Itoa(opts.Resolution.Width)
		vars["resolution_height"] = strconv.Itoa(opts.Resolution.Height)
	}
	return vars
}

func expand(arg string, vars map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(arg, func(tok string) string {
		if v, ok := vars[tok[2:len(tok)-1]]; ok {
			return v
		}
		return tok
	})
}
