package layout

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLayoutPaths(t *testing.T) {
	l := New("/store")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"version json", l.VersionJSON("1.16.5"), "/store/versions/1.16.5/1.16.5.json"},
		{"version jar", l.VersionJar("1.16.5"), "/store/versions/1.16.5/1.16.5.jar"},
		{"library", l.Library("com/mojang/brigadier/1.0.17/brigadier-1.0.17.jar"), "/store/libraries/com/mojang/brigadier/1.0.17/brigadier-1.0.17.jar"},
		{"asset index", l.AssetIndex("1.16"), "/store/assets/indexes/1.16.json"},
		{"asset object", l.AssetObject("BDF48EF6B5D0D23BBB02E17D04865216179F510A"), "/store/assets/objects/bd/bdf48ef6b5d0d23bbb02e17d04865216179f510a"},
		{"log config", l.LogConfig("client-1.12.xml"), "/store/assets/log_configs/client-1.12.xml"},
		{"natives", l.NativesDir("1.8.9"), "/store/versions/1.8.9/natives"},
		{"instance", l.Instance("All the Mods"), "/store/instances/All the Mods"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != filepath.FromSlash(tt.want) {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"1.16.5", "1.16.5-36.1.0", "All the Mods", "fabric-loader-0.11.3-1.16.5"} {
		if err := ValidName(name); err != nil {
			t.Errorf("ValidName(%q) = %v", name, err)
		}
	}

	for _, name := range []string{"", ".", "..", "a/b", "../x", "/abs", `a\b`} {
		if err := ValidName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestStaging(t *testing.T) {
	l := New("/store")
	if got, want := l.Staging("1.16.5").VersionJSON("1.16.5"), filepath.FromSlash("/store/temp/install-1.16.5/versions/1.16.5/1.16.5.json"); got != want {
		t.Fatalf("staged version json = %q, want %q", got, want)
	}
}
