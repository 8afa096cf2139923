package maven

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"path"
	"strings"
)

// CentralURL is used for libraries that do not declare a repository
const CentralURL = "https://repo1.maven.org/maven2/"

var ErrMainClassNotFound = errors.New("main class not found in manifest")

// Coordinate is a parsed group:artifact:version[:classifier][@extension] string
type Coordinate struct {
	Group    string
	Artifact string
	Version  string
	// Classifier is kept as written, an "@" in it overrides the extension
	Classifier string
	// Extension is set when the version carried an "@ext" override
	Extension string
}

// Parse splits a maven coordinate. Surrounding brackets are stripped.
func Parse(coord string) Coordinate {
	coord = strings.TrimPrefix(coord, "[")
	coord = strings.TrimSuffix(coord, "]")

	parts := strings.Split(coord, ":")
	for len(parts) < 3 {
		parts = append(parts, "")
	}

	c := Coordinate{
		Group:    parts[0],
		Artifact: parts[1],
		Version:  parts[2],
	}

	if len(parts) >= 4 {
		c.Classifier = parts[3]
	} else if i := strings.Index(c.Version, "@"); i >= 0 {
		c.Extension = c.Version[i+1:]
		c.Version = c.Version[:i]
	}
	return c
}

// suffix is everything after <artifact>-<version> in the file name
func (c Coordinate) suffix() string {
	var ext string
	switch {
	case c.Classifier != "":
		ext = "-" + strings.ReplaceAll(c.Classifier, "@", ".")
	case c.Extension != "":
		ext = "." + c.Extension
	default:
		ext = ".jar"
	}

	if !strings.Contains(ext, ".") {
		ext += ".jar"
	}
	return ext
}

// FileName is <artifact>-<version>[-<classifier>].<extension>
func (c Coordinate) FileName() string {
	return c.Artifact + "-" + c.Version + c.suffix()
}

// Path is the slash separated repository path of the artifact
func (c Coordinate) Path() string {
	return path.Join(strings.ReplaceAll(c.Group, ".", "/"), c.Artifact, c.Version, c.FileName())
}

// URL joins the artifact path onto a repository base
func (c Coordinate) URL(base string) string {
	if base == "" {
		base = CentralURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + c.Path()
}

// WithClassifier returns a copy carrying a different classifier
func (c Coordinate) WithClassifier(classifier string) Coordinate {
	c.Classifier = classifier
	return c
}

func (c Coordinate) String() string {
	s := c.Group + ":" + c.Artifact + ":" + c.Version
	if c.Classifier != "" {
		s += ":" + c.Classifier
	} else if c.Extension != "" {
		s += "@" + c.Extension
	}
	return s
}

// ResolveLibraryPath converts a coordinate into its path relative to the libraries dir
func ResolveLibraryPath(coord string) string {
	return Parse(coord).Path()
}

// FindMainClass reads the Main-Class attribute of a jar manifest
func FindMainClass(jarPath string) (string, error) {
	reader, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", fmt.Errorf("failed to open jar %s: %w", jarPath, err)
	}
	defer func() { _ = reader.Close() }()

	for _, f := range reader.File {
		if !strings.EqualFold(path.Base(f.Name), "MANIFEST.MF") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open manifest: %w", err)
		}
		defer func() { _ = rc.Close() }()

		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "Main-Class:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "Main-Class:")), nil
			}
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read manifest: %w", err)
		}
		break
	}

	return "", fmt.Errorf("%w: %s", ErrMainClassNotFound, jarPath)
}
