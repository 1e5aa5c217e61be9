package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrUnknownVersion means the catalog has no schema for a requested version.
var ErrUnknownVersion = errors.New("no schema registered for version")

const catalogManifest = "catalog.yaml"

// Catalog maps CIM version tags to RDFS profile locations under a root
// directory. An optional catalog.yaml manifest overrides the default
// "CIM<version>" directory convention.
type Catalog struct {
	Root     string
	versions map[string]string
}

type catalogFile struct {
	Versions map[string]string `yaml:"versions"`
}

// OpenCatalog reads the catalog rooted at dir.
func OpenCatalog(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat schema root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema root %s is not a directory", dir)
	}
	c := &Catalog{Root: dir, versions: map[string]string{}}
	raw, err := os.ReadFile(filepath.Join(dir, catalogManifest))
	if err == nil {
		var manifest catalogFile
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", catalogManifest, err)
		}
		c.versions = manifest.Versions
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", catalogManifest, err)
	}
	return c, nil
}

// Locate returns the profile location for a version tag.
func (c *Catalog) Locate(version string) (string, error) {
	rel, ok := c.versions[version]
	if !ok {
		rel = "CIM" + version
	}
	location := filepath.Join(c.Root, rel)
	if _, err := os.Stat(location); err != nil {
		return "", fmt.Errorf("%w %s: %s", ErrUnknownVersion, version, location)
	}
	return location, nil
}

// LoadVersion resolves a version against the catalog and loads its hierarchy.
func (c *Catalog) LoadVersion(version string) (*Schema, error) {
	location, err := c.Locate(version)
	if err != nil {
		return nil, err
	}
	return Load(location, version)
}
