package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// catalogFile is the on-disk shape of a catalog, shared by YAML and TOML.
type catalogFile struct {
	Models []ModelDescriptor `yaml:"models" toml:"models"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Registry, error) {
	return parseYAML(defaultCatalog)
}

// LoadCatalog reads a catalog from a YAML (.yaml, .yml) or TOML (.toml) file.
// An empty path yields the built-in catalog.
func LoadCatalog(path string) (*Registry, error) {
	if path == "" {
		return DefaultCatalog()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return parseTOML(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("catalog %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}
}

func parseYAML(data []byte) (*Registry, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	return New(f.Models)
}

func parseTOML(data []byte) (*Registry, error) {
	var f catalogFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing catalog TOML: unknown keys %v", undecoded)
	}
	return New(f.Models)
}
