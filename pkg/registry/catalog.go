package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk shape of a model catalog file. Only the sections
// present in the file override the built-in tables; absent sections keep
// their defaults.
type Catalog struct {
	Aliases map[string]string  `yaml:"aliases"`
	Pricing map[string]Pricing `yaml:"pricing"`
}

// NewFromCatalog creates a Registry whose alias and pricing tables are
// overridden by the given YAML catalog file. Environment variables referenced
// as ${VAR} or $VAR are expanded before parsing.
func NewFromCatalog(path string, opts ...Option) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return nil, fmt.Errorf("registry: load catalog: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cat Catalog
	if err := yaml.Unmarshal([]byte(expanded), &cat); err != nil {
		return nil, fmt.Errorf("registry: parse catalog: %w", err)
	}

	r := New(opts...)
	for alias, model := range cat.Aliases {
		r.aliases[alias] = model
	}
	for model, p := range cat.Pricing {
		r.pricing[model] = p
	}

	return r, nil
}
