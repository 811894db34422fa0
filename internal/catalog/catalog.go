// Package catalog loads the platform catalog and the keyword heuristic tables
// from YAML. A default catalog is embedded in the binary.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/taskroute/internal/classifier"
	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/platform"
)

//go:embed defaults.yaml
var defaultCatalog []byte

// Catalog is the declarative configuration of platforms and heuristics.
type Catalog struct {
	Platforms  []model.ExecutionPlatform `yaml:"platforms"`
	Heuristics []classifier.Rule         `yaml:"heuristics"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path returns the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	def, err := Default()
	if err != nil {
		return nil, err
	}
	c.fillHeuristics(def.Heuristics)
	return c, nil
}

// fillHeuristics appends a default rule for every factor the catalog leaves
// without one.
func (c *Catalog) fillHeuristics(defaults []classifier.Rule) {
	covered := make(map[string]bool, len(c.Heuristics))
	for _, r := range c.Heuristics {
		covered[r.Factor] = true
	}
	for _, r := range defaults {
		if !covered[r.Factor] {
			c.Heuristics = append(c.Heuristics, r)
		}
	}
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that heuristics reference known factors and that platform
// ids are unique.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Platforms))
	for _, p := range c.Platforms {
		if seen[p.ID] {
			return fmt.Errorf("catalog platform %q: %w", p.ID, model.ErrDuplicateID)
		}
		seen[p.ID] = true
	}
	return classifier.ValidateRules(c.Heuristics)
}

// Populate registers every catalog platform with reg.
func (c *Catalog) Populate(reg *platform.Registry) error {
	for _, p := range c.Platforms {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}
