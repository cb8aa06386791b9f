// Package flavors loads and queries the flavor catalog.
package flavors

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	coreerrs "servergate/pkg/errors"
)

// Flavor describes one instance size in the catalog.
type Flavor struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	VCPUs    int32  `toml:"vcpus"`
	MemoryMB int32  `toml:"memory_mb"`
	DiskGB   int32  `toml:"disk_gb"`
}

type catalogFile struct {
	Flavors []Flavor `toml:"flavor"`
}

// Catalog is an immutable set of flavors keyed by id.
type Catalog struct {
	byID  map[string]Flavor
	order []string
}

// Load reads a TOML catalog from the supplied filesystem.
func Load(fs afero.Fs, path string) (*Catalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading flavor catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing flavor catalog %s: %w", path, err)
	}

	return New(file.Flavors), nil
}

// New builds a catalog from a flavor list.
func New(list []Flavor) *Catalog {
	c := &Catalog{byID: make(map[string]Flavor, len(list))}
	for _, f := range list {
		if _, ok := c.byID[f.ID]; ok {
			continue
		}
		c.byID[f.ID] = f
		c.order = append(c.order, f.ID)
	}

	return c
}

// Get looks up a flavor by id.
func (c *Catalog) Get(id string) (Flavor, error) {
	f, ok := c.byID[id]
	if !ok {
		return Flavor{}, coreerrs.NewFlavorNotFound(id)
	}

	return f, nil
}

// IDs returns the flavor ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)

	return out
}

// Smaller reports whether a is strictly smaller than b, comparing disk
// first and memory second.
func Smaller(a, b Flavor) bool {
	if a.DiskGB != b.DiskGB {
		return a.DiskGB < b.DiskGB
	}

	return a.MemoryMB < b.MemoryMB
}

// Same reports whether two flavors are the same size for resize purposes.
func Same(a, b Flavor) bool {
	return a.ID == b.ID
}
