// Package catalog provides the food catalog meal items are resolved against.
//
// The built-in catalog is compiled into the binary from builtin.toml and
// never changes at run time. A user's custom foods are layered on top per
// sync, giving the snapshot the validator and the point repair work from.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/steveyegge/mealsync/internal/types"
)

//go:embed builtin.toml
var builtinTOML []byte

type catalogFile struct {
	Foods []types.FoodItem `toml:"food"`
}

// Catalog is an immutable set of foods keyed by id.
type Catalog struct {
	foods map[string]types.FoodItem
}

var (
	builtinOnce sync.Once
	builtin     *Catalog
	builtinErr  error
)

// Builtin returns the built-in catalog.
func Builtin() (*Catalog, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = Parse(builtinTOML)
		if builtinErr != nil {
			builtinErr = fmt.Errorf("parse built-in catalog: %w", builtinErr)
		}
	})
	return builtin, builtinErr
}

// Parse reads a catalog in the builtin.toml format.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	c := &Catalog{foods: make(map[string]types.FoodItem, len(f.Foods))}
	for i, food := range f.Foods {
		food.ID = strings.TrimSpace(food.ID)
		if food.ID == "" {
			return nil, fmt.Errorf("food %d has no id", i)
		}
		if _, dup := c.foods[food.ID]; dup {
			return nil, fmt.Errorf("duplicate food id %q", food.ID)
		}
		if food.PointCost < 0 {
			return nil, fmt.Errorf("food %q has negative point cost", food.ID)
		}
		c.foods[food.ID] = food
	}
	return c, nil
}

// LoadFile extends c with the foods of a site-local TOML file. Ids already
// in c are rejected, since catalog entries are immutable. A missing file
// returns c unchanged.
func (c *Catalog) LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from configuration
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := c.clone(len(extra.foods))
	for id, f := range extra.foods {
		if _, exists := out.foods[id]; exists {
			return nil, fmt.Errorf("parse %s: food %q is already in the catalog", path, id)
		}
		out.foods[id] = f
	}
	return out, nil
}

// WithCustom returns a snapshot of c plus a user's custom foods. A custom
// food never replaces a catalog entry with the same id.
func (c *Catalog) WithCustom(custom []types.FoodItem) *Catalog {
	out := c.clone(len(custom))
	for _, f := range custom {
		if f.ID == "" {
			continue
		}
		if _, exists := out.foods[f.ID]; exists {
			continue
		}
		f.Custom = true
		out.foods[f.ID] = f
	}
	return out
}

func (c *Catalog) clone(extra int) *Catalog {
	out := &Catalog{foods: make(map[string]types.FoodItem, len(c.foods)+extra)}
	for id, f := range c.foods {
		out.foods[id] = f
	}
	return out
}

// Contains reports whether id resolves.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.foods[id]
	return ok
}

// Get returns the food with the given id.
func (c *Catalog) Get(id string) (types.FoodItem, bool) {
	f, ok := c.foods[id]
	return f, ok
}

// Cost returns the point cost of one serving of id.
func (c *Catalog) Cost(id string) (float64, bool) {
	f, ok := c.foods[id]
	return f.PointCost, ok
}

// Len returns the number of foods.
func (c *Catalog) Len() int { return len(c.foods) }

// Foods returns all foods ordered by id.
func (c *Catalog) Foods() []types.FoodItem {
	out := make([]types.FoodItem, 0, len(c.foods))
	for _, f := range c.foods {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b types.FoodItem) int { return strings.Compare(a.ID, b.ID) })
	return out
}
