package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/mealsync/internal/types"
)

func TestBuiltin(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)
	assert.True(t, c.Contains("poulet"))
	assert.True(t, c.Contains("riz"))
	assert.False(t, c.Contains("ghost123"))

	cost, ok := c.Cost("riz")
	require.True(t, ok)
	assert.Equal(t, 3.0, cost)

	f, ok := c.Get("poulet")
	require.True(t, ok)
	assert.Equal(t, 31.0, f.Nutrients.Protein)
	assert.False(t, f.Custom)

	foods := c.Foods()
	assert.Equal(t, c.Len(), len(foods))
	for i := 1; i < len(foods); i++ {
		assert.Less(t, foods[i-1].ID, foods[i].ID)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing id", "[[food]]\nname = \"x\"\n"},
		{"duplicate", "[[food]]\nid = \"a\"\n[[food]]\nid = \"a\"\n"},
		{"negative cost", "[[food]]\nid = \"a\"\npoint_cost = -1.0\n"},
		{"bad toml", "[[food]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestWithCustom(t *testing.T) {
	base, err := Builtin()
	require.NoError(t, err)

	snap := base.WithCustom([]types.FoodItem{
		{ID: "soupe_maison", Name: "Soupe maison", PointCost: 1},
		{ID: "riz", Name: "Overridden", PointCost: 99},
		{ID: ""},
	})
	assert.True(t, snap.Contains("soupe_maison"))
	assert.False(t, base.Contains("soupe_maison"), "base catalog must not change")

	custom, _ := snap.Get("soupe_maison")
	assert.True(t, custom.Custom)

	cost, _ := snap.Cost("riz")
	assert.Equal(t, 3.0, cost, "custom foods never replace catalog entries")
	assert.Equal(t, base.Len()+1, snap.Len())
}

func TestLoadFile(t *testing.T) {
	base, err := Builtin()
	require.NoError(t, err)
	dir := t.TempDir()

	same, err := base.LoadFile(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, base.Len(), same.Len())

	p := filepath.Join(dir, "foods.toml")
	require.NoError(t, os.WriteFile(p, []byte("[[food]]\nid = \"quinoa\"\nname = \"Quinoa\"\npoint_cost = 2.0\n"), 0o644))
	ext, err := base.LoadFile(p)
	require.NoError(t, err)
	assert.True(t, ext.Contains("quinoa"))

	require.NoError(t, os.WriteFile(p, []byte("[[food]]\nid = \"riz\"\n"), 0o644))
	_, err = base.LoadFile(p)
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)
	idx, err := NewIndex(c)
	require.NoError(t, err)
	defer idx.Close()

	tests := []struct {
		query string
		want  string
	}{
		{"poulet", "poulet"},
		{"saumon", "saumon"},
		{"lentilles", "lentilles"},
		{"brocolli", "brocoli"}, // one typo
		{"yaou", "yaourt"},      // prefix
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hits, err := idx.Search(tt.query, 5)
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, tt.want, hits[0].Food.ID)
		})
	}

	hits, err := idx.Search("   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
