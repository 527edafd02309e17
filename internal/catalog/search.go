package catalog

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/steveyegge/mealsync/internal/types"
)

// Index is an in-memory full-text index over a catalog's food names.
type Index struct {
	index   bleve.Index
	catalog *Catalog
}

type indexedFood struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Hit is one search result.
type Hit struct {
	Food  types.FoodItem
	Score float64
}

// NewIndex indexes every food of c.
func NewIndex(c *Catalog) (*Index, error) {
	mapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	name := bleve.NewTextFieldMapping()
	name.Analyzer = "standard"
	doc.AddFieldMappingsAt("name", name)

	id := bleve.NewTextFieldMapping()
	id.Analyzer = "keyword"
	doc.AddFieldMappingsAt("id", id)

	mapping.DefaultMapping = doc

	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for _, f := range c.Foods() {
		if err := batch.Index(f.ID, indexedFood{ID: f.ID, Name: f.Name}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index food %s: %w", f.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("index catalog: %w", err)
	}
	return &Index{index: idx, catalog: c}, nil
}

// Search finds foods whose name matches text, tolerating one typo and
// matching word prefixes. An exact id always ranks first.
func (i *Index) Search(text string, limit int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	match := bleve.NewMatchQuery(text)
	match.SetField("name")
	match.SetFuzziness(1)

	queries := []query.Query{match}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		p := bleve.NewPrefixQuery(word)
		p.SetField("name")
		queries = append(queries, p)
	}
	exact := bleve.NewTermQuery(text)
	exact.SetField("id")
	exact.SetBoost(10)
	queries = append(queries, exact)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		f, ok := i.catalog.Get(h.ID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Food: f, Score: h.Score})
	}
	return hits, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
