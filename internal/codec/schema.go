package codec

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/steveyegge/mealsync/internal/types"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[types.Collection]*gojsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	schemas = make(map[types.Collection]*gojsonschema.Schema)
	for c := range knownCollections {
		data, err := schemaFS.ReadFile("schemas/" + string(c) + ".json")
		if err != nil {
			schemasErr = fmt.Errorf("load %s schema: %w", c, err)
			return
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			schemasErr = fmt.Errorf("compile %s schema: %w", c, err)
			return
		}
		schemas[c] = compiled
	}
}

// checkRequired validates the identity fields of rec against the
// collection's schema.
func checkRequired(c types.Collection, rec map[string]any) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[c]
	if !ok {
		return fmt.Errorf("no schema for collection %q", c)
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(rec))
	if err != nil {
		return fmt.Errorf("validation error: %v", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.Field()+": "+e.Description())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
