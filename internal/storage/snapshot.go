package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// ReadSnapshot loads the records stored under a local key. A missing key is
// an empty collection, not an error.
func ReadSnapshot(ctx context.Context, ls LocalStore, key string) ([]Record, error) {
	raw, err := ls.Read(ctx, key)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("read snapshot "+key, err)
	}
	records, err := DecodeSnapshot(raw)
	if err != nil {
		return nil, wrap("read snapshot "+key, err)
	}
	return records, nil
}

// DecodeSnapshot parses a stored value. Values are normally a JSON array of
// records; older builds stored an object keyed by entity id, which is
// flattened here.
func DecodeSnapshot(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []Record
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var byKey map[string]Record
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("%w: value is neither an array nor a map of records", ErrSchemaDecode)
	}
	out := make([]Record, 0, len(byKey))
	for k, rec := range byKey {
		if rec == nil {
			continue
		}
		if _, ok := rec["id"]; !ok {
			rec["id"] = k
		}
		out = append(out, rec)
	}
	return out, nil
}

// EncodeSnapshot serializes records for a local Write.
func EncodeSnapshot(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DocumentFromRecord builds a remote document from a record.
func DocumentFromRecord(id string, rec Record) (Document, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return Document{}, fmt.Errorf("encode document %s: %w", id, err)
	}
	return Document{ID: id, Body: body}, nil
}

// RecordFromDocument parses a document body. The document id is injected
// when the body does not carry one.
func RecordFromDocument(doc Document) (Record, error) {
	var rec Record
	if err := json.Unmarshal(doc.Body, &rec); err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", ErrSchemaDecode, doc.ID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: document %s is null", ErrSchemaDecode, doc.ID)
	}
	if _, ok := rec["id"]; !ok && doc.ID != "" {
		rec["id"] = doc.ID
	}
	return rec, nil
}
