// Package fixture reads YAML seed files into store writes.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"interestsync/internal/store"
)

var (
	ErrInvalidYAML   = errors.New("invalid YAML in fixture")
	ErrNoCollections = errors.New("fixture has no collections")
	ErrInvalidID     = errors.New("fixture document id must be a non-empty string")
)

// Record is one seeded document. An empty ID lets the store assign one.
type Record struct {
	ID     string
	Fields map[string]any
}

type Fixture struct {
	Collections map[string][]Record
	SourceFile  string
}

type rawFixture struct {
	Collections map[string][]map[string]any `yaml:"collections"`
}

func ParseFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fx.SourceFile = path
	return fx, nil
}

// Parse reads a document of the form
//
//	collections:
//	  propuestas:
//	    - id: P1
//	      titulo: Backend Role
func Parse(content []byte) (*Fixture, error) {
	var raw rawFixture
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if len(raw.Collections) == 0 {
		return nil, ErrNoCollections
	}

	fx := &Fixture{Collections: make(map[string][]Record, len(raw.Collections))}
	for name, items := range raw.Collections {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("collection name is required")
		}
		records := make([]Record, 0, len(items))
		for i, item := range items {
			record, err := parseRecord(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
			records = append(records, record)
		}
		fx.Collections[name] = records
	}
	return fx, nil
}

func parseRecord(item map[string]any) (Record, error) {
	record := Record{Fields: make(map[string]any, len(item))}
	for key, value := range item {
		if key == "id" {
			id, ok := value.(string)
			if !ok || strings.TrimSpace(id) == "" {
				return Record{}, ErrInvalidID
			}
			record.ID = id
			continue
		}
		if err := store.ValidateFieldName(key); err != nil {
			return Record{}, err
		}
		record.Fields[key] = value
	}
	return record, nil
}

// Writes returns create writes for every record, collections in name order.
func (f *Fixture) Writes() []store.Write {
	names := make([]string, 0, len(f.Collections))
	for name := range f.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	var writes []store.Write
	for _, name := range names {
		for _, record := range f.Collections[name] {
			writes = append(writes, store.Write{
				Kind:       store.WriteCreate,
				Collection: name,
				ID:         record.ID,
				Fields:     record.Fields,
			})
		}
	}
	return writes
}

// Load commits the fixture in batches of at most batchSize writes and
// returns how many documents were written. Records whose id already exists
// fail their batch.
func Load(ctx context.Context, db store.Store, f *Fixture, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive")
	}
	writes := f.Writes()
	loaded := 0
	for start := 0; start < len(writes); start += batchSize {
		end := min(start+batchSize, len(writes))
		if err := db.BatchCommit(ctx, writes[start:end]); err != nil {
			return loaded, fmt.Errorf("loading fixture: %w", err)
		}
		loaded = end
	}
	return loaded, nil
}
