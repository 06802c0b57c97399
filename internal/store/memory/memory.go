// Package memory implements store.Store in process. Documents go through
// the same JSON encoding as the SQL adapters so that equality filters and
// field types behave identically.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"interestsync/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu          sync.RWMutex
	collections map[string][]*entry
	now         func() time.Time
}

type entry struct {
	id      string
	payload []byte
}

type Option func(*Store)

// WithClock overrides the clock used for store.ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string][]*entry),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) EnsureSchema(ctx context.Context) error { return nil }

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Transient(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.find(collection, id)
	if e == nil {
		return nil, fmt.Errorf("getting %s/%s: %w", collection, id, store.ErrNotFound)
	}
	doc, err := e.document()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) Query(ctx context.Context, collection string, filters []store.Filter, limit int) ([]store.Document, error) {
	if err := store.ValidateFilters(filters); err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, store.Transient(err)
	}

	wanted := make([][]byte, len(filters))
	for i, filter := range filters {
		encoded, err := json.Marshal(filter.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding filter value: %w: %w", store.ErrInvalidArgument, err)
		}
		wanted[i] = encoded
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]store.Document, 0)
	for _, e := range s.collections[collection] {
		doc, err := e.document()
		if err != nil {
			return nil, err
		}
		if !matches(doc, filters, wanted) {
			continue
		}
		results = append(results, doc)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", store.Transient(err)
	}
	payload, err := store.EncodeFields(store.ResolveFields(fields, s.now()))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.collections[collection] = append(s.collections[collection], &entry{id: id, payload: payload})
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.BatchCommit(ctx, []store.Write{{Kind: store.WriteUpdate, Collection: collection, ID: id, Fields: fields}})
}

func (s *Store) BatchCommit(ctx context.Context, writes []store.Write) error {
	if err := store.ValidateWrites(writes); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return store.Transient(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage against a copy so a failing write leaves nothing behind.
	staged := make(map[string][]*entry, len(s.collections))
	for name, entries := range s.collections {
		copied := make([]*entry, len(entries))
		for i, e := range entries {
			clone := *e
			copied[i] = &clone
		}
		staged[name] = copied
	}

	now := s.now()
	for i, w := range writes {
		fields := store.ResolveFields(w.Fields, now)
		switch w.Kind {
		case store.WriteCreate:
			id := w.ID
			if id == "" {
				id = uuid.NewString()
			}
			if findIn(staged[w.Collection], id) != nil {
				return fmt.Errorf("write %d: %s/%s already exists: %w", i, w.Collection, id, store.ErrInvalidArgument)
			}
			payload, err := store.EncodeFields(fields)
			if err != nil {
				return fmt.Errorf("write %d: %w", i, err)
			}
			staged[w.Collection] = append(staged[w.Collection], &entry{id: id, payload: payload})
		case store.WriteUpdate:
			e := findIn(staged[w.Collection], w.ID)
			if e == nil {
				return fmt.Errorf("write %d: updating %s/%s: %w", i, w.Collection, w.ID, store.ErrNotFound)
			}
			current, err := store.DecodeFields(e.payload)
			if err != nil {
				return fmt.Errorf("write %d: %w", i, err)
			}
			for key, value := range fields {
				current[key] = value
			}
			payload, err := store.EncodeFields(current)
			if err != nil {
				return fmt.Errorf("write %d: %w", i, err)
			}
			e.payload = payload
		}
	}

	s.collections = staged
	return nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *Store) find(collection, id string) *entry {
	return findIn(s.collections[collection], id)
}

func findIn(entries []*entry, id string) *entry {
	for _, e := range entries {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (e *entry) document() (store.Document, error) {
	fields, err := store.DecodeFields(e.payload)
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: e.id, Fields: fields}, nil
}

func matches(doc store.Document, filters []store.Filter, wanted [][]byte) bool {
	for i, filter := range filters {
		value, ok := doc.Field(filter.Field)
		if !ok || value == nil {
			return false
		}
		got, err := json.Marshal(value)
		if err != nil || !bytes.Equal(got, wanted[i]) {
			return false
		}
	}
	return true
}
