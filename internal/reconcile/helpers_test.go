package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"interestsync/internal/config"
	"interestsync/internal/store"
	"interestsync/internal/store/memory"
)

var (
	errUnavailable = store.Transient(errors.New("connection refused"))
	fixedNow       = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
)

// faultyStore injects failures into a memory store.
type faultyStore struct {
	*memory.Store

	mu          sync.Mutex
	failGet     map[string]error
	failQuery   map[string]error
	failCreate  func(fields map[string]any) error
	afterCreate func()
	createCalls int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:     memory.New(memory.WithClock(func() time.Time { return fixedNow })),
		failGet:   map[string]error{},
		failQuery: map[string]error{},
	}
}

func (f *faultyStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err, ok := f.failGet[collection+"/"+id]; ok {
		return nil, err
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *faultyStore) Query(ctx context.Context, collection string, filters []store.Filter, limit int) ([]store.Document, error) {
	if err, ok := f.failQuery[collection]; ok {
		return nil, err
	}
	return f.Store.Query(ctx, collection, filters, limit)
}

func (f *faultyStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	f.mu.Lock()
	f.createCalls++
	fail, after := f.failCreate, f.afterCreate
	f.mu.Unlock()
	if fail != nil {
		if err := fail(fields); err != nil {
			return "", err
		}
	}
	id, err := f.Store.Create(ctx, collection, fields)
	if err == nil && after != nil {
		after()
	}
	return id, err
}

func testConfig() *config.ProjectConfig {
	return config.NewProjectConfig("test", "sqlite://:memory:")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedWithID writes a document under a fixed id.
func seedWithID(t *testing.T, db store.Store, collection, id string, fields map[string]any) {
	t.Helper()
	err := db.BatchCommit(context.Background(), []store.Write{{
		Kind:       store.WriteCreate,
		Collection: collection,
		ID:         id,
		Fields:     fields,
	}})
	require.NoError(t, err)
}

// seed writes a document with a store assigned id, bypassing fault
// injection and the create counter.
func seed(t *testing.T, db store.Store, collection string, fields map[string]any) {
	t.Helper()
	if f, ok := db.(*faultyStore); ok {
		db = f.Store
	}
	_, err := db.Create(context.Background(), collection, fields)
	require.NoError(t, err)
}

func like(subject, object string) map[string]any {
	return map[string]any{"postulanteId": subject, "propuestaId": object}
}

func listAll(t *testing.T, db store.Store, cfg *config.ProjectConfig) []DerivedInterest {
	t.Helper()
	interests, err := ListInterests(context.Background(), db, cfg.Collections.Interests, "", "", "", 0)
	require.NoError(t, err)
	return interests
}

// interestKeys flattens interests to comparable strings, ignoring ids.
func interestKeys(interests []DerivedInterest) []string {
	keys := make([]string, 0, len(interests))
	for _, i := range interests {
		keys = append(keys, i.SubjectID+"|"+i.ObjectID+"|"+i.CounterpartyID+"|"+i.DisplayTitle+"|"+i.DisplayName+"|"+string(i.Status))
	}
	sort.Strings(keys)
	return keys
}
