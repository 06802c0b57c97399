package reconcile

import (
	"context"
	"fmt"

	"interestsync/internal/store"
)

// Guard reports whether a derived interest already exists for a pair. The
// check and the later create are not atomic; runs must not overlap.
type Guard struct {
	db         store.Store
	collection string
}

func NewGuard(db store.Store, collection string) *Guard {
	return &Guard{db: db, collection: collection}
}

func (g *Guard) Exists(ctx context.Context, subjectID, objectID string) (bool, error) {
	docs, err := g.db.Query(ctx, g.collection, []store.Filter{
		store.Eq(FieldSubject, subjectID),
		store.Eq(FieldObject, objectID),
	}, 1)
	if err != nil {
		return false, fmt.Errorf("checking existing interest: %w", err)
	}
	return len(docs) > 0, nil
}
