package reconcile

import (
	"context"
	"fmt"

	"interestsync/internal/store"
)

// StatusDeriver decides whether an interest has been reciprocated by looking
// for a match on the same pair. Nothing is cached: matches may appear while
// a pass is running.
type StatusDeriver struct {
	db            store.Store
	collection    string
	subjectFields []string
	objectFields  []string
}

func NewStatusDeriver(db store.Store, collection string, subjectFields, objectFields []string) *StatusDeriver {
	return &StatusDeriver{
		db:            db,
		collection:    collection,
		subjectFields: subjectFields,
		objectFields:  objectFields,
	}
}

// Derive tries every naming combination of the match fields and returns
// StatusAccepted on the first hit.
func (s *StatusDeriver) Derive(ctx context.Context, subjectID, objectID string) (Status, error) {
	for _, subjectField := range s.subjectFields {
		for _, objectField := range s.objectFields {
			docs, err := s.db.Query(ctx, s.collection, []store.Filter{
				store.Eq(subjectField, subjectID),
				store.Eq(objectField, objectID),
			}, 1)
			if err != nil {
				return "", fmt.Errorf("looking up match: %w", err)
			}
			if len(docs) > 0 {
				return StatusAccepted, nil
			}
		}
	}
	return StatusPending, nil
}
