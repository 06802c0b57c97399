package store

import "context"

// Store is the document store consumed by the reconciliation pass and the
// maintenance commands. Collections hold schemaless documents addressed by id.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// Get returns ErrNotFound when no document has the given id.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Query returns documents matching every filter in creation order.
	// A limit of zero or less means no limit.
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Document, error)
	// Create stores a new document under a generated id and returns the id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// BatchCommit applies all writes atomically.
	BatchCommit(ctx context.Context, writes []Write) error
}
