package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"interestsync/internal/store"
)

func (c *Client) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var payload []byte
	err := c.pool.QueryRow(ctx,
		"SELECT fields FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting %s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", collection, id, classify(err))
	}

	fields, err := store.DecodeFields(payload)
	if err != nil {
		return nil, err
	}
	return &store.Document{ID: id, Fields: fields}, nil
}

func (c *Client) Query(ctx context.Context, collection string, filters []store.Filter, limit int) ([]store.Document, error) {
	query, args, err := buildQuery(collection, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, classify(err))
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning document: %w", classify(err))
		}
		fields, err := store.DecodeFields(payload)
		if err != nil {
			return nil, err
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", classify(err))
	}
	return docs, nil
}

// buildQuery expresses each equality filter as JSONB containment, which the
// jsonb_path_ops GIN index serves.
func buildQuery(collection string, filters []store.Filter, limit int) (string, []any, error) {
	if err := store.ValidateFilters(filters); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, fields FROM documents WHERE collection = $1")
	args := []any{collection}
	for _, filter := range filters {
		encoded, err := json.Marshal(map[string]any{filter.Field: filter.Value})
		if err != nil {
			return "", nil, fmt.Errorf("encoding filter value: %w: %w", store.ErrInvalidArgument, err)
		}
		args = append(args, string(encoded))
		sb.WriteString(" AND fields @> $" + strconv.Itoa(len(args)) + "::jsonb")
	}
	sb.WriteString(" ORDER BY seq")
	if limit > 0 {
		args = append(args, limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args, nil
}

func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	payload, err := store.EncodeFields(store.ResolveFields(fields, c.now()))
	if err != nil {
		return "", err
	}

	_, err = c.pool.Exec(ctx,
		"INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)",
		collection, id, string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("creating document in %s: %w", collection, classify(err))
	}
	return id, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return c.BatchCommit(ctx, []store.Write{{Kind: store.WriteUpdate, Collection: collection, ID: id, Fields: fields}})
}

func (c *Client) BatchCommit(ctx context.Context, writes []store.Write) error {
	if err := store.ValidateWrites(writes); err != nil {
		return err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	now := c.now()
	for i, w := range writes {
		payload, err := store.EncodeFields(store.ResolveFields(w.Fields, now))
		if err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}
		switch w.Kind {
		case store.WriteCreate:
			id := w.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)",
				w.Collection, id, string(payload),
			); err != nil {
				return fmt.Errorf("write %d: creating %s/%s: %w", i, w.Collection, id, classify(err))
			}
		case store.WriteUpdate:
			// jsonb || keeps keys whose new value is null.
			tag, err := tx.Exec(ctx,
				"UPDATE documents SET fields = fields || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2",
				w.Collection, w.ID, string(payload),
			)
			if err != nil {
				return fmt.Errorf("write %d: updating %s/%s: %w", i, w.Collection, w.ID, classify(err))
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("write %d: updating %s/%s: %w", i, w.Collection, w.ID, store.ErrNotFound)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing batch: %w", classify(err))
	}
	return nil
}
