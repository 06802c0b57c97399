package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"interestsync/internal/store"
)

func (c *Client) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT fields FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
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
	if err := store.ValidateFilters(filters); err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, fields FROM documents WHERE collection = ?")
	args := []any{collection}
	for _, filter := range filters {
		encoded, err := json.Marshal(filter.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding filter value: %w: %w", store.ErrInvalidArgument, err)
		}
		sb.WriteString(" AND json_extract(fields, ?) = json_extract(?, '$')")
		args = append(args, "$."+filter.Field, string(encoded))
	}
	sb.WriteString(" ORDER BY seq LIMIT ?")
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
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

func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	payload, err := store.EncodeFields(store.ResolveFields(fields, c.now()))
	if err != nil {
		return "", err
	}

	_, err = c.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, fields) VALUES (?, ?, ?)",
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

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", classify(err))
	}
	defer tx.Rollback()

	now := c.now()
	for i, w := range writes {
		fields := store.ResolveFields(w.Fields, now)
		switch w.Kind {
		case store.WriteCreate:
			id := w.ID
			if id == "" {
				id = uuid.NewString()
			}
			payload, err := store.EncodeFields(fields)
			if err != nil {
				return fmt.Errorf("write %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO documents (collection, id, fields) VALUES (?, ?, ?)",
				w.Collection, id, string(payload),
			); err != nil {
				return fmt.Errorf("write %d: creating %s/%s: %w", i, w.Collection, id, classify(err))
			}
		case store.WriteUpdate:
			if err := mergeInTx(ctx, tx, w.Collection, w.ID, fields); err != nil {
				return fmt.Errorf("write %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", classify(err))
	}
	return nil
}

// mergeInTx applies a top-level merge in Go; json_patch would drop keys
// whose new value is null.
func mergeInTx(ctx context.Context, tx *sql.Tx, collection, id string, fields map[string]any) error {
	var payload []byte
	err := tx.QueryRowContext(ctx,
		"SELECT fields FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("updating %s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", collection, id, classify(err))
	}

	current, err := store.DecodeFields(payload)
	if err != nil {
		return err
	}
	for key, value := range fields {
		current[key] = value
	}
	merged, err := store.EncodeFields(current)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET fields = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE collection = ? AND id = ?",
		string(merged), collection, id,
	); err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, classify(err))
	}
	return nil
}
