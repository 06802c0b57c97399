package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"interestsync/internal/config"
	"interestsync/internal/store"
)

// Resolver looks up the display fields of a derived interest. Missing or
// unreadable reference documents degrade to placeholders.
type Resolver struct {
	db           store.Store
	collections  config.Collections
	fields       config.FieldSet
	placeholders config.Placeholders
	logger       *slog.Logger
}

func NewResolver(db store.Store, cfg *config.ProjectConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		db:           db,
		collections:  cfg.Collections,
		fields:       cfg.Fields,
		placeholders: cfg.Placeholders,
		logger:       logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, objectID string) Resolution {
	res := Resolution{
		DisplayTitle: r.placeholders.Title,
		DisplayName:  r.placeholders.DisplayName,
	}

	proposal, err := r.db.Get(ctx, r.collections.Proposals, objectID)
	if err != nil {
		r.degrade(&res, err, "proposal", objectID)
		return res
	}
	if title, ok := firstString(*proposal, r.fields.ProposalTitle); ok {
		res.DisplayTitle = title
	}
	ownerID, ok := firstString(*proposal, r.fields.ProposalOwner)
	if !ok {
		return res
	}
	res.OwnerID = ownerID

	owner, err := r.db.Get(ctx, r.collections.Owners, ownerID)
	if err != nil {
		r.degrade(&res, err, "owner", ownerID)
		return res
	}
	if name, ok := firstString(*owner, r.fields.OwnerName); ok {
		res.DisplayName = name
	}
	return res
}

func (r *Resolver) degrade(res *Resolution, err error, kind, id string) {
	if errors.Is(err, store.ErrNotFound) {
		r.logger.Debug("reference missing, using placeholder", "kind", kind, "id", id)
		return
	}
	r.logger.Warn("reference lookup failed, using placeholder", "kind", kind, "id", id, "error", err)
	if res.Err == nil {
		res.Err = err
	}
}
