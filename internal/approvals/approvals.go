// Package approvals moves the newest proposal between validation states, the
// manual step that makes a proposal visible to applicants or hides it again.
package approvals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"interestsync/internal/config"
	"interestsync/internal/reconcile"
	"interestsync/internal/store"
)

const (
	FieldValidation = "estadoValidacion"
	FieldCreatedAt  = "fechaCreacion"

	Pending  = "pendiente"
	Approved = "aprobada"
)

// ErrNoCandidate is returned when no proposal is in the source state.
var ErrNoCandidate = errors.New("no proposal in the requested validation state")

type Proposal struct {
	ID         string
	Title      string
	Validation string
	CreatedAt  time.Time
}

type Options struct {
	DryRun bool
	Logger *slog.Logger
}

type Result struct {
	Proposal Proposal
	From     string
	To       string
	// Approved lists every approved proposal after the transition, newest
	// first.
	Approved []Proposal
}

// List returns the proposals whose validation state equals validation,
// newest first. Proposals without a readable creation date are left out, the
// same way an ordered query skips documents missing the ordering field.
func List(ctx context.Context, db store.Store, cfg *config.ProjectConfig, validation string) ([]Proposal, error) {
	docs, err := db.Query(ctx, cfg.Collections.Proposals, []store.Filter{
		store.Eq(FieldValidation, validation),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching %s proposals: %w", validation, err)
	}

	proposals := make([]Proposal, 0, len(docs))
	for _, doc := range docs {
		value, _ := doc.Field(FieldCreatedAt)
		createdAt, ok := reconcile.ParseTime(value)
		if !ok {
			continue
		}
		proposals = append(proposals, Proposal{
			ID:         doc.ID,
			Title:      title(doc, cfg.Fields.ProposalTitle),
			Validation: validation,
			CreatedAt:  createdAt,
		})
	}
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})
	return proposals, nil
}

// Latest returns the newest proposal in the given validation state.
func Latest(ctx context.Context, db store.Store, cfg *config.ProjectConfig, validation string) (Proposal, error) {
	proposals, err := List(ctx, db, cfg, validation)
	if err != nil {
		return Proposal{}, err
	}
	if len(proposals) == 0 {
		return Proposal{}, fmt.Errorf("latest %s proposal: %w", validation, ErrNoCandidate)
	}
	return proposals[0], nil
}

// Transition sets the newest proposal in state from to state to. Only the
// validation field is written.
func Transition(ctx context.Context, db store.Store, cfg *config.ProjectConfig, from, to string, options Options) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	proposal, err := Latest(ctx, db, cfg, from)
	if err != nil {
		return nil, err
	}
	result := &Result{Proposal: proposal, From: from, To: to}

	if !options.DryRun {
		err := db.Update(ctx, cfg.Collections.Proposals, proposal.ID, map[string]any{FieldValidation: to})
		if err != nil {
			return nil, fmt.Errorf("updating proposal %s: %w", proposal.ID, err)
		}
	}
	logger.Info("proposal validation changed",
		"proposal", proposal.ID,
		"from", from,
		"to", to,
		"dry_run", options.DryRun,
	)

	result.Approved, err = List(ctx, db, cfg, Approved)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApproveLatest approves the newest pending proposal.
func ApproveLatest(ctx context.Context, db store.Store, cfg *config.ProjectConfig, options Options) (*Result, error) {
	return Transition(ctx, db, cfg, Pending, Approved, options)
}

// ResetLatest returns the newest approved proposal to pending.
func ResetLatest(ctx context.Context, db store.Store, cfg *config.ProjectConfig, options Options) (*Result, error) {
	return Transition(ctx, db, cfg, Approved, Pending, options)
}

func title(doc store.Document, candidates []string) string {
	for _, name := range candidates {
		value, _ := doc.Field(name)
		if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
