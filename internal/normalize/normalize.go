// Package normalize repairs reference documents so older records read the
// same way as new ones.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"interestsync/internal/config"
	"interestsync/internal/store"
)

// Rating fields initialised on employer profiles.
const (
	FieldAverageRating    = "averageRating"
	FieldTotalRatings     = "totalRatings"
	FieldLastRatingUpdate = "lastRatingUpdate"
	FieldUserType         = "tipoUsuario"
)

type Options struct {
	DryRun bool
	Logger *slog.Logger
}

type Result struct {
	ProposalsScanned int
	ProposalsUpdated int
	EmployersScanned int
	EmployersUpdated int
	BatchesCommitted int
	Errors           []error
}

// Run mirrors owner id aliases across proposals and adds empty rating fields
// to employers that have none. Documents already in shape are left alone, so
// repeated runs write nothing.
func Run(ctx context.Context, cfg *config.ProjectConfig, db store.Store, options Options) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	result := &Result{}

	proposals, err := db.Query(ctx, cfg.Collections.Proposals, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching proposals: %w", err)
	}
	result.ProposalsScanned = len(proposals)

	var writes []store.Write
	for _, doc := range proposals {
		fields := ownerAliasFix(doc, cfg.Fields.ProposalOwner)
		if fields == nil {
			continue
		}
		logger.Debug("mirroring owner id", "proposal", doc.ID, "fields", fields)
		writes = append(writes, store.Write{
			Kind:       store.WriteUpdate,
			Collection: cfg.Collections.Proposals,
			ID:         doc.ID,
			Fields:     fields,
		})
	}
	proposalWrites := len(writes)

	employers, err := db.Query(ctx, cfg.Collections.Owners, []store.Filter{
		store.Eq(FieldUserType, cfg.Normalize.EmployerType),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching employers: %w", err)
	}
	result.EmployersScanned = len(employers)

	for _, doc := range employers {
		if _, ok := doc.Field(FieldAverageRating); ok {
			continue
		}
		logger.Debug("initialising rating fields", "owner", doc.ID)
		writes = append(writes, store.Write{
			Kind:       store.WriteUpdate,
			Collection: cfg.Collections.Owners,
			ID:         doc.ID,
			Fields: map[string]any{
				FieldAverageRating:    nil,
				FieldTotalRatings:     0,
				FieldLastRatingUpdate: nil,
			},
		})
	}

	if options.DryRun {
		result.ProposalsUpdated = proposalWrites
		result.EmployersUpdated = len(writes) - proposalWrites
		return result, nil
	}

	for start := 0; start < len(writes); start += cfg.Normalize.BatchSize {
		end := min(start+cfg.Normalize.BatchSize, len(writes))
		chunk := writes[start:end]
		if err := db.BatchCommit(ctx, chunk); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("committing writes %d-%d: %w", start, end-1, err))
			continue
		}
		result.BatchesCommitted++
		for _, w := range chunk {
			if w.Collection == cfg.Collections.Proposals {
				result.ProposalsUpdated++
			} else {
				result.EmployersUpdated++
			}
		}
	}

	logger.Info("normalization finished",
		"proposals_updated", result.ProposalsUpdated,
		"employers_updated", result.EmployersUpdated,
		"batches", result.BatchesCommitted,
		"errors", len(result.Errors),
	)
	return result, nil
}

// ownerAliasFix returns the alias fields to set so every owner field holds
// the first present owner id, or nil when nothing is missing.
func ownerAliasFix(doc store.Document, aliases []string) map[string]any {
	var ownerID string
	for _, name := range aliases {
		if s := stringField(doc, name); s != "" {
			ownerID = s
			break
		}
	}
	if ownerID == "" {
		return nil
	}

	var fields map[string]any
	for _, name := range aliases {
		if stringField(doc, name) != "" {
			continue
		}
		if fields == nil {
			fields = make(map[string]any)
		}
		fields[name] = ownerID
	}
	return fields
}

func stringField(doc store.Document, name string) string {
	value, _ := doc.Field(name)
	s, _ := value.(string)
	return strings.TrimSpace(s)
}
