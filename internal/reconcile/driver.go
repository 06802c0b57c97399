package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"interestsync/internal/config"
	"interestsync/internal/store"
)

type Options struct {
	// DryRun derives every record but writes nothing.
	DryRun bool
	// StrictLookups skips an event when a proposal or owner lookup fails
	// transiently instead of writing placeholders.
	StrictLookups bool
	Logger        *slog.Logger
}

// Driver runs reconciliation passes over the event collection. Events are
// processed one at a time; a pass interrupted between events can simply be
// run again.
type Driver struct {
	db       store.Store
	cfg      *config.ProjectConfig
	guard    *Guard
	resolver *Resolver
	status   *StatusDeriver
	options  Options
	logger   *slog.Logger
}

func NewDriver(db store.Store, cfg *config.ProjectConfig, options Options) *Driver {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		db:       db,
		cfg:      cfg,
		guard:    NewGuard(db, cfg.Collections.Interests),
		resolver: NewResolver(db, cfg, logger),
		status:   NewStatusDeriver(db, cfg.Collections.Acceptances, cfg.Fields.AcceptanceSubject, cfg.Fields.AcceptanceObject),
		options:  options,
		logger:   logger,
	}
}

type pair struct {
	subject string
	object  string
}

// Run performs one pass. Only a failure to read the event collection or a
// cancelled context returns an error; per-event failures are recorded in the
// Result and the pass continues.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	var result Result

	docs, err := d.db.Query(ctx, d.cfg.Collections.Events, nil, 0)
	if err != nil {
		return result, fmt.Errorf("fetching events: %w", err)
	}
	d.logger.Info("reconciliation started", "events", len(docs), "dry_run", d.options.DryRun)

	planned := make(map[pair]struct{})
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("reconciliation interrupted", "processed", result.TotalProcessed, "error", err)
			return result, err
		}

		event := d.parseEvent(doc)
		if event.SubjectID == "" || event.ObjectID == "" {
			d.fail(&result, event, StageParse, ErrMalformedEvent)
			continue
		}

		key := pair{subject: event.SubjectID, object: event.ObjectID}
		if _, ok := planned[key]; ok {
			result.recordExisting()
			continue
		}

		exists, err := d.guard.Exists(ctx, event.SubjectID, event.ObjectID)
		if err != nil {
			d.fail(&result, event, StageDedup, err)
			continue
		}
		if exists {
			d.logger.Debug("interest already exists", "event", event.ID, "subject", event.SubjectID, "object", event.ObjectID)
			result.recordExisting()
			continue
		}

		interest, stage, err := d.derive(ctx, event)
		if err != nil {
			d.fail(&result, event, stage, err)
			continue
		}

		if d.options.DryRun {
			planned[key] = struct{}{}
		} else {
			id, err := d.db.Create(ctx, d.cfg.Collections.Interests, interestFields(interest))
			if err != nil {
				d.fail(&result, event, StageCreate, err)
				continue
			}
			interest.ID = id
		}

		result.recordCreated()
		d.logger.Debug("interest created",
			"id", interest.ID,
			"subject", interest.SubjectID,
			"object", interest.ObjectID,
			"title", interest.DisplayTitle,
			"status", interest.Status,
		)
	}

	d.logger.Info("reconciliation finished",
		"created", result.Created,
		"skipped", result.Skipped,
		"existing", result.Existing,
		"failed", result.Failed,
	)
	return result, nil
}

func (d *Driver) derive(ctx context.Context, event Event) (DerivedInterest, Stage, error) {
	res := d.resolver.Resolve(ctx, event.ObjectID)
	if res.Err != nil && d.options.StrictLookups {
		return DerivedInterest{}, StageLookup, res.Err
	}

	status, err := d.status.Derive(ctx, event.SubjectID, event.ObjectID)
	if err != nil {
		return DerivedInterest{}, StageStatus, err
	}

	counterparty := event.CounterpartyID
	if counterparty == "" {
		counterparty = res.OwnerID
	}

	return DerivedInterest{
		SubjectID:      event.SubjectID,
		ObjectID:       event.ObjectID,
		CounterpartyID: counterparty,
		DisplayTitle:   res.DisplayTitle,
		DisplayName:    res.DisplayName,
		CreatedAt:      event.Timestamp,
		Status:         status,
	}, "", nil
}

func (d *Driver) parseEvent(doc store.Document) Event {
	event := Event{ID: doc.ID}
	event.SubjectID, _ = firstString(doc, d.cfg.Fields.EventSubject)
	event.ObjectID, _ = firstString(doc, d.cfg.Fields.EventObject)
	event.CounterpartyID, _ = firstString(doc, d.cfg.Fields.EventCounterparty)
	event.Timestamp, _ = firstTime(doc, d.cfg.Fields.EventTimestamp)
	return event
}

func (d *Driver) fail(result *Result, event Event, stage Stage, err error) {
	eventErr := &EventError{
		EventID:   event.ID,
		SubjectID: event.SubjectID,
		ObjectID:  event.ObjectID,
		Stage:     stage,
		Err:       err,
	}
	d.logger.Warn("event skipped",
		"event", event.ID,
		"subject", event.SubjectID,
		"object", event.ObjectID,
		"stage", string(stage),
		"error", err,
	)
	result.recordFailed(eventErr)
}

// interestFields renders a derived interest as a document. A missing event
// timestamp falls back to the store clock.
func interestFields(interest DerivedInterest) map[string]any {
	var createdAt any = store.ServerTimestamp
	if !interest.CreatedAt.IsZero() {
		createdAt = interest.CreatedAt
	}
	return map[string]any{
		FieldSubject:      interest.SubjectID,
		FieldObject:       interest.ObjectID,
		FieldCounterparty: interest.CounterpartyID,
		FieldDisplayTitle: interest.DisplayTitle,
		FieldDisplayName:  interest.DisplayName,
		FieldCreatedAt:    createdAt,
		FieldStatus:       string(interest.Status),
	}
}
