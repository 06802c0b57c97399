package reconcile

import (
	"context"
	"fmt"

	"interestsync/internal/store"
)

// Summarize counts the derived interests by status. It is a reporting step
// and plays no part in correctness.
func Summarize(ctx context.Context, db store.Store, collection string) (Summary, error) {
	docs, err := db.Query(ctx, collection, nil, 0)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing interests: %w", err)
	}

	var summary Summary
	for _, doc := range docs {
		summary.Total++
		status, _ := firstString(doc, []string{FieldStatus})
		switch Status(status) {
		case StatusPending:
			summary.Pending++
		case StatusAccepted:
			summary.Accepted++
		default:
			summary.Other++
		}
	}
	return summary, nil
}

// Summarize counts the interests collection the driver writes to.
func (d *Driver) Summarize(ctx context.Context) (Summary, error) {
	return Summarize(ctx, d.db, d.cfg.Collections.Interests)
}

// ListInterests returns derived interests matching the optional filters.
func ListInterests(ctx context.Context, db store.Store, collection, subjectID, objectID string, status Status, limit int) ([]DerivedInterest, error) {
	var filters []store.Filter
	if subjectID != "" {
		filters = append(filters, store.Eq(FieldSubject, subjectID))
	}
	if objectID != "" {
		filters = append(filters, store.Eq(FieldObject, objectID))
	}
	if status != "" {
		filters = append(filters, store.Eq(FieldStatus, string(status)))
	}

	docs, err := db.Query(ctx, collection, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("listing interests: %w", err)
	}

	interests := make([]DerivedInterest, 0, len(docs))
	for _, doc := range docs {
		interests = append(interests, InterestFromDocument(doc))
	}
	return interests, nil
}

func InterestFromDocument(doc store.Document) DerivedInterest {
	interest := DerivedInterest{ID: doc.ID}
	interest.SubjectID, _ = firstString(doc, []string{FieldSubject})
	interest.ObjectID, _ = firstString(doc, []string{FieldObject})
	interest.CounterpartyID, _ = firstString(doc, []string{FieldCounterparty})
	interest.DisplayTitle, _ = firstString(doc, []string{FieldDisplayTitle})
	interest.DisplayName, _ = firstString(doc, []string{FieldDisplayName})
	interest.CreatedAt, _ = firstTime(doc, []string{FieldCreatedAt})
	status, _ := firstString(doc, []string{FieldStatus})
	interest.Status = Status(status)
	return interest
}
