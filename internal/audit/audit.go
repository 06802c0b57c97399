// Package audit reports on the health of the proposal collection without
// writing anything.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"interestsync/internal/config"
	"interestsync/internal/store"
)

type Reader interface {
	Get(ctx context.Context, collection, id string) (*store.Document, error)
	Query(ctx context.Context, collection string, filters []store.Filter, limit int) ([]store.Document, error)
}

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeMissingState       = "missing_state"
	codeMissingValidation  = "missing_validation"
	codeMissingCoordinates = "missing_coordinates"
	codeMissingOwner       = "missing_owner"
	codeDanglingOwner      = "dangling_owner"
	codeOwnerAliasGap      = "owner_alias_gap"
)

// Proposal field names and values inspected by the audit.
const (
	fieldState      = "estado"
	fieldValidation = "estadoValidacion"
	fieldLatitude   = "latitud"
	fieldLongitude  = "longitud"

	stateActive        = "activo"
	validationApproved = "aprobada"
	validationPending  = "pendiente"
	validationRejected = "rechazada"

	noState      = "sin_estado"
	noValidation = "sin_validacion"
)

var (
	unifiedFields = []string{"carrera", "certificacion", "experiencia"}
	legacyFields  = []string{"carreraRequerida", "certificacionRequerida", "experienciaMinima"}
)

type Issue struct {
	Severity   Severity
	Code       string
	Message    string
	Collection string
	DocumentID string
	Title      string
}

type Counts struct {
	Total           int
	ByState         map[string]int
	ByValidation    map[string]int
	Visible         int
	ActivePending   int
	ActiveRejected  int
	Inactive        int
	NoState         int
	NoValidation    int
	Unified         int
	Legacy          int
	WithCoordinates int
}

type Report struct {
	Counts  Counts
	Visible []string
	Issues  []Issue
}

func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Run inspects every proposal and the owner each one points at.
func Run(ctx context.Context, cfg *config.ProjectConfig, db Reader) (*Report, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("store is required")
	}

	proposals, err := db.Query(ctx, cfg.Collections.Proposals, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}

	report := &Report{Counts: Counts{
		ByState:      make(map[string]int),
		ByValidation: make(map[string]int),
	}}
	owners := make(map[string]bool)

	for _, doc := range proposals {
		report.Counts.Total++
		title := stringField(doc, cfg.Fields.ProposalTitle...)
		issue := func(severity Severity, code, message string) {
			report.Issues = append(report.Issues, Issue{
				Severity:   severity,
				Code:       code,
				Message:    message,
				Collection: cfg.Collections.Proposals,
				DocumentID: doc.ID,
				Title:      title,
			})
		}

		state := stringField(doc, fieldState)
		validation := stringField(doc, fieldValidation)
		report.Counts.ByState[orDefault(state, noState)]++
		report.Counts.ByValidation[orDefault(validation, noValidation)]++

		switch {
		case state == "":
			report.Counts.NoState++
		case state == stateActive:
			switch validation {
			case "":
				report.Counts.NoValidation++
			case validationApproved:
				report.Counts.Visible++
				report.Visible = append(report.Visible, doc.ID)
			case validationPending:
				report.Counts.ActivePending++
			case validationRejected:
				report.Counts.ActiveRejected++
			}
		default:
			report.Counts.Inactive++
		}

		if state == "" {
			issue(SeverityError, codeMissingState, "proposal has no state")
		}
		if validation == "" {
			issue(SeverityError, codeMissingValidation, "proposal has no validation state")
		}

		if anyTruthy(doc, unifiedFields) {
			report.Counts.Unified++
		}
		if anyTruthy(doc, legacyFields) {
			report.Counts.Legacy++
		}
		if truthyField(doc, fieldLatitude) && truthyField(doc, fieldLongitude) {
			report.Counts.WithCoordinates++
		} else {
			issue(SeverityWarn, codeMissingCoordinates, "proposal has no coordinates")
		}

		ownerID := stringField(doc, cfg.Fields.ProposalOwner...)
		if ownerID == "" {
			issue(SeverityWarn, codeMissingOwner, "proposal has no owner id; interests will use the placeholder name")
			continue
		}
		for _, alias := range cfg.Fields.ProposalOwner {
			if stringField(doc, alias) == "" {
				issue(SeverityWarn, codeOwnerAliasGap, fmt.Sprintf("owner id not mirrored to %s", alias))
				break
			}
		}

		found, seen := owners[ownerID]
		if !seen {
			_, err := db.Get(ctx, cfg.Collections.Owners, ownerID)
			switch {
			case err == nil:
				found = true
			case errors.Is(err, store.ErrNotFound):
				found = false
			default:
				return nil, fmt.Errorf("get owner %s: %w", ownerID, err)
			}
			owners[ownerID] = found
		}
		if !found {
			issue(SeverityError, codeDanglingOwner, fmt.Sprintf("owner %s does not exist", ownerID))
		}
	}

	sort.Strings(report.Visible)
	return report, nil
}

func stringField(doc store.Document, names ...string) string {
	for _, name := range names {
		value, _ := doc.Field(name)
		if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func anyTruthy(doc store.Document, names []string) bool {
	for _, name := range names {
		if truthyField(doc, name) {
			return true
		}
	}
	return false
}

// truthyField treats empty strings, zero numbers, false and null as unset.
func truthyField(doc store.Document, name string) bool {
	value, ok := doc.Field(name)
	if !ok || value == nil {
		return false
	}
	switch v := value.(type) {
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	return true
}
