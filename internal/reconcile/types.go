package reconcile

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pendiente"
	StatusAccepted Status = "aceptado"
)

// Field names of derived interest documents.
const (
	FieldSubject      = "postulanteId"
	FieldObject       = "propuestaId"
	FieldCounterparty = "empleadorId"
	FieldDisplayTitle = "propuestaTitle"
	FieldDisplayName  = "empresa"
	FieldCreatedAt    = "fecha"
	FieldStatus       = "estado"
)

var ErrMalformedEvent = errors.New("event is missing subject or object id")

// Event is one raw expression of interest by SubjectID toward ObjectID.
// A zero Timestamp means the event carried none.
type Event struct {
	ID             string
	SubjectID      string
	ObjectID       string
	CounterpartyID string
	Timestamp      time.Time
}

type DerivedInterest struct {
	ID             string
	SubjectID      string
	ObjectID       string
	CounterpartyID string
	DisplayTitle   string
	DisplayName    string
	CreatedAt      time.Time
	Status         Status
}

// Resolution carries the display fields looked up for a proposal. Err holds
// the first transient lookup failure that was papered over with a
// placeholder; missing documents never set it.
type Resolution struct {
	DisplayTitle string
	OwnerID      string
	DisplayName  string
	Err          error
}

type Stage string

const (
	StageParse  Stage = "parse"
	StageDedup  Stage = "dedup"
	StageLookup Stage = "lookup"
	StageStatus Stage = "status"
	StageCreate Stage = "create"
)

// EventError records why one event was skipped.
type EventError struct {
	EventID   string
	SubjectID string
	ObjectID  string
	Stage     Stage
	Err       error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event %s (%s -> %s) at %s: %v", e.EventID, e.SubjectID, e.ObjectID, e.Stage, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// Result is the outcome of one pass. Skipped = Existing + Failed and
// TotalProcessed = Created + Skipped.
type Result struct {
	Created        int
	Skipped        int
	Existing       int
	Failed         int
	TotalProcessed int
	Errors         []*EventError
}

func (r *Result) recordCreated() {
	r.Created++
	r.TotalProcessed++
}

func (r *Result) recordExisting() {
	r.Existing++
	r.Skipped++
	r.TotalProcessed++
}

func (r *Result) recordFailed(err *EventError) {
	r.Failed++
	r.Skipped++
	r.TotalProcessed++
	r.Errors = append(r.Errors, err)
}

type Summary struct {
	Total    int
	Pending  int
	Accepted int
	Other    int
}
