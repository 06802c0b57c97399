package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interestsync/internal/store"
)

func newDriver(db store.Store, opts Options) *Driver {
	opts.Logger = quietLogger()
	return NewDriver(db, testConfig(), opts)
}

func seedBackendRole(t *testing.T, db store.Store) {
	t.Helper()
	seedWithID(t, db, "propuestas", "P1", map[string]any{"titulo": "Backend Role", "empleadorId": "E1"})
	seedWithID(t, db, "usuarios", "E1", map[string]any{"nombre": "Acme", "tipoUsuario": "empleador"})
}

func TestRun_PendingInterest(t *testing.T) {
	ctx := context.Background()
	db := newFaultyStore()
	seedBackendRole(t, db)
	t1 := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	seed(t, db, "likes", map[string]any{"postulanteId": "A", "propuestaId": "P1", "timestamp": t1})

	result, err := newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.TotalProcessed)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	got := interests[0]
	assert.Equal(t, "A", got.SubjectID)
	assert.Equal(t, "P1", got.ObjectID)
	assert.Equal(t, "E1", got.CounterpartyID)
	assert.Equal(t, "Backend Role", got.DisplayTitle)
	assert.Equal(t, "Acme", got.DisplayName)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, got.CreatedAt.Equal(t1), "createdAt should come from the event timestamp, got %s", got.CreatedAt)
}

func TestRun_AcceptedInterest(t *testing.T) {
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "matches", map[string]any{"idPostulante": "A", "idPropuesta": "P1"})

	_, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, StatusAccepted, interests[0].Status)
}

func TestRun_MatchOnOtherPairStaysPending(t *testing.T) {
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "matches", map[string]any{"idPostulante": "B", "idPropuesta": "P1"})
	seed(t, db, "matches", map[string]any{"idPostulante": "A", "idPropuesta": "P2"})

	_, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, StatusPending, interests[0].Status)
}

func TestRun_MissingProposalUsesPlaceholders(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "likes", like("A", "P9"))

	result, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, "Propuesta", interests[0].DisplayTitle)
	assert.Equal(t, "Empresa", interests[0].DisplayName)
	assert.Equal(t, StatusPending, interests[0].Status)
	assert.Empty(t, interests[0].CounterpartyID)
}

func TestRun_ProposalWithoutTitleOrOwner(t *testing.T) {
	db := newFaultyStore()
	seedWithID(t, db, "propuestas", "P2", map[string]any{"titulo": "", "estado": "activo"})
	seed(t, db, "likes", like("A", "P2"))

	_, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, "Propuesta", interests[0].DisplayTitle)
	assert.Equal(t, "Empresa", interests[0].DisplayName)
}

func TestRun_MissingOwnerUsesPlaceholder(t *testing.T) {
	db := newFaultyStore()
	seedWithID(t, db, "propuestas", "P1", map[string]any{"titulo": "Backend Role", "empleadorId": "E404"})
	seed(t, db, "likes", like("A", "P1"))

	_, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, "Backend Role", interests[0].DisplayTitle)
	assert.Equal(t, "Empresa", interests[0].DisplayName)
	assert.Equal(t, "E404", interests[0].CounterpartyID)
}

func TestRun_LegacyOwnerField(t *testing.T) {
	db := newFaultyStore()
	seedWithID(t, db, "propuestas", "P1", map[string]any{"titulo": "Backend Role", "idEmpleador": "E1"})
	seedWithID(t, db, "usuarios", "E1", map[string]any{"nombre": "Acme"})
	seed(t, db, "likes", map[string]any{"postulanteId": "A", "propuestaId": "P1", "idEmpleador": "E7"})

	_, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, "Acme", interests[0].DisplayName)
	assert.Equal(t, "E7", interests[0].CounterpartyID, "event counterparty wins over proposal owner")
}

func TestRun_DuplicateEventsCreateOneInterest(t *testing.T) {
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("A", "P1"))

	result, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Existing)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 3, result.TotalProcessed)
	assert.Len(t, listAll(t, db, testConfig()), 1)
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("B", "P1"))
	seed(t, db, "likes", like("B", "P9"))

	first, err := newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	after := interestKeys(listAll(t, db, testConfig()))

	second, err := newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Existing)
	assert.Equal(t, after, interestKeys(listAll(t, db, testConfig())))
}

func TestRun_ExistingInterestIsNotUpdated(t *testing.T) {
	ctx := context.Background()
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))

	_, err := newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)

	seed(t, db, "matches", map[string]any{"idPostulante": "A", "idPropuesta": "P1"})
	_, err = newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, StatusPending, interests[0].Status)
}

func TestRun_EventFetchFailureIsFatal(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "likes", like("A", "P1"))
	db.failQuery["likes"] = errUnavailable

	result, err := newDriver(db, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsTransient(err))
	assert.Zero(t, result.TotalProcessed)
	assert.Zero(t, db.createCalls)
}

func TestRun_CreateFailureIsRetriedNextRun(t *testing.T) {
	ctx := context.Background()
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("B", "P1"))
	db.failCreate = func(fields map[string]any) error {
		if fields[FieldSubject] == "A" {
			return errUnavailable
		}
		return nil
	}

	first, err := newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 1, first.Failed)
	require.Len(t, first.Errors, 1)
	assert.Equal(t, StageCreate, first.Errors[0].Stage)
	assert.Equal(t, "A", first.Errors[0].SubjectID)
	assert.ErrorIs(t, first.Errors[0], store.ErrTransient)

	db.failCreate = nil
	second, err := newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Created)
	assert.Equal(t, 1, second.Existing)
	assert.Len(t, listAll(t, db, testConfig()), 2)
}

func TestRun_DedupFailureSkipsEvent(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "likes", like("A", "P1"))
	db.failQuery["intereses"] = errUnavailable

	result, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, StageDedup, result.Errors[0].Stage)
	assert.Zero(t, db.createCalls)
}

func TestRun_StatusFailureSkipsEvent(t *testing.T) {
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	db.failQuery["matches"] = errUnavailable

	result, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, StageStatus, result.Errors[0].Stage)
	assert.Zero(t, db.createCalls)
}

func TestRun_TransientOwnerLookupDegrades(t *testing.T) {
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	db.failGet["usuarios/E1"] = errUnavailable

	result, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.Equal(t, "Backend Role", interests[0].DisplayTitle)
	assert.Equal(t, "Empresa", interests[0].DisplayName)
}

func TestRun_StrictLookupsSkipOnTransientFailure(t *testing.T) {
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("B", "P9"))
	db.failGet["propuestas/P1"] = errUnavailable

	result, err := newDriver(db, Options{StrictLookups: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created, "missing P9 still resolves to placeholders")
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, StageLookup, result.Errors[0].Stage)
}

func TestRun_MalformedEventSkipped(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "likes", map[string]any{"postulanteId": "A"})
	seed(t, db, "likes", like("B", "P1"))

	result, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, errors.Is(result.Errors[0], ErrMalformedEvent))
}

func TestRun_MissingTimestampUsesStoreClock(t *testing.T) {
	db := newFaultyStore()
	seed(t, db, "likes", like("A", "P1"))

	_, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)

	interests := listAll(t, db, testConfig())
	require.Len(t, interests, 1)
	assert.True(t, interests[0].CreatedAt.Equal(fixedNow), "got %s", interests[0].CreatedAt)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("B", "P1"))

	result, err := newDriver(db, Options{DryRun: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Existing)
	assert.Zero(t, db.createCalls)
	assert.Zero(t, db.Count("intereses"))
}

func TestRun_CancelledBetweenEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := newFaultyStore()
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("B", "P1"))
	db.afterCreate = cancel

	result, err := newDriver(db, Options{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Created)

	resumed, err := newDriver(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Created)
	assert.Equal(t, 1, resumed.Existing)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("B", "P1"))
	seed(t, db, "likes", like("C", "P9"))
	seed(t, db, "matches", map[string]any{"idPostulante": "B", "idPropuesta": "P1"})

	driver := newDriver(db, Options{})
	_, err := driver.Run(ctx)
	require.NoError(t, err)

	summary, err := driver.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Pending: 2, Accepted: 1}, summary)
}

func TestListInterestsFilters(t *testing.T) {
	ctx := context.Background()
	db := newFaultyStore()
	seedBackendRole(t, db)
	seed(t, db, "likes", like("A", "P1"))
	seed(t, db, "likes", like("B", "P1"))
	seed(t, db, "matches", map[string]any{"idPostulante": "B", "idPropuesta": "P1"})

	_, err := newDriver(db, Options{}).Run(ctx)
	require.NoError(t, err)

	accepted, err := ListInterests(ctx, db, "intereses", "", "P1", StatusAccepted, 0)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "B", accepted[0].SubjectID)

	bySubject, err := ListInterests(ctx, db, "intereses", "A", "", "", 0)
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
	assert.Equal(t, StatusPending, bySubject[0].Status)
}
