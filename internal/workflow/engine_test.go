package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/arnavshah/workforce-api/internal/logger"
	"github.com/arnavshah/workforce-api/internal/notify"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/schedule"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/internal/testdb"
	"github.com/arnavshah/workforce-api/internal/timeouts"
	"github.com/arnavshah/workforce-api/pkg/models"
)

var policy = timeouts.Policy{Timeout: 5 * time.Second, Backoff: time.Millisecond}

type env struct {
	engine *Engine
	notes  *notify.Dispatcher
	fx     *testdb.Fixture
	db     *gorm.DB
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testdb.Open(t)
	fx := testdb.Seed(t, db)
	scopes := scope.NewResolver(fx.Store)
	d := notify.NewDispatcher(fx.Store, scopes, logger.Nop())
	svc, err := schedule.NewService(fx.Store, scopes, d, logger.Nop(), schedule.Options{Policy: policy})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return &env{
		engine: NewEngine(fx.Store, scopes, d, svc, policy, logger.Nop()),
		notes:  d,
		fx:     fx,
		db:     db,
	}
}

func (e *env) leave(t *testing.T, employeeID string) *models.Request {
	t.Helper()
	r, err := e.engine.Submit(context.Background(), e.fx.P(employeeID), SubmitInput{
		Type: models.RequestLeave, StartDate: "2024-04-01", EndDate: "2024-04-03", Reason: "family visit",
	})
	require.NoError(t, err)
	return r
}

func TestLeaveApproval_Scenario(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	r := e.leave(t, testdb.IncomingAlice)
	assert.Equal(t, models.RequestPending, r.Status)
	assert.Equal(t, "u-"+testdb.IncomingAlice, r.SubmittedBy)

	_, err := e.engine.Approve(ctx, e.fx.P(testdb.ProcessLead), r.ID)
	require.ErrorIs(t, err, models.ErrAccessDenied)

	stored, err := e.fx.Store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)

	approved, err := e.engine.Approve(ctx, e.fx.P(testdb.IncomingLead), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	require.NotNil(t, approved.ResolvedBy)
	assert.Equal(t, "u-"+testdb.IncomingLead, *approved.ResolvedBy)
	assert.NotNil(t, approved.ResolvedAt)

	list, err := e.notes.List(ctx, e.fx.P(testdb.IncomingAlice), false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationSuccess, list[0].Type)
	require.NotNil(t, list[0].RequestID)
	assert.Equal(t, r.ID, *list[0].RequestID)
}

func TestResolve_TerminalStatesNeverChange(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	lead := e.fx.P(testdb.IncomingLead)

	approved := e.leave(t, testdb.IncomingAlice)
	_, err := e.engine.Approve(ctx, lead, approved.ID)
	require.NoError(t, err)

	rejected := e.leave(t, testdb.IncomingBob)
	_, err = e.engine.Reject(ctx, lead, rejected.ID, nil)
	require.NoError(t, err)

	for _, id := range []string{approved.ID, rejected.ID} {
		_, err = e.engine.Approve(ctx, lead, id)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		_, err = e.engine.Reject(ctx, lead, id, nil)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	}

	r, err := e.fx.Store.GetRequest(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, r.Status)
	r, err = e.fx.Store.GetRequest(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, r.Status)

	// one notification per transition, none for the refused calls
	list, err := e.notes.List(ctx, e.fx.P(testdb.IncomingAlice), false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestResolve_ConcurrentApproveAndReject(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	r := e.leave(t, testdb.IncomingAlice)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = e.engine.Approve(ctx, e.fx.P(testdb.IncomingLead), r.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = e.engine.Reject(ctx, e.fx.P(testdb.QualityHead), r.ID, nil)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := e.fx.Store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status.Terminal())

	list, err := e.notes.List(ctx, e.fx.P(testdb.IncomingAlice), false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestResolve_SelfResolutionDenied(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	r := e.leave(t, testdb.IncomingLead)
	_, err := e.engine.Approve(ctx, e.fx.P(testdb.IncomingLead), r.ID)
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	_, err = e.engine.Approve(ctx, e.fx.P(testdb.QualityHead), r.ID)
	assert.NoError(t, err)
}

func TestReject_RecordsWhetherNotesWereGiven(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	lead := e.fx.P(testdb.IncomingLead)

	withNotes := e.leave(t, testdb.IncomingAlice)
	notes := "peak inspection week"
	got, err := e.engine.Reject(ctx, lead, withNotes.ID, &notes)
	require.NoError(t, err)
	assert.True(t, got.NotesProvided)
	require.NotNil(t, got.Notes)
	assert.Equal(t, notes, *got.Notes)

	without := e.leave(t, testdb.IncomingBob)
	got, err = e.engine.Reject(ctx, lead, without.ID, nil)
	require.NoError(t, err)
	assert.False(t, got.NotesProvided)
	assert.Nil(t, got.Notes)

	list, err := e.notes.List(ctx, e.fx.P(testdb.IncomingAlice), false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationWarning, list[0].Type)
	assert.Contains(t, list[0].Message, notes)
}

func TestApprove_ShiftChangeUpdatesSchedule(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	r, err := e.engine.Submit(ctx, e.fx.P(testdb.IncomingAlice), SubmitInput{
		Type: models.RequestShiftChange, StartDate: "2024-04-02", ShiftID: "night",
	})
	require.NoError(t, err)

	_, err = e.engine.Approve(ctx, e.fx.P(testdb.IncomingLead), r.ID)
	require.NoError(t, err)

	a, err := e.fx.Store.GetAssignment(ctx, testdb.IncomingAlice, "2024-04-02")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "night", a.ShiftID)
	assert.Equal(t, r.ID, *a.RequestID)
}

func TestApprove_FailedReconciliationKeepsPending(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.db.Model(&models.Employee{}).Where("id = ?", testdb.IncomingBob).
		Update("shift_type", nil).Error)

	r, err := e.engine.Submit(ctx, e.fx.P(testdb.IncomingAlice), SubmitInput{
		Type: models.RequestShiftSwap, StartDate: "2024-04-02", SwapWithEmployeeID: testdb.IncomingBob,
	})
	require.NoError(t, err)

	_, err = e.engine.Approve(ctx, e.fx.P(testdb.IncomingLead), r.ID)
	require.ErrorIs(t, err, models.ErrIncompleteSchedule)

	stored, err := e.fx.Store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)

	list, err := e.notes.List(ctx, e.fx.P(testdb.IncomingAlice), false)
	require.NoError(t, err)
	assert.Empty(t, list)

	a, err := e.fx.Store.GetAssignment(ctx, testdb.IncomingAlice, "2024-04-02")
	require.NoError(t, err)
	assert.Nil(t, a)
}

type stalled struct {
	mu    sync.Mutex
	calls int
}

func (s *stalled) Reconcile(ctx context.Context, _ *repository.Store, _ *models.Request, _ time.Time) ([]models.ShiftOverride, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestApprove_TimeoutIsRetriedThenSurfaced(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	slow := &stalled{}
	scopes := scope.NewResolver(e.fx.Store)
	engine := NewEngine(e.fx.Store, scopes, e.notes, slow,
		timeouts.Policy{Timeout: 50 * time.Millisecond, Backoff: time.Millisecond}, logger.Nop())

	r, err := engine.Submit(ctx, e.fx.P(testdb.IncomingAlice), SubmitInput{
		Type: models.RequestShiftChange, StartDate: "2024-04-02", ShiftID: "night",
	})
	require.NoError(t, err)

	_, err = engine.Approve(ctx, e.fx.P(testdb.IncomingLead), r.ID)
	require.ErrorIs(t, err, models.ErrTimeout)
	var de *models.Error
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Retryable())
	assert.Equal(t, 2, slow.calls)

	stored, err := e.fx.Store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
}

func TestSubmit_Validation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	alice := e.fx.P(testdb.IncomingAlice)

	cases := []struct {
		name string
		in   SubmitInput
		kind error
	}{
		{"unknown type", SubmitInput{Type: "sabbatical", StartDate: "2024-04-01"}, models.ErrInvariantViolation},
		{"bad date", SubmitInput{Type: models.RequestLeave, StartDate: "April 1"}, models.ErrInvariantViolation},
		{"end before start", SubmitInput{Type: models.RequestLeave, StartDate: "2024-04-03", EndDate: "2024-04-01"}, models.ErrInvariantViolation},
		{"overtime without hours", SubmitInput{Type: models.RequestOvertime, StartDate: "2024-04-01"}, models.ErrInvariantViolation},
		{"overtime too long", SubmitInput{Type: models.RequestOvertime, StartDate: "2024-04-01", Hours: 13}, models.ErrInvariantViolation},
		{"shift change without shift", SubmitInput{Type: models.RequestShiftChange, StartDate: "2024-04-01"}, models.ErrInvariantViolation},
		{"shift change to unknown shift", SubmitInput{Type: models.RequestShiftChange, StartDate: "2024-04-01", ShiftID: "graveyard"}, models.ErrNotFound},
		{"swap with self", SubmitInput{Type: models.RequestShiftSwap, StartDate: "2024-04-01", SwapWithEmployeeID: testdb.IncomingAlice}, models.ErrInvariantViolation},
		{"swap across divisions", SubmitInput{Type: models.RequestShiftSwap, StartDate: "2024-04-01", SwapWithEmployeeID: testdb.LineDave}, models.ErrInvariantViolation},
		{"for a colleague", SubmitInput{EmployeeID: testdb.IncomingBob, Type: models.RequestLeave, StartDate: "2024-04-01"}, models.ErrAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.engine.Submit(ctx, alice, tc.in)
			assert.ErrorIs(t, err, tc.kind)
		})
	}

	ot, err := e.engine.Submit(ctx, alice, SubmitInput{Type: models.RequestOvertime, StartDate: "2024-04-01", Hours: 2.5})
	require.NoError(t, err)
	require.NotNil(t, ot.Hours)
	assert.Equal(t, 2.5, *ot.Hours)
}

func TestSubmit_OnBehalfAndInactive(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	r, err := e.engine.Submit(ctx, e.fx.P(testdb.IncomingLead), SubmitInput{
		EmployeeID: testdb.IncomingBob, Type: models.RequestLeave, StartDate: "2024-04-01",
	})
	require.NoError(t, err)
	assert.Equal(t, testdb.IncomingBob, r.EmployeeID)
	assert.Equal(t, "u-"+testdb.IncomingLead, r.SubmittedBy)

	_, err = e.engine.Submit(ctx, e.fx.P(testdb.IncomingLead), SubmitInput{
		EmployeeID: testdb.ProcessCarol, Type: models.RequestLeave, StartDate: "2024-04-01",
	})
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	_, err = e.engine.Submit(ctx, e.fx.Admin, SubmitInput{Type: models.RequestLeave, StartDate: "2024-04-01"})
	assert.ErrorIs(t, err, models.ErrInvariantViolation)

	require.NoError(t, e.db.Model(&models.Employee{}).Where("id = ?", testdb.ProcessCarol).
		Update("is_active", false).Error)
	_, err = e.engine.Submit(ctx, e.fx.Admin, SubmitInput{
		EmployeeID: testdb.ProcessCarol, Type: models.RequestLeave, StartDate: "2024-04-01",
	})
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
}

func TestReadScope(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	r := e.leave(t, testdb.IncomingAlice)
	e.leave(t, testdb.IncomingBob)
	e.leave(t, testdb.ProcessCarol)

	_, err := e.engine.Get(ctx, e.fx.P(testdb.ProcessCarol), r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = e.engine.Get(ctx, e.fx.P(testdb.ProcessLead), r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	got, err := e.engine.Get(ctx, e.fx.P(testdb.QualityHead), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	mine, err := e.engine.List(ctx, e.fx.P(testdb.IncomingAlice), repository.RequestQuery{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].ID)

	dept, err := e.engine.List(ctx, e.fx.P(testdb.IncomingLead), repository.RequestQuery{Status: models.RequestPending})
	require.NoError(t, err)
	assert.Len(t, dept, 2)

	all, err := e.engine.List(ctx, e.fx.P(testdb.QualityHead), repository.RequestQuery{Type: models.RequestLeave})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := e.engine.List(ctx, e.fx.P(testdb.LineDave), repository.RequestQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
