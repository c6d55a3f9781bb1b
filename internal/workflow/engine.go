// Package workflow runs the request state machine: pending requests are
// approved or rejected exactly once, schedule-changing approvals are applied
// to the schedule, and the requester is told about the outcome.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnavshah/workforce-api/internal/metrics"
	"github.com/arnavshah/workforce-api/internal/notify"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/internal/timeouts"
	"github.com/arnavshah/workforce-api/pkg/models"
)

// MaxOvertimeHours caps a single overtime request
const MaxOvertimeHours = 12

// Reconciler applies an approved request to the stored schedule inside tx
type Reconciler interface {
	Reconcile(ctx context.Context, tx *repository.Store, req *models.Request, at time.Time) ([]models.ShiftOverride, error)
}

type Engine struct {
	store     *repository.Store
	scopes    *scope.Resolver
	notifier  *notify.Dispatcher
	schedules Reconciler
	policy    timeouts.Policy
	log       zerolog.Logger
	now       func() time.Time
}

func NewEngine(store *repository.Store, scopes *scope.Resolver, notifier *notify.Dispatcher, schedules Reconciler, policy timeouts.Policy, log zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		scopes:    scopes,
		notifier:  notifier,
		schedules: schedules,
		policy:    policy,
		log:       log.With().Str("component", "workflow").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type SubmitInput struct {
	// EmployeeID defaults to the submitting principal's own employee record
	EmployeeID         string
	Type               models.RequestType
	StartDate          string
	EndDate            string
	ShiftID            string
	SwapWithEmployeeID string
	Hours              float64
	Reason             string
}

// Submit files a pending request for the principal or, for managers, on
// behalf of an employee in their write-scope.
func (e *Engine) Submit(ctx context.Context, p models.Principal, in SubmitInput) (*models.Request, error) {
	sc, err := e.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	employeeID := in.EmployeeID
	if employeeID == "" {
		employeeID = p.EmployeeID
	}
	if employeeID == "" {
		return nil, models.InvariantViolation("principal has no employee record; employee_id is required", p.UserID)
	}
	emp, err := e.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if employeeID != p.EmployeeID && !sc.CanWriteEmployee(emp) {
		return nil, models.AccessDenied("cannot submit requests for this employee", employeeID)
	}
	if !emp.IsActive {
		return nil, models.InvariantViolation("employee is inactive", employeeID)
	}

	now := e.now()
	r := &models.Request{
		ID:          models.NewID(),
		EmployeeID:  emp.ID,
		SubmittedBy: p.UserID,
		Type:        in.Type,
		Status:      models.RequestPending,
		StartDate:   in.StartDate,
		Reason:      strings.TrimSpace(in.Reason),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.payload(ctx, r, emp, in); err != nil {
		return nil, err
	}
	if err := e.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	e.log.Info().Str("request", r.ID).Str("employee", r.EmployeeID).Str("type", string(r.Type)).
		Str("submitted_by", p.UserID).Msg("request submitted")
	return r, nil
}

// payload validates the type-specific fields and copies them onto r
func (e *Engine) payload(ctx context.Context, r *models.Request, emp *models.Employee, in SubmitInput) error {
	if !in.Type.Valid() {
		return models.InvariantViolation("unknown request type", string(in.Type))
	}
	end := in.StartDate
	if in.EndDate != "" {
		end = in.EndDate
		r.EndDate = &end
	}
	if _, err := models.DateRange(in.StartDate, end); err != nil {
		return models.InvariantViolation(err.Error())
	}

	switch in.Type {
	case models.RequestShiftChange:
		if in.ShiftID == "" {
			return models.InvariantViolation("shift_change requires shift_id")
		}
		sh, err := e.store.GetShift(ctx, in.ShiftID)
		if err != nil {
			return err
		}
		if !sh.IsActive {
			return models.InvariantViolation("shift is not active", sh.ID)
		}
		r.ShiftID = &sh.ID

	case models.RequestShiftSwap:
		if in.SwapWithEmployeeID == "" {
			return models.InvariantViolation("shift_swap requires swap_with_employee_id")
		}
		if in.SwapWithEmployeeID == emp.ID {
			return models.InvariantViolation("cannot swap shifts with yourself", emp.ID)
		}
		partner, err := e.store.GetEmployee(ctx, in.SwapWithEmployeeID)
		if err != nil {
			return err
		}
		if !partner.IsActive {
			return models.InvariantViolation("swap partner is inactive", partner.ID)
		}
		if partner.DivisionID != emp.DivisionID {
			return models.InvariantViolation("swap partner is in another division", partner.ID)
		}
		r.SwapWithEmployeeID = &partner.ID

	case models.RequestOvertime:
		if in.Hours <= 0 || in.Hours > MaxOvertimeHours {
			return models.InvariantViolation(fmt.Sprintf("overtime hours must be in (0, %d]", MaxOvertimeHours))
		}
		hours := in.Hours
		r.Hours = &hours
	}
	return nil
}

// Get returns a request the principal may read; others look missing
func (e *Engine) Get(ctx context.Context, p models.Principal, id string) (*models.Request, error) {
	sc, err := e.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	r, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	emp, err := e.store.GetEmployee(ctx, r.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !sc.CanReadEmployee(emp) {
		return nil, models.NotFound("request", id)
	}
	return r, nil
}

func (e *Engine) List(ctx context.Context, p models.Principal, q repository.RequestQuery) ([]models.Request, error) {
	sc, err := e.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	return e.store.ListRequests(ctx, sc.Employees(), q)
}

func (e *Engine) Approve(ctx context.Context, p models.Principal, id string) (*models.Request, error) {
	return e.resolve(ctx, p, id, models.RequestApproved, nil)
}

// Reject records notes when given; a nil notes pointer means none were supplied
func (e *Engine) Reject(ctx context.Context, p models.Principal, id string, notes *string) (*models.Request, error) {
	return e.resolve(ctx, p, id, models.RequestRejected, notes)
}

func (e *Engine) resolve(ctx context.Context, p models.Principal, id string, to models.RequestStatus, notes *string) (*models.Request, error) {
	sc, err := e.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	emp, err := e.store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !sc.CanWriteEmployee(emp) {
		return nil, models.AccessDenied("request is outside your scope", id, req.EmployeeID)
	}
	if p.EmployeeID != "" && p.EmployeeID == req.EmployeeID {
		return nil, models.AccessDenied("cannot resolve your own request", id)
	}
	if req.Status.Terminal() {
		return nil, models.InvalidTransition(req.Status, to, id)
	}

	var (
		sent       *models.Notification
		superseded []models.ShiftOverride
	)
	err = timeouts.Run(ctx, e.policy, "resolve request", e.log, func(ctx context.Context, attempt int) error {
		sent, superseded = nil, nil
		return e.store.Transaction(ctx, func(tx *repository.Store) error {
			at := e.now()
			ok, err := tx.TransitionRequest(ctx, id, repository.Resolution{
				Status:     to,
				ResolvedBy: p.UserID,
				Notes:      notes,
				At:         at,
			})
			if err != nil {
				return err
			}
			if !ok {
				cur, err := tx.GetRequest(ctx, id)
				if err != nil {
					return err
				}
				// a timed-out attempt may have committed before the deadline hit
				if attempt > 1 && cur.Status == to && cur.ResolvedBy != nil && *cur.ResolvedBy == p.UserID {
					return nil
				}
				return models.InvalidTransition(cur.Status, to, id)
			}

			if to == models.RequestApproved && req.Type.ChangesSchedule() {
				superseded, err = e.schedules.Reconcile(ctx, tx, req, at)
				if err != nil {
					return err
				}
			}

			sent, err = e.notifier.Deliver(ctx, tx, outcome(req, to, notes))
			return err
		})
	})
	if err != nil {
		if models.KindOf(err) != models.KindInvalidTransition {
			e.log.Error().Err(err).Str("request", id).Str("to", string(to)).Msg("request resolution failed")
		}
		return nil, err
	}

	metrics.RequestTransitions.WithLabelValues(string(req.Type), string(to)).Inc()
	if sent != nil {
		metrics.NotificationsSent.WithLabelValues(string(sent.Type)).Inc()
	}
	e.log.Info().Str("request", id).Str("type", string(req.Type)).Str("status", string(to)).
		Str("resolved_by", p.UserID).Int("superseded", len(superseded)).Msg("request resolved")
	return e.store.GetRequest(ctx, id)
}

func outcome(req *models.Request, to models.RequestStatus, notes *string) notify.Message {
	kind := strings.ReplaceAll(string(req.Type), "_", " ")
	period := req.StartDate
	if last := req.LastDate(); last != req.StartDate {
		period += " to " + last
	}
	msg := notify.Message{
		RecipientID: req.EmployeeID,
		RequestID:   req.ID,
	}
	if to == models.RequestApproved {
		msg.Type = models.NotificationSuccess
		msg.Title = "Request approved"
		msg.Body = fmt.Sprintf("Your %s request for %s was approved.", kind, period)
		return msg
	}
	msg.Type = models.NotificationWarning
	msg.Title = "Request rejected"
	msg.Body = fmt.Sprintf("Your %s request for %s was rejected.", kind, period)
	if notes != nil && *notes != "" {
		msg.Body += " Notes: " + *notes
	}
	return msg
}
