package schedule

import (
	"context"
	"time"

	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/pkg/models"
	"github.com/arnavshah/workforce-api/pkg/scheduler"
)

// Reconcile applies an approved shift_change or shift_swap to the stored
// assignments through tx. Other request types leave the schedule alone.
// It returns the overrides the new ones superseded.
func (s *Service) Reconcile(ctx context.Context, tx *repository.Store, req *models.Request, at time.Time) ([]models.ShiftOverride, error) {
	if !req.Type.ChangesSchedule() {
		return nil, nil
	}
	dates, err := models.DateRange(req.StartDate, req.LastDate())
	if err != nil {
		return nil, models.InvariantViolation(err.Error(), req.ID)
	}

	var superseded []models.ShiftOverride
	apply := func(employeeID, date, shiftID string) error {
		losers, err := s.applyOverride(ctx, tx, req, employeeID, date, shiftID, at)
		superseded = append(superseded, losers...)
		return err
	}

	switch req.Type {
	case models.RequestShiftChange:
		if req.ShiftID == nil {
			return nil, models.InvariantViolation("shift_change has no shift", req.ID)
		}
		sh, err := tx.GetShift(ctx, *req.ShiftID)
		if err != nil {
			return nil, err
		}
		if !sh.IsActive {
			return nil, models.InvariantViolation("shift is not active", sh.ID)
		}
		for _, d := range dates {
			if err := apply(req.EmployeeID, d, sh.ID); err != nil {
				return nil, err
			}
		}

	case models.RequestShiftSwap:
		if req.SwapWithEmployeeID == nil {
			return nil, models.InvariantViolation("shift_swap has no partner", req.ID)
		}
		a, b := req.EmployeeID, *req.SwapWithEmployeeID
		gen, err := s.resolver(ctx, tx, a, b)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			// read both sides before writing either
			shiftA, err := current(ctx, tx, gen, a, d)
			if err != nil {
				return nil, err
			}
			shiftB, err := current(ctx, tx, gen, b, d)
			if err != nil {
				return nil, err
			}
			if err := apply(a, d, shiftB); err != nil {
				return nil, err
			}
			if err := apply(b, d, shiftA); err != nil {
				return nil, err
			}
		}
	}
	return superseded, nil
}

// applyOverride pins (employee, date) to shiftID. The assignment row is
// written first so concurrent approvals for the same pair serialize on it.
func (s *Service) applyOverride(ctx context.Context, tx *repository.Store, req *models.Request, employeeID, date, shiftID string, at time.Time) ([]models.ShiftOverride, error) {
	requestID := req.ID
	a := &models.Assignment{
		ID:         models.AssignmentID(employeeID, date),
		EmployeeID: employeeID,
		Date:       date,
		ShiftID:    shiftID,
		Source:     models.SourceOverride,
		RequestID:  &requestID,
	}
	if err := tx.UpsertOverrideAssignment(ctx, a); err != nil {
		return nil, err
	}

	o := &models.ShiftOverride{
		ID:         models.NewID(),
		RequestID:  req.ID,
		EmployeeID: employeeID,
		Date:       date,
		ShiftID:    shiftID,
		ApprovedAt: at,
		CreatedAt:  at,
	}
	losers, err := tx.SupersedeOverrides(ctx, employeeID, date, o.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range losers {
		s.log.Warn().Str("employee", employeeID).Str("date", date).
			Str("superseded_request", l.RequestID).Str("winning_request", req.ID).
			Msg("override superseded")
	}
	if err := tx.CreateOverride(ctx, o); err != nil {
		return nil, err
	}
	return losers, nil
}

// resolver builds a scheduler over the given employees to resolve their
// default shifts when no assignment is stored yet
func (s *Service) resolver(ctx context.Context, tx *repository.Store, ids ...string) (*scheduler.Scheduler, error) {
	emps, err := tx.EmployeesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	input := make([]scheduler.Employee, 0, len(ids))
	for _, id := range ids {
		e, ok := emps[id]
		if !ok {
			return nil, models.NotFound("employee", id)
		}
		se := scheduler.Employee{ID: e.ID}
		if e.ShiftType != nil {
			se.ShiftType = *e.ShiftType
		}
		input = append(input, se)
	}
	shifts, err := s.catalog(ctx, tx)
	if err != nil {
		return nil, err
	}
	return scheduler.NewScheduler(input, shifts), nil
}

func current(ctx context.Context, tx *repository.Store, gen *scheduler.Scheduler, employeeID, date string) (string, error) {
	a, err := tx.GetAssignment(ctx, employeeID, date)
	if err != nil {
		return "", err
	}
	if a != nil {
		return a.ShiftID, nil
	}
	shiftID, _, _, reason, ok := gen.Resolve(employeeID, date)
	if !ok {
		return "", models.IncompleteSchedule("cannot resolve current shift: "+reason, employeeID, date)
	}
	return shiftID, nil
}
