// Package schedule persists generated schedules, applies approved shift
// overrides and publishes schedules to the people on them.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"

	"github.com/arnavshah/workforce-api/internal/metrics"
	"github.com/arnavshah/workforce-api/internal/notify"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/internal/timeouts"
	"github.com/arnavshah/workforce-api/pkg/models"
	"github.com/arnavshah/workforce-api/pkg/scheduler"
)

// MaxPeriodDays bounds a single generation run
const MaxPeriodDays = 62


type Options struct {
	CacheTTL time.Duration
	Policy   timeouts.Policy
}

type Service struct {
	store    *repository.Store
	scopes   *scope.Resolver
	notifier *notify.Dispatcher
	shifts   *ristretto.Cache[string, []models.Shift]
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	// catalog entries are keyed by generation; CreateShift bumps it
	catalogGen atomic.Uint64
}

func NewService(store *repository.Store, scopes *scope.Resolver, notifier *notify.Dispatcher, log zerolog.Logger, opts Options) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []models.Shift]{
		NumCounters: 100,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("shift cache: %w", err)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Service{
		store:    store,
		scopes:   scopes,
		notifier: notifier,
		shifts:   cache,
		opts:     opts,
		log:      log.With().Str("component", "schedule").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Close() {
	s.shifts.Close()
}

// Shifts returns the active shift catalog through the read-through cache
func (s *Service) Shifts(ctx context.Context) ([]models.Shift, error) {
	return s.catalog(ctx, s.store)
}

func (s *Service) catalogKey() string {
	return "catalog/" + strconv.FormatUint(s.catalogGen.Load(), 10)
}

// catalog reads through the cache using st, so it is safe inside a transaction
func (s *Service) catalog(ctx context.Context, st *repository.Store) ([]models.Shift, error) {
	key := s.catalogKey()
	if shifts, ok := s.shifts.Get(key); ok {
		return shifts, nil
	}
	shifts, err := st.ListShifts(ctx)
	if err != nil {
		return nil, err
	}
	s.shifts.SetWithTTL(key, shifts, int64(len(shifts))+1, s.opts.CacheTTL)
	s.shifts.Wait()
	return shifts, nil
}

type ShiftInput struct {
	ID            string
	Name          string
	Type          models.ShiftType
	StartTime     string
	EndTime       string
	DurationHours float64
	Color         string
}

// CreateShift adds a catalog entry. Admin only.
func (s *Service) CreateShift(ctx context.Context, p models.Principal, in ShiftInput) (*models.Shift, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	if !sc.IsAdmin() {
		return nil, models.AccessDenied("only administrators manage the shift catalog", in.ID)
	}
	if !in.Type.Valid() {
		return nil, models.InvariantViolation("unknown shift type", string(in.Type))
	}
	if in.DurationHours <= 0 {
		in.DurationHours = 8
	}
	sh := &models.Shift{
		ID:            in.ID,
		Name:          in.Name,
		Type:          in.Type,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		DurationHours: in.DurationHours,
		Color:         in.Color,
		IsActive:      true,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateShift(ctx, sh); err != nil {
		return nil, err
	}
	// a reader that loaded the old catalog can only store it under the old key
	s.catalogGen.Add(1)
	return sh, nil
}

type GenerateInput struct {
	StartDate    string
	EndDate      string
	DivisionID   string
	DepartmentID string
}

// GenerateResult is returned in full even when some employees could not be scheduled
type GenerateResult struct {
	Schedule    *models.Schedule           `json:"schedule"`
	Assignments []models.Assignment        `json:"assignments"`
	Conflicts   []scheduler.ConflictReason `json:"conflicts"`
	Superseded  []models.ShiftOverride     `json:"superseded_overrides"`
	Coverage    map[string]map[string]int  `json:"coverage"`
	Changed     int                        `json:"changed"`
}

// Generate resolves and stores one assignment per active employee and date
// in the target area. Reruns over unchanged inputs store the same rows and
// report Changed == 0. Employees that cannot be resolved are left out, their
// previously generated rows are removed, and they are reported through an
// IncompleteSchedule error alongside the result.
func (s *Service) Generate(ctx context.Context, p models.Principal, in GenerateInput) (*GenerateResult, error) {
	dates, err := models.DateRange(in.StartDate, in.EndDate)
	if err != nil {
		return nil, models.InvariantViolation(err.Error())
	}
	if len(dates) > MaxPeriodDays {
		return nil, models.InvariantViolation(fmt.Sprintf("period exceeds %d days", MaxPeriodDays))
	}

	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	divisionID, departmentID := in.DivisionID, in.DepartmentID
	if divisionID == "" && departmentID == "" && !sc.IsAdmin() {
		divisionID, departmentID = sc.Placement()
	}
	if departmentID != "" && divisionID == "" {
		return nil, models.InvariantViolation("department_id requires division_id", departmentID)
	}
	if !sc.CanManageSchedule(divisionID, departmentID) {
		return nil, models.AccessDenied("cannot generate schedules for this area", divisionID, departmentID)
	}
	area := scope.Filter{All: divisionID == "", DivisionID: divisionID, DepartmentID: departmentID}

	var result *GenerateResult
	err = timeouts.Run(ctx, s.opts.Policy, "generate schedule", s.log, func(ctx context.Context, _ int) error {
		var err error
		result, err = s.generate(ctx, p, area, dates)
		return err
	})
	if err != nil {
		metrics.ScheduleGenerations.WithLabelValues("failed").Inc()
		return nil, err
	}

	if len(result.Conflicts) > 0 {
		metrics.ScheduleGenerations.WithLabelValues("incomplete").Inc()
		ids := make([]string, 0, len(result.Conflicts))
		for _, c := range result.Conflicts {
			ids = append(ids, c.EmployeeID)
		}
		s.log.Warn().Str("schedule", result.Schedule.ID).Strs("employees", ids).Msg("schedule generated with unresolved employees")
		return result, models.IncompleteSchedule("some employees could not be scheduled", ids...)
	}
	metrics.ScheduleGenerations.WithLabelValues("complete").Inc()
	s.log.Info().Str("schedule", result.Schedule.ID).Int("assignments", len(result.Assignments)).
		Int("changed", result.Changed).Msg("schedule generated")
	return result, nil
}

func (s *Service) generate(ctx context.Context, p models.Principal, area scope.Filter, dates []string) (*GenerateResult, error) {
	from, to := dates[0], dates[len(dates)-1]
	result := &GenerateResult{}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		emps, err := tx.ActiveEmployees(ctx, area)
		if err != nil {
			return err
		}
		shifts, err := s.catalog(ctx, tx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(emps))
		input := make([]scheduler.Employee, 0, len(emps))
		for _, e := range emps {
			ids = append(ids, e.ID)
			se := scheduler.Employee{ID: e.ID}
			if e.ShiftType != nil {
				se.ShiftType = *e.ShiftType
			}
			input = append(input, se)
		}
		overrides, err := tx.ActiveOverrides(ctx, ids, from, to)
		if err != nil {
			return err
		}

		gen := scheduler.NewScheduler(input, shifts)
		gen.Prefill(toSchedulerOverrides(overrides))
		rows := gen.Assign(dates)

		for _, sup := range gen.Superseded {
			if err := tx.MarkSuperseded(ctx, sup.Loser.ID, sup.Winner.ID); err != nil {
				return err
			}
			s.log.Warn().Str("employee", sup.Loser.EmployeeID).Str("date", sup.Loser.Date).
				Str("superseded_request", sup.Loser.RequestID).Str("winning_request", sup.Winner.RequestID).
				Msg("override superseded during generation")
			result.Superseded = append(result.Superseded, supersededRow(overrides, sup))
		}

		existing, err := tx.ListAssignments(ctx, area, repository.AssignmentQuery{From: from, To: to})
		if err != nil {
			return err
		}

		now := s.now()
		sch := &models.Schedule{
			ID:           models.ScheduleID(area.DivisionID, area.DepartmentID, from, to),
			DivisionID:   area.DivisionID,
			DepartmentID: area.DepartmentID,
			StartDate:    from,
			EndDate:      to,
			Status:       models.ScheduleDraft,
			GeneratedBy:  p.UserID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for i := range rows {
			rows[i].ScheduleID = &sch.ID
		}
		placed := make(map[string]models.Employee, len(emps))
		for _, e := range emps {
			placed[e.ID] = e
		}
		changed, stale := diff(existing, rows, placed)
		if err := tx.SaveSchedule(ctx, sch, len(changed) > 0); err != nil {
			return err
		}
		if err := tx.DeleteAssignments(ctx, stale); err != nil {
			return err
		}
		if err := tx.UpsertAssignments(ctx, rows); err != nil {
			return err
		}
		if err := s.reopenOverlapping(ctx, tx, sch.ID, changed, placed, now); err != nil {
			return err
		}

		result.Schedule = sch
		result.Assignments = rows
		result.Conflicts = gen.Conflicts
		result.Coverage = scheduler.Coverage(rows)
		result.Changed = len(changed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Assignments == nil {
		result.Assignments = []models.Assignment{}
	}
	return result, nil
}

func toSchedulerOverrides(rows []models.ShiftOverride) []scheduler.Override {
	out := make([]scheduler.Override, 0, len(rows))
	for _, o := range rows {
		out = append(out, scheduler.Override{
			ID:         o.ID,
			RequestID:  o.RequestID,
			EmployeeID: o.EmployeeID,
			Date:       o.Date,
			ShiftID:    o.ShiftID,
			ApprovedAt: o.ApprovedAt,
		})
	}
	return out
}

func supersededRow(rows []models.ShiftOverride, sup scheduler.Supersession) models.ShiftOverride {
	for _, o := range rows {
		if o.ID == sup.Loser.ID {
			winner := sup.Winner.ID
			o.SupersededBy = &winner
			return o
		}
	}
	return models.ShiftOverride{ID: sup.Loser.ID}
}

type cell struct{ emp, date string }

// diff compares the generated rows with the stored rows of the active
// employees in the area. It returns every cell whose content changes and the
// stored rows that generation no longer produces. Override rows are never
// stale. The schedule link is not compared, since overlapping schedules
// share rows.
func diff(existing, generated []models.Assignment, active map[string]models.Employee) ([]cell, []models.Assignment) {
	stored := make(map[cell]models.Assignment, len(existing))
	for _, a := range existing {
		if _, ok := active[a.EmployeeID]; ok {
			stored[cell{a.EmployeeID, a.Date}] = a
		}
	}
	var changed []cell
	for _, a := range generated {
		k := cell{a.EmployeeID, a.Date}
		cur, ok := stored[k]
		delete(stored, k)
		if !ok || cur.ShiftID != a.ShiftID || cur.Source != a.Source || deref(cur.RequestID) != deref(a.RequestID) {
			changed = append(changed, k)
		}
	}
	var stale []models.Assignment
	for _, a := range existing {
		k := cell{a.EmployeeID, a.Date}
		if cur, ok := stored[k]; ok && cur.Source != models.SourceOverride {
			stale = append(stale, cur)
			changed = append(changed, k)
		}
	}
	return changed, stale
}

// reopenOverlapping sends other approved schedules back to draft when one of
// the changed cells falls inside their area and period
func (s *Service) reopenOverlapping(ctx context.Context, tx *repository.Store, self string, changed []cell, placed map[string]models.Employee, now time.Time) error {
	if len(changed) == 0 {
		return nil
	}
	from, to := changed[0].date, changed[0].date
	for _, c := range changed {
		if c.date < from {
			from = c.date
		}
		if c.date > to {
			to = c.date
		}
	}
	approved, err := tx.ApprovedSchedulesOverlapping(ctx, from, to)
	if err != nil {
		return err
	}
	var reopen []string
	for _, sch := range approved {
		if sch.ID == self {
			continue
		}
		for _, c := range changed {
			e := placed[c.emp]
			if c.date >= sch.StartDate && c.date <= sch.EndDate && covers(&sch, &e) {
				reopen = append(reopen, sch.ID)
				break
			}
		}
	}
	if len(reopen) == 0 {
		return nil
	}
	s.log.Info().Strs("schedules", reopen).Str("regenerated", self).Msg("overlapping schedules returned to draft")
	return tx.ReopenSchedules(ctx, reopen, now)
}

// covers reports whether the employee is placed inside the schedule's area
func covers(sch *models.Schedule, e *models.Employee) bool {
	if sch.DivisionID == "" {
		return true
	}
	if e.DivisionID != sch.DivisionID {
		return false
	}
	return sch.DepartmentID == "" || e.Dept() == sch.DepartmentID
}

// members selects the assignments belonging to a schedule: every row in its
// period for the employees placed in its area
func members(sch *models.Schedule) (scope.Filter, repository.AssignmentQuery) {
	f := scope.Filter{All: sch.DivisionID == "", DivisionID: sch.DivisionID, DepartmentID: sch.DepartmentID}
	return f, repository.AssignmentQuery{From: sch.StartDate, To: sch.EndDate}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// List returns the schedules covering the principal's area
func (s *Service) List(ctx context.Context, p models.Principal) ([]models.Schedule, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	if sc.Empty() {
		return []models.Schedule{}, nil
	}
	div, dept := sc.Placement()
	return s.store.ListSchedules(ctx, sc.IsAdmin(), div, dept)
}

type Detail struct {
	Schedule    *models.Schedule    `json:"schedule"`
	Assignments []models.Assignment `json:"assignments"`
}

// Get returns a schedule and the assignments in it the principal may read
func (s *Service) Get(ctx context.Context, p models.Principal, id string) (*Detail, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	sch, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sc.CanReadSchedule(sch.DivisionID, sch.DepartmentID) {
		return nil, models.NotFound("schedule", id)
	}
	_, q := members(sch)
	rows, err := s.store.ListAssignments(ctx, sc.Employees().Narrow(sch.DivisionID, sch.DepartmentID), q)
	if err != nil {
		return nil, err
	}
	return &Detail{Schedule: sch, Assignments: rows}, nil
}

type AssignmentQuery struct {
	From         string
	To           string
	EmployeeID   string
	DivisionID   string
	DepartmentID string
}

// Assignments lists assignments of readable employees. Employees only ever see their own.
func (s *Service) Assignments(ctx context.Context, p models.Principal, q AssignmentQuery) ([]models.Assignment, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	f := sc.Employees().Narrow(q.DivisionID, q.DepartmentID)
	if q.EmployeeID != "" {
		emp, err := s.store.GetEmployee(ctx, q.EmployeeID)
		if err != nil {
			return nil, err
		}
		if !sc.CanReadEmployee(emp) {
			return nil, models.NotFound("employee", q.EmployeeID)
		}
		f.EmployeeID = emp.ID
	}
	return s.store.ListAssignments(ctx, f, repository.AssignmentQuery{From: q.From, To: q.To})
}

// Approve publishes a draft schedule and notifies everyone assigned in it.
// The status change and the notifications commit together.
func (s *Service) Approve(ctx context.Context, p models.Principal, id string) (*models.Schedule, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	sch, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sc.CanReadSchedule(sch.DivisionID, sch.DepartmentID) {
		return nil, models.NotFound("schedule", id)
	}
	if !sc.CanManageSchedule(sch.DivisionID, sch.DepartmentID) {
		return nil, models.AccessDenied("cannot approve schedules for this area", id)
	}

	f, q := members(sch)
	var sent []models.NotificationType
	err = timeouts.Run(ctx, s.opts.Policy, "approve schedule", s.log, func(ctx context.Context, _ int) error {
		sent = sent[:0]
		return s.store.Transaction(ctx, func(tx *repository.Store) error {
			ok, err := tx.ApproveSchedule(ctx, id, p.UserID, s.now())
			if err != nil {
				return err
			}
			if !ok {
				return &models.Error{Kind: models.KindInvalidTransition, Message: "schedule is not a draft", IDs: []string{id}}
			}
			rows, err := tx.ListAssignments(ctx, f, q)
			if err != nil {
				return err
			}
			for _, recipient := range recipients(rows) {
				n, err := s.notifier.Deliver(ctx, tx, notify.Message{
					RecipientID: recipient,
					Type:        models.NotificationInfo,
					Title:       "Schedule published",
					Body:        fmt.Sprintf("Your schedule for %s to %s has been approved.", sch.StartDate, sch.EndDate),
				})
				if err != nil {
					return err
				}
				sent = append(sent, n.Type)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, t := range sent {
		metrics.NotificationsSent.WithLabelValues(string(t)).Inc()
	}
	s.log.Info().Str("schedule", id).Str("approved_by", p.UserID).Int("notified", len(sent)).Msg("schedule approved")
	return s.store.GetSchedule(ctx, id)
}

func recipients(rows []models.Assignment) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range rows {
		if !seen[a.EmployeeID] {
			seen[a.EmployeeID] = true
			out = append(out, a.EmployeeID)
		}
	}
	sort.Strings(out)
	return out
}
