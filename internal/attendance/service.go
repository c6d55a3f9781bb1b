// Package attendance records daily check-ins and check-outs
package attendance

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/models"
)

const (
	// check-ins after this wall-clock time count as late
	lateHour, lateMinute = 8, 15
	standardHours        = 8.0
)

type Service struct {
	store  *repository.Store
	scopes *scope.Resolver
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(store *repository.Store, scopes *scope.Resolver, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		scopes: scopes,
		log:    log.With().Str("component", "attendance").Logger(),
		now:    time.Now,
	}
}

// target resolves whose attendance a call acts on. Without an explicit id it
// is the principal's own record; anyone else requires write-scope.
func (s *Service) target(ctx context.Context, p models.Principal, employeeID string) (*models.Employee, error) {
	if employeeID == "" {
		employeeID = p.EmployeeID
	}
	if employeeID == "" {
		return nil, models.InvariantViolation("principal has no employee record; employee_id is required", p.UserID)
	}
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if e.ID != p.EmployeeID && !sc.CanWriteEmployee(e) {
		return nil, models.AccessDenied("employee is outside your scope", employeeID)
	}
	if !e.IsActive {
		return nil, models.InvariantViolation("employee is inactive", employeeID)
	}
	return e, nil
}

func (s *Service) CheckIn(ctx context.Context, p models.Principal, employeeID, notes string) (*models.Attendance, error) {
	e, err := s.target(ctx, p, employeeID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	status := models.AttendancePresent
	if late := time.Date(now.Year(), now.Month(), now.Day(), lateHour, lateMinute, 0, 0, now.Location()); now.After(late) {
		status = models.AttendanceLate
	}
	a := &models.Attendance{
		ID:         models.NewID(),
		EmployeeID: e.ID,
		Date:       now.Format(models.DateLayout),
		CheckIn:    &now,
		Status:     status,
		Notes:      notes,
		CreatedAt:  now,
	}
	if err := s.store.CreateAttendance(ctx, a); err != nil {
		return nil, err
	}
	s.log.Debug().Str("employee", e.ID).Str("status", string(status)).Msg("checked in")
	return a, nil
}

func (s *Service) CheckOut(ctx context.Context, p models.Principal, employeeID string) (*models.Attendance, error) {
	e, err := s.target(ctx, p, employeeID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	date := now.Format(models.DateLayout)
	a, err := s.store.GetAttendance(ctx, e.ID, date)
	if err != nil {
		return nil, err
	}
	if a == nil || a.CheckIn == nil {
		return nil, models.InvariantViolation("no check-in recorded today", e.ID, date)
	}
	hours := math.Round(now.Sub(*a.CheckIn).Hours()*100) / 100
	overtime := math.Max(0, math.Round((hours-standardHours)*100)/100)

	ok, err := s.store.CheckOut(ctx, a.ID, now, hours, overtime)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.InvariantViolation("already checked out today", e.ID, date)
	}
	return s.store.GetAttendance(ctx, e.ID, date)
}

type Query struct {
	From         string
	To           string
	DivisionID   string
	DepartmentID string
	EmployeeID   string
}

type Summary struct {
	Total          int     `json:"total"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	TotalHours     float64 `json:"total_hours"`
	AttendanceRate float64 `json:"attendance_rate"`
}

type Report struct {
	Records []models.Attendance `json:"records"`
	Stats   Summary             `json:"stats"`
}

// List returns readable attendance records in the period with totals
func (s *Service) List(ctx context.Context, p models.Principal, q Query) (*Report, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if _, err := models.ParseDate(d); err != nil {
			return nil, models.InvariantViolation(err.Error())
		}
	}
	f := sc.Employees().Narrow(q.DivisionID, q.DepartmentID)
	if q.EmployeeID != "" {
		e, err := s.store.GetEmployee(ctx, q.EmployeeID)
		if err != nil {
			return nil, err
		}
		if !sc.CanReadEmployee(e) {
			return nil, models.NotFound("employee", q.EmployeeID)
		}
		f.EmployeeID = e.ID
	}
	rows, err := s.store.ListAttendance(ctx, f, repository.AttendanceQuery{From: q.From, To: q.To})
	if err != nil {
		return nil, err
	}
	return &Report{Records: rows, Stats: summarize(rows)}, nil
}

func summarize(rows []models.Attendance) Summary {
	st := Summary{Total: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case models.AttendancePresent:
			st.Present++
		case models.AttendanceLate:
			st.Late++
		case models.AttendanceAbsent:
			st.Absent++
		}
		st.TotalHours += r.HoursWorked
	}
	st.TotalHours = math.Round(st.TotalHours*100) / 100
	if st.Total > 0 {
		st.AttendanceRate = math.Round(float64(st.Present+st.Late)/float64(st.Total)*1000) / 10
	}
	return st
}
