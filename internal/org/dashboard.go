package org

import (
	"context"
	"math"

	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/pkg/models"
)

type Stats struct {
	TotalEmployees  int64                        `json:"total_employees"`
	TotalDivisions  int                          `json:"total_divisions"`
	TotalDepartment int                          `json:"total_departments"`
	PresentToday    int                          `json:"present_today"`
	LateToday       int                          `json:"late_today"`
	AbsentToday     int64                        `json:"absent_today"`
	AttendanceRate  float64                      `json:"attendance_rate"`
	PendingRequests int64                        `json:"pending_requests"`
	Divisions       []repository.DivisionSummary `json:"divisions"`
}

// Stats summarizes the principal's area for today
func (s *Service) Stats(ctx context.Context, p models.Principal) (*Stats, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	people := sc.Employees()

	out := &Stats{}
	if out.TotalEmployees, err = s.store.CountEmployees(ctx, people); err != nil {
		return nil, err
	}
	if out.Divisions, err = s.store.ListDivisions(ctx, sc.Organization()); err != nil {
		return nil, err
	}
	out.TotalDivisions = len(out.Divisions)
	depts, err := s.store.ListDepartments(ctx, sc.Organization())
	if err != nil {
		return nil, err
	}
	out.TotalDepartment = len(depts)
	if out.PendingRequests, err = s.store.CountRequests(ctx, people, models.RequestPending); err != nil {
		return nil, err
	}

	today := s.now().Format(models.DateLayout)
	records, err := s.store.ListAttendance(ctx, people, repository.AttendanceQuery{From: today, To: today})
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		switch r.Status {
		case models.AttendancePresent:
			out.PresentToday++
		case models.AttendanceLate:
			out.LateToday++
		}
	}
	attended := int64(out.PresentToday + out.LateToday)
	if out.TotalEmployees > attended {
		out.AbsentToday = out.TotalEmployees - attended
	}
	if out.TotalEmployees > 0 {
		out.AttendanceRate = math.Round(float64(attended)/float64(out.TotalEmployees)*1000) / 10
	}
	return out, nil
}
