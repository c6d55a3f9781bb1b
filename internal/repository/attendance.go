package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/models"
)

// GetAttendance returns nil without error when there is no record
func (s *Store) GetAttendance(ctx context.Context, employeeID, date string) (*models.Attendance, error) {
	var a models.Attendance
	err := s.q(ctx).Where("employee_id = ? AND date = ?", employeeID, date).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "load attendance")
	}
	return &a, nil
}

// CreateAttendance relies on the (employee_id, date) unique index to reject a second check-in
func (s *Store) CreateAttendance(ctx context.Context, a *models.Attendance) error {
	if err := s.q(ctx).Create(a).Error; err != nil {
		return duplicate(err, "attendance", a.EmployeeID, a.Date)
	}
	return nil
}

// CheckOut is a compare-and-set on check_out being empty
func (s *Store) CheckOut(ctx context.Context, id string, at time.Time, hours, overtime float64) (bool, error) {
	res := s.q(ctx).Model(&models.Attendance{}).
		Where("id = ? AND check_out IS NULL", id).
		Updates(map[string]interface{}{
			"check_out":      at,
			"hours_worked":   hours,
			"overtime_hours": overtime,
		})
	if res.Error != nil {
		return false, wrap(res.Error, "check out")
	}
	return res.RowsAffected == 1, nil
}

type AttendanceQuery struct {
	From, To string
}

func (s *Store) ListAttendance(ctx context.Context, f scope.Filter, query AttendanceQuery) ([]models.Attendance, error) {
	q := s.q(ctx).Model(&models.Attendance{}).Joins("JOIN employees ON employees.id = attendance.employee_id")
	q = applyEmployeeFilter(q, f, "employees")
	if query.From != "" {
		q = q.Where("attendance.date >= ?", query.From)
	}
	if query.To != "" {
		q = q.Where("attendance.date <= ?", query.To)
	}
	var out []models.Attendance
	if err := q.Select("attendance.*").Order("attendance.date DESC, attendance.employee_id").Find(&out).Error; err != nil {
		return nil, wrap(err, "list attendance")
	}
	return out, nil
}
