package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/models"
)

func (s *Store) ListShifts(ctx context.Context) ([]models.Shift, error) {
	var out []models.Shift
	if err := s.q(ctx).Where("is_active = ?", true).Order("start_time, id").Find(&out).Error; err != nil {
		return nil, wrap(err, "list shifts")
	}
	return out, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*models.Shift, error) {
	var sh models.Shift
	if err := s.q(ctx).Where("id = ?", id).First(&sh).Error; err != nil {
		return nil, notFound(err, "shift", id)
	}
	return &sh, nil
}

func (s *Store) CreateShift(ctx context.Context, sh *models.Shift) error {
	if err := s.q(ctx).Create(sh).Error; err != nil {
		return duplicate(err, "shift", sh.ID)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var sc models.Schedule
	if err := s.q(ctx).Where("id = ?", id).First(&sc).Error; err != nil {
		return nil, notFound(err, "schedule", id)
	}
	return &sc, nil
}

// SaveSchedule inserts the schedule row or refreshes an existing one. When
// resetToDraft is set an approved schedule goes back to draft.
func (s *Store) SaveSchedule(ctx context.Context, sc *models.Schedule, resetToDraft bool) error {
	updates := map[string]interface{}{
		"generated_by": sc.GeneratedBy,
		"updated_at":   sc.UpdatedAt,
	}
	if resetToDraft {
		updates["status"] = models.ScheduleDraft
		updates["approved_by"] = nil
		updates["approved_at"] = nil
	}
	err := s.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(sc).Error
	if err != nil {
		return wrap(err, "save schedule")
	}
	// reload so the caller sees the stored status
	return wrap(s.q(ctx).Where("id = ?", sc.ID).First(sc).Error, "reload schedule")
}

// ListSchedules returns schedules covering the given placement: schedules
// generated for the whole plant, for the division, or for the department.
// With all set every schedule is returned.
func (s *Store) ListSchedules(ctx context.Context, all bool, divisionID, departmentID string) ([]models.Schedule, error) {
	q := s.q(ctx).Model(&models.Schedule{})
	if !all {
		if divisionID == "" {
			return []models.Schedule{}, nil
		}
		if departmentID == "" {
			q = q.Where("division_id = '' OR division_id = ?", divisionID)
		} else {
			q = q.Where("division_id = '' OR (division_id = ? AND (department_id = '' OR department_id = ?))", divisionID, departmentID)
		}
	}
	var out []models.Schedule
	if err := q.Order("start_date DESC, id").Find(&out).Error; err != nil {
		return nil, wrap(err, "list schedules")
	}
	return out, nil
}

// ApproveSchedule is a compare-and-set draft -> approved
func (s *Store) ApproveSchedule(ctx context.Context, id, approver string, at time.Time) (bool, error) {
	res := s.q(ctx).Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleDraft).
		Updates(map[string]interface{}{
			"status":      models.ScheduleApproved,
			"approved_by": approver,
			"approved_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, wrap(res.Error, "approve schedule")
	}
	return res.RowsAffected == 1, nil
}

// ApprovedSchedulesOverlapping returns approved schedules whose period intersects [from, to]
func (s *Store) ApprovedSchedulesOverlapping(ctx context.Context, from, to string) ([]models.Schedule, error) {
	var out []models.Schedule
	err := s.q(ctx).Where("status = ? AND start_date <= ? AND end_date >= ?", models.ScheduleApproved, to, from).
		Order("id").Find(&out).Error
	return out, wrap(err, "list overlapping schedules")
}

// ReopenSchedules moves approved schedules back to draft
func (s *Store) ReopenSchedules(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.q(ctx).Model(&models.Schedule{}).
		Where("id IN ? AND status = ?", ids, models.ScheduleApproved).
		Updates(map[string]interface{}{
			"status":      models.ScheduleDraft,
			"approved_by": nil,
			"approved_at": nil,
			"updated_at":  at,
		}).Error
	return wrap(err, "reopen schedules")
}

// DeleteAssignments removes the given rows by id
func (s *Store) DeleteAssignments(ctx context.Context, rows []models.Assignment) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	for _, a := range rows {
		ids = append(ids, a.ID)
	}
	return wrap(s.q(ctx).Where("id IN ?", ids).Delete(&models.Assignment{}).Error, "delete assignments")
}

// UpsertAssignments writes assignments keyed by (employee_id, date). The
// conflict update is atomic per row, so concurrent writers serialize.
func (s *Store) UpsertAssignments(ctx context.Context, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	err := s.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"shift_id", "source", "request_id", "schedule_id"}),
	}).CreateInBatches(assignments, 200).Error
	return wrap(err, "upsert assignments")
}

// UpsertOverrideAssignment pins one employee-date to an override. The
// schedule link of an existing row is kept.
func (s *Store) UpsertOverrideAssignment(ctx context.Context, a *models.Assignment) error {
	err := s.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"shift_id", "source", "request_id"}),
	}).Create(a).Error
	return wrap(err, "upsert override assignment")
}

// GetAssignment returns nil without error when the employee has nothing on date
func (s *Store) GetAssignment(ctx context.Context, employeeID, date string) (*models.Assignment, error) {
	var a models.Assignment
	err := s.q(ctx).Where("employee_id = ? AND date = ?", employeeID, date).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "load assignment")
	}
	return &a, nil
}

type AssignmentQuery struct {
	From, To   string
	ScheduleID string
}

// ListAssignments returns assignments of employees selected by f, ordered by date then employee
func (s *Store) ListAssignments(ctx context.Context, f scope.Filter, query AssignmentQuery) ([]models.Assignment, error) {
	q := s.q(ctx).Model(&models.Assignment{}).Joins("JOIN employees ON employees.id = assignments.employee_id")
	q = applyEmployeeFilter(q, f, "employees")
	if query.From != "" {
		q = q.Where("assignments.date >= ?", query.From)
	}
	if query.To != "" {
		q = q.Where("assignments.date <= ?", query.To)
	}
	if query.ScheduleID != "" {
		q = q.Where("assignments.schedule_id = ?", query.ScheduleID)
	}
	var out []models.Assignment
	if err := q.Select("assignments.*").Order("assignments.date, assignments.employee_id").Find(&out).Error; err != nil {
		return nil, wrap(err, "list assignments")
	}
	return out, nil
}

// ActiveOverrides returns non-superseded overrides for the employees in [from, to]
func (s *Store) ActiveOverrides(ctx context.Context, employeeIDs []string, from, to string) ([]models.ShiftOverride, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	var out []models.ShiftOverride
	err := s.q(ctx).
		Where("employee_id IN ? AND date >= ? AND date <= ? AND superseded_by IS NULL", employeeIDs, from, to).
		Order("date, employee_id, approved_at, request_id").Find(&out).Error
	return out, wrap(err, "list overrides")
}

// SupersedeOverrides marks every active override on (employee, date) as
// superseded by winner and returns the rows it changed
func (s *Store) SupersedeOverrides(ctx context.Context, employeeID, date, winner string) ([]models.ShiftOverride, error) {
	var losers []models.ShiftOverride
	if err := s.q(ctx).
		Where("employee_id = ? AND date = ? AND superseded_by IS NULL AND id <> ?", employeeID, date, winner).
		Find(&losers).Error; err != nil {
		return nil, wrap(err, "find overrides")
	}
	if len(losers) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(losers))
	for i := range losers {
		ids = append(ids, losers[i].ID)
		losers[i].SupersededBy = &winner
	}
	if err := s.q(ctx).Model(&models.ShiftOverride{}).
		Where("id IN ?", ids).Update("superseded_by", winner).Error; err != nil {
		return nil, wrap(err, "supersede overrides")
	}
	return losers, nil
}

// MarkSuperseded records that loser lost to winner
func (s *Store) MarkSuperseded(ctx context.Context, loser, winner string) error {
	err := s.q(ctx).Model(&models.ShiftOverride{}).
		Where("id = ? AND superseded_by IS NULL", loser).Update("superseded_by", winner).Error
	return wrap(err, "supersede override")
}

func (s *Store) CreateOverride(ctx context.Context, o *models.ShiftOverride) error {
	return wrap(s.q(ctx).Create(o).Error, "create override")
}

// OverridesFor returns every override, superseded or not, for an employee-date
func (s *Store) OverridesFor(ctx context.Context, employeeID, date string) ([]models.ShiftOverride, error) {
	var out []models.ShiftOverride
	err := s.q(ctx).Where("employee_id = ? AND date = ?", employeeID, date).
		Order("approved_at, request_id").Find(&out).Error
	return out, wrap(err, "list overrides")
}
