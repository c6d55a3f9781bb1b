package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/models"
)

type DivisionSummary struct {
	models.Division
	DepartmentCount int64 `json:"department_count"`
	EmployeeCount   int64 `json:"employee_count"`
}

type DepartmentSummary struct {
	models.Department
	EmployeeCount int64 `json:"employee_count"`
}

type countRow struct {
	Grp string
	N   int64
}

func (s *Store) GetDivision(ctx context.Context, id string) (*models.Division, error) {
	var d models.Division
	if err := s.q(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err, "division", id)
	}
	return &d, nil
}

// ListDivisions returns active divisions visible through f, with live counts
func (s *Store) ListDivisions(ctx context.Context, f scope.Filter) ([]DivisionSummary, error) {
	q := s.q(ctx).Where("is_active = ?", true)
	if f.None {
		return []DivisionSummary{}, nil
	}
	if f.DivisionID != "" {
		q = q.Where("id = ?", f.DivisionID)
	}
	var divisions []models.Division
	if err := q.Order("id").Find(&divisions).Error; err != nil {
		return nil, wrap(err, "list divisions")
	}

	var deptCounts, empCounts []countRow
	if err := s.q(ctx).Model(&models.Department{}).
		Select("division_id AS grp, COUNT(*) AS n").
		Where("is_active = ?", true).Group("division_id").Scan(&deptCounts).Error; err != nil {
		return nil, wrap(err, "count departments")
	}
	if err := s.q(ctx).Model(&models.Employee{}).
		Select("division_id AS grp, COUNT(*) AS n").
		Where("is_active = ?", true).Group("division_id").Scan(&empCounts).Error; err != nil {
		return nil, wrap(err, "count employees")
	}
	depts, emps := toMap(deptCounts), toMap(empCounts)

	out := make([]DivisionSummary, 0, len(divisions))
	for _, d := range divisions {
		out = append(out, DivisionSummary{Division: d, DepartmentCount: depts[d.ID], EmployeeCount: emps[d.ID]})
	}
	return out, nil
}

func toMap(rows []countRow) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Grp] = r.N
	}
	return m
}

func (s *Store) CreateDivision(ctx context.Context, d *models.Division) error {
	if err := s.q(ctx).Create(d).Error; err != nil {
		return duplicate(err, "division", d.ID)
	}
	return nil
}

// DeactivateDivision soft-deletes a division. With cascade its departments
// are deactivated too; otherwise live departments make it fail.
func (s *Store) DeactivateDivision(ctx context.Context, id string, cascade bool) error {
	return s.Transaction(ctx, func(tx *Store) error {
		var live []string
		if err := tx.q(ctx).Model(&models.Department{}).
			Where("division_id = ? AND is_active = ?", id, true).Pluck("id", &live).Error; err != nil {
			return wrap(err, "count departments")
		}
		if len(live) > 0 && !cascade {
			return models.InvariantViolation("division still has active departments", append([]string{id}, live...)...)
		}
		if len(live) > 0 {
			if err := tx.q(ctx).Model(&models.Department{}).
				Where("division_id = ?", id).Update("is_active", false).Error; err != nil {
				return wrap(err, "deactivate departments")
			}
		}
		res := tx.q(ctx).Model(&models.Division{}).Where("id = ? AND is_active = ?", id, true).Update("is_active", false)
		if res.Error != nil {
			return wrap(res.Error, "deactivate division")
		}
		if res.RowsAffected == 0 {
			return models.NotFound("division", id)
		}
		return nil
	})
}

func (s *Store) GetDepartment(ctx context.Context, divisionID, id string) (*models.Department, error) {
	var d models.Department
	if err := s.q(ctx).Where("division_id = ? AND id = ?", divisionID, id).First(&d).Error; err != nil {
		return nil, notFound(err, "department", divisionID, id)
	}
	return &d, nil
}

// ListDepartments returns active departments visible through f
func (s *Store) ListDepartments(ctx context.Context, f scope.Filter) ([]DepartmentSummary, error) {
	if f.None {
		return []DepartmentSummary{}, nil
	}
	q := s.q(ctx).Where("is_active = ?", true)
	if f.DivisionID != "" {
		q = q.Where("division_id = ?", f.DivisionID)
	}
	if f.DepartmentID != "" {
		q = q.Where("id = ?", f.DepartmentID)
	}
	var depts []models.Department
	if err := q.Order("division_id, id").Find(&depts).Error; err != nil {
		return nil, wrap(err, "list departments")
	}

	var counts []countRow
	if err := s.q(ctx).Model(&models.Employee{}).
		Select("division_id || '/' || department_id AS grp, COUNT(*) AS n").
		Where("is_active = ? AND department_id IS NOT NULL", true).
		Group("division_id, department_id").Scan(&counts).Error; err != nil {
		return nil, wrap(err, "count employees")
	}
	byDept := toMap(counts)

	out := make([]DepartmentSummary, 0, len(depts))
	for _, d := range depts {
		out = append(out, DepartmentSummary{Department: d, EmployeeCount: byDept[d.DivisionID+"/"+d.ID]})
	}
	return out, nil
}

func (s *Store) CreateDepartment(ctx context.Context, d *models.Department) error {
	if err := s.q(ctx).Create(d).Error; err != nil {
		return duplicate(err, "department", d.DivisionID, d.ID)
	}
	return nil
}

func (s *Store) UpdateDepartment(ctx context.Context, d *models.Department) error {
	res := s.q(ctx).Model(&models.Department{}).
		Where("division_id = ? AND id = ?", d.DivisionID, d.ID).
		Updates(map[string]interface{}{
			"name":        d.Name,
			"manager_id":  d.ManagerID,
			"description": d.Description,
		})
	if res.Error != nil {
		return wrap(res.Error, "update department")
	}
	if res.RowsAffected == 0 {
		return models.NotFound("department", d.DivisionID, d.ID)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.q(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.q(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "user", username)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.q(ctx).Create(u).Error; err != nil {
		return duplicate(err, "user", u.Username)
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.q(ctx).Model(&models.User{}).Count(&n).Error
	return n, wrap(err, "count users")
}

// LoadPrincipal rebuilds the principal from the current user and employee rows
func (s *Store) LoadPrincipal(ctx context.Context, userID string) (models.Principal, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.Principal{}, err
	}
	if !u.IsActive {
		return models.Principal{}, models.SessionExpired("account is disabled")
	}
	p := models.Principal{
		UserID:    u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
	}

	var e models.Employee
	err = s.q(ctx).Where("user_id = ?", u.ID).First(&e).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return p, nil
	case err != nil:
		return models.Principal{}, wrap(err, "load employee")
	}
	if !e.IsActive {
		return models.Principal{}, models.SessionExpired("employee is inactive")
	}
	p.EmployeeID = e.ID
	p.DivisionID = e.DivisionID
	p.DepartmentID = e.Dept()
	p.Position = e.Position
	return p, nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	var e models.Employee
	if err := s.q(ctx).Preload("User").Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err, "employee", id)
	}
	return &e, nil
}

type EmployeeQuery struct {
	Search       string
	DivisionID   string
	DepartmentID string
	// Status is "active", "inactive" or "" for both
	Status string
	Page
}

// ListEmployees returns one page of employees visible through f and the total match count
func (s *Store) ListEmployees(ctx context.Context, f scope.Filter, query EmployeeQuery) ([]models.Employee, int64, error) {
	q := s.q(ctx).Model(&models.Employee{}).Joins("JOIN users ON users.id = employees.user_id").Session(&gorm.Session{})
	q = applyEmployeeFilter(q, f.Narrow(query.DivisionID, query.DepartmentID), "employees")
	switch query.Status {
	case "active":
		q = q.Where("employees.is_active = ?", true)
	case "inactive":
		q = q.Where("employees.is_active = ?", false)
	}
	if query.Search != "" {
		like := "%" + query.Search + "%"
		q = q.Where("(users.full_name LIKE ? OR employees.id LIKE ? OR users.email LIKE ?)", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrap(err, "count employees")
	}

	page := query.Page.Normalize()
	var out []models.Employee
	if err := q.Select("employees.*").Preload("User").
		Order("employees.id").Offset(page.offset()).Limit(page.Limit).
		Find(&out).Error; err != nil {
		return nil, 0, wrap(err, "list employees")
	}
	return out, total, nil
}

// ActiveEmployees returns every active employee selected by f, ordered by id
func (s *Store) ActiveEmployees(ctx context.Context, f scope.Filter) ([]models.Employee, error) {
	q := applyEmployeeFilter(s.q(ctx).Model(&models.Employee{}), f, "employees")
	var out []models.Employee
	if err := q.Where("employees.is_active = ?", true).Order("employees.id").Find(&out).Error; err != nil {
		return nil, wrap(err, "list active employees")
	}
	return out, nil
}

// EmployeesByID loads employees with their user rows, active or not
func (s *Store) EmployeesByID(ctx context.Context, ids []string) (map[string]*models.Employee, error) {
	out := make(map[string]*models.Employee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Employee
	if err := s.q(ctx).Preload("User").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrap(err, "load employees")
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (s *Store) CountEmployees(ctx context.Context, f scope.Filter) (int64, error) {
	var n int64
	err := applyEmployeeFilter(s.q(ctx).Model(&models.Employee{}), f, "employees").
		Where("employees.is_active = ?", true).Count(&n).Error
	return n, wrap(err, "count employees")
}

// CreateEmployee inserts the user account and the employee row
func (s *Store) CreateEmployee(ctx context.Context, u *models.User, e *models.Employee) error {
	return s.Transaction(ctx, func(tx *Store) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		e.UserID = u.ID
		if err := tx.q(ctx).Omit("User").Create(e).Error; err != nil {
			return duplicate(err, "employee", e.ID)
		}
		e.User = u
		return nil
	})
}

// UpdateEmployee writes placement and preference fields. is_active only
// changes through DeactivateEmployee and ReactivateEmployee.
func (s *Store) UpdateEmployee(ctx context.Context, e *models.Employee) error {
	res := s.q(ctx).Model(&models.Employee{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
		"department_id": e.DepartmentID,
		"position":      e.Position,
		"shift_type":    e.ShiftType,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return wrap(res.Error, "update employee")
	}
	if res.RowsAffected == 0 {
		return models.NotFound("employee", e.ID)
	}
	return nil
}

// DeactivateEmployee flips is_active in a single conditional update and
// drops assignments dated after today. It reports whether this call made the change.
func (s *Store) DeactivateEmployee(ctx context.Context, id, today string) (bool, error) {
	var changed bool
	err := s.Transaction(ctx, func(tx *Store) error {
		res := tx.q(ctx).Model(&models.Employee{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return wrap(res.Error, "deactivate employee")
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		if err := tx.q(ctx).Where("employee_id = ? AND date > ?", id, today).
			Delete(&models.Assignment{}).Error; err != nil {
			return wrap(err, "drop future assignments")
		}
		return nil
	})
	return changed, err
}

// ReactivateEmployee is the conditional inactive -> active update. It
// reports whether this call made the change.
func (s *Store) ReactivateEmployee(ctx context.Context, id string) (bool, error) {
	res := s.q(ctx).Model(&models.Employee{}).
		Where("id = ? AND is_active = ?", id, false).
		Updates(map[string]interface{}{"is_active": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, wrap(res.Error, "reactivate employee")
	}
	return res.RowsAffected == 1, nil
}
