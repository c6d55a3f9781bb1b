package org

import (
	"context"
	"strings"

	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/pkg/models"
)

func (s *Service) GetEmployee(ctx context.Context, p models.Principal, id string) (*models.Employee, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sc.CanReadEmployee(e) {
		return nil, models.NotFound("employee", id)
	}
	return e, nil
}

type EmployeePage struct {
	Employees  []models.Employee `json:"employees"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// ListEmployees pages through readable employees matching q
func (s *Service) ListEmployees(ctx context.Context, p models.Principal, q repository.EmployeeQuery) (*EmployeePage, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	q.Page = q.Page.Normalize()
	rows, total, err := s.store.ListEmployees(ctx, sc.Employees(), q)
	if err != nil {
		return nil, err
	}
	pages := int((total + int64(q.Page.Limit) - 1) / int64(q.Page.Limit))
	return &EmployeePage{Employees: rows, Total: total, Page: q.Page.Page, Limit: q.Page.Limit, TotalPages: pages}, nil
}

type EmployeeInput struct {
	ID           string
	Username     string
	Password     string
	FullName     string
	Email        string
	Role         models.Role
	DivisionID   string
	DepartmentID string
	Position     string
	ShiftType    models.ShiftType
	HireDate     string
}

// CreateEmployee creates the employee and its login account together.
// Callers only grant roles below their own, inside their write-scope.
func (s *Service) CreateEmployee(ctx context.Context, p models.Principal, in EmployeeInput) (*models.Employee, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleEmployee
	}
	if !in.Role.Valid() {
		return nil, models.InvariantViolation("unknown role", string(in.Role))
	}
	if !sc.CanGrant(in.Role) {
		return nil, models.AccessDenied("cannot grant role "+string(in.Role), in.ID)
	}

	e := &models.Employee{
		ID:         strings.TrimSpace(in.ID),
		DivisionID: in.DivisionID,
		Position:   strings.TrimSpace(in.Position),
		IsActive:   true,
		HireDate:   in.HireDate,
	}
	if e.ID == "" {
		return nil, models.InvariantViolation("employee id is required")
	}
	if in.DepartmentID != "" {
		dept := in.DepartmentID
		e.DepartmentID = &dept
	}
	if err := s.checkPlacement(ctx, in.Role, e.DivisionID, e.Dept()); err != nil {
		return nil, err
	}
	if !sc.CanWriteEmployee(e) {
		return nil, models.AccessDenied("placement is outside your scope", e.DivisionID, e.Dept())
	}
	if in.ShiftType != "" {
		if !in.ShiftType.Valid() {
			return nil, models.InvariantViolation("unknown shift type", string(in.ShiftType))
		}
		st := in.ShiftType
		e.ShiftType = &st
	}
	if e.HireDate == "" {
		e.HireDate = s.now().Format(models.DateLayout)
	} else if _, err := models.ParseDate(e.HireDate); err != nil {
		return nil, models.InvariantViolation(err.Error(), e.ID)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, models.InvariantViolation("username is required", e.ID)
	}
	if len(in.Password) < MinPasswordLength {
		return nil, models.InvariantViolation("password is too short", username)
	}
	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := &models.User{
		ID:           models.NewID(),
		Username:     username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.CreatedAt, e.UpdatedAt = now, now
	if err := s.store.CreateEmployee(ctx, u, e); err != nil {
		return nil, err
	}
	s.log.Info().Str("employee", e.ID).Str("role", string(u.Role)).Str("division", e.DivisionID).
		Str("department", e.Dept()).Str("by", p.UserID).Msg("employee created")
	return e, nil
}

// checkPlacement enforces department membership in the division. Only
// division-level roles may be placed without a department.
func (s *Service) checkPlacement(ctx context.Context, role models.Role, divisionID, departmentID string) error {
	if divisionID == "" {
		return models.InvariantViolation("division_id is required")
	}
	div, err := s.store.GetDivision(ctx, divisionID)
	if err != nil {
		return err
	}
	if !div.IsActive {
		return models.InvariantViolation("division is inactive", divisionID)
	}
	if departmentID == "" {
		if !role.DivisionLevel() {
			return models.InvariantViolation("department_id is required for role "+string(role), divisionID)
		}
		return nil
	}
	dept, err := s.store.GetDepartment(ctx, divisionID, departmentID)
	if models.KindOf(err) == models.KindNotFound {
		return models.InvariantViolation("department does not belong to division", divisionID, departmentID)
	}
	if err != nil {
		return err
	}
	if !dept.IsActive {
		return models.InvariantViolation("department is inactive", divisionID, departmentID)
	}
	return nil
}

// EmployeeUpdate holds optional changes; nil fields are left alone.
// An empty DepartmentID moves the employee to division level.
type EmployeeUpdate struct {
	DepartmentID *string
	Position     *string
	ShiftType    *models.ShiftType
	IsActive     *bool
}

func (s *Service) UpdateEmployee(ctx context.Context, p models.Principal, id string, in EmployeeUpdate) (*models.Employee, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sc.CanWriteEmployee(e) {
		return nil, models.AccessDenied("employee is outside your scope", id)
	}

	if in.DepartmentID != nil && *in.DepartmentID != e.Dept() {
		role := models.RoleEmployee
		if e.User != nil {
			role = e.User.Role
		}
		if err := s.checkPlacement(ctx, role, e.DivisionID, *in.DepartmentID); err != nil {
			return nil, err
		}
		moved := *e
		if *in.DepartmentID == "" {
			moved.DepartmentID = nil
		} else {
			dept := *in.DepartmentID
			moved.DepartmentID = &dept
		}
		if !sc.CanWriteEmployee(&moved) {
			return nil, models.AccessDenied("target department is outside your scope", e.DivisionID, *in.DepartmentID)
		}
		e.DepartmentID = moved.DepartmentID
	}
	if in.Position != nil {
		e.Position = strings.TrimSpace(*in.Position)
	}
	if in.ShiftType != nil {
		if *in.ShiftType == "" {
			e.ShiftType = nil
		} else {
			if !in.ShiftType.Valid() {
				return nil, models.InvariantViolation("unknown shift type", string(*in.ShiftType))
			}
			st := *in.ShiftType
			e.ShiftType = &st
		}
	}

	deactivate := in.IsActive != nil && !*in.IsActive
	if deactivate && e.ID == p.EmployeeID {
		return nil, models.InvariantViolation("cannot deactivate yourself", id)
	}

	var toggled bool
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.UpdateEmployee(ctx, e); err != nil {
			return err
		}
		var err error
		switch {
		case deactivate:
			// future assignments go with the employee
			toggled, err = tx.DeactivateEmployee(ctx, id, s.now().Format(models.DateLayout))
		case in.IsActive != nil:
			toggled, err = tx.ReactivateEmployee(ctx, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if toggled {
		s.log.Info().Str("employee", id).Bool("active", !deactivate).Str("by", p.UserID).Msg("employee activation changed")
	}
	return s.store.GetEmployee(ctx, id)
}

// DeactivateEmployee soft-deletes an employee. Repeating it is a no-op.
func (s *Service) DeactivateEmployee(ctx context.Context, p models.Principal, id string) (*models.Employee, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sc.CanWriteEmployee(e) {
		return nil, models.AccessDenied("employee is outside your scope", id)
	}
	if e.ID == p.EmployeeID {
		return nil, models.InvariantViolation("cannot deactivate yourself", id)
	}
	changed, err := s.store.DeactivateEmployee(ctx, id, s.now().Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info().Str("employee", id).Str("by", p.UserID).Msg("employee deactivated")
	}
	return s.store.GetEmployee(ctx, id)
}
