// Package org manages the organization graph: divisions, departments and the
// employees placed in them. Every call is checked against the caller's scope.
package org

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/auth"
	"github.com/arnavshah/workforce-api/pkg/models"
)

// MinPasswordLength applies to accounts created through the API
const MinPasswordLength = 6

type Service struct {
	store  *repository.Store
	scopes *scope.Resolver
	hasher auth.Hasher
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(store *repository.Store, scopes *scope.Resolver, hasher auth.Hasher, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		scopes: scopes,
		hasher: hasher,
		log:    log.With().Str("component", "org").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListDivisions(ctx context.Context, p models.Principal) ([]repository.DivisionSummary, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.store.ListDivisions(ctx, sc.Organization())
}

func (s *Service) GetDivision(ctx context.Context, p models.Principal, id string) (*models.Division, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	if !sc.CanReadDivision(id) {
		return nil, models.NotFound("division", id)
	}
	return s.store.GetDivision(ctx, id)
}

type DivisionInput struct {
	ID          string
	Name        string
	Color       string
	Description string
}

func (s *Service) CreateDivision(ctx context.Context, p models.Principal, in DivisionInput) (*models.Division, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	if !sc.CanCreateDivision() {
		return nil, models.AccessDenied("only administrators create divisions", in.ID)
	}
	d := &models.Division{
		ID:          strings.TrimSpace(in.ID),
		Name:        strings.TrimSpace(in.Name),
		Color:       in.Color,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	if d.ID == "" || d.Name == "" {
		return nil, models.InvariantViolation("division id and name are required", d.ID)
	}
	if d.Color == "" {
		d.Color = "blue"
	}
	if err := s.store.CreateDivision(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info().Str("division", d.ID).Str("by", p.UserID).Msg("division created")
	return d, nil
}

// DeleteDivision deactivates a division. Active departments make it fail
// unless force is set, in which case they are deactivated with it.
func (s *Service) DeleteDivision(ctx context.Context, p models.Principal, id string, force bool) error {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return err
	}
	if !sc.CanCreateDivision() {
		return models.AccessDenied("only administrators remove divisions", id)
	}
	if err := s.store.DeactivateDivision(ctx, id, force); err != nil {
		return err
	}
	s.log.Info().Str("division", id).Bool("force", force).Str("by", p.UserID).Msg("division deactivated")
	return nil
}

// ListDepartments lists readable departments, optionally within one division.
// An unreadable division looks missing.
func (s *Service) ListDepartments(ctx context.Context, p models.Principal, divisionID string) ([]repository.DepartmentSummary, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	if divisionID != "" {
		if !sc.CanReadDivision(divisionID) {
			return nil, models.NotFound("division", divisionID)
		}
		if _, err := s.store.GetDivision(ctx, divisionID); err != nil {
			return nil, err
		}
	}
	return s.store.ListDepartments(ctx, sc.Organization().Narrow(divisionID, ""))
}

func (s *Service) GetDepartment(ctx context.Context, p models.Principal, divisionID, id string) (*models.Department, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	if !sc.CanReadDepartment(divisionID, id) {
		return nil, models.NotFound("department", divisionID, id)
	}
	return s.store.GetDepartment(ctx, divisionID, id)
}

type DepartmentInput struct {
	ID          string
	Name        string
	ManagerID   string
	Description string
}

func (s *Service) CreateDepartment(ctx context.Context, p models.Principal, divisionID string, in DepartmentInput) (*models.Department, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	div, err := s.store.GetDivision(ctx, divisionID)
	if err != nil {
		return nil, err
	}
	if !sc.CanManageDivision(div.ID) {
		return nil, models.AccessDenied("cannot create departments in this division", divisionID)
	}
	if !div.IsActive {
		return nil, models.InvariantViolation("division is inactive", divisionID)
	}
	d := &models.Department{
		DivisionID:  div.ID,
		ID:          strings.TrimSpace(in.ID),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	if d.ID == "" || d.Name == "" {
		return nil, models.InvariantViolation("department id and name are required", divisionID)
	}
	if in.ManagerID != "" {
		if err := s.checkManager(ctx, div.ID, in.ManagerID); err != nil {
			return nil, err
		}
		d.ManagerID = &in.ManagerID
	}
	if err := s.store.CreateDepartment(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info().Str("division", d.DivisionID).Str("department", d.ID).Str("by", p.UserID).Msg("department created")
	return d, nil
}

// DepartmentUpdate holds optional changes; nil fields are left alone
type DepartmentUpdate struct {
	Name        *string
	ManagerID   *string
	Description *string
}

func (s *Service) UpdateDepartment(ctx context.Context, p models.Principal, divisionID, id string, in DepartmentUpdate) (*models.Department, error) {
	sc, err := s.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDepartment(ctx, divisionID, id)
	if err != nil {
		return nil, err
	}
	if !sc.CanWriteDepartment(divisionID, id) {
		return nil, models.AccessDenied("department is outside your scope", divisionID, id)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, models.InvariantViolation("department name cannot be empty", divisionID, id)
		}
		d.Name = name
	}
	if in.Description != nil {
		d.Description = *in.Description
	}
	if in.ManagerID != nil {
		if *in.ManagerID == "" {
			d.ManagerID = nil
		} else {
			if err := s.checkManager(ctx, divisionID, *in.ManagerID); err != nil {
				return nil, err
			}
			d.ManagerID = in.ManagerID
		}
	}
	if err := s.store.UpdateDepartment(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// checkManager requires the manager reference to be an active employee of the division
func (s *Service) checkManager(ctx context.Context, divisionID, employeeID string) error {
	m, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	if m.DivisionID != divisionID || !m.IsActive {
		return models.InvariantViolation("manager must be an active employee of the division", employeeID, divisionID)
	}
	return nil
}
