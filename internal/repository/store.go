// Package repository is the gorm-backed persistence layer. Every method takes
// a context; a Store obtained inside Transaction runs on that transaction.
package repository

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn on a Store bound to a single database transaction.
// Code inside fn must only use tx; the SQLite pool has a single connection.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) q(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Snapshot implements scope.Source
func (s *Store) Snapshot(ctx context.Context) (scope.Snapshot, error) {
	snap := scope.Snapshot{
		Divisions:   make(map[string]bool),
		Departments: make(map[scope.DeptKey]bool),
	}

	var divisionIDs []string
	if err := s.q(ctx).Model(&models.Division{}).Where("is_active = ?", true).Pluck("id", &divisionIDs).Error; err != nil {
		return snap, wrap(err, "load divisions")
	}
	for _, id := range divisionIDs {
		snap.Divisions[id] = true
	}

	var depts []models.Department
	if err := s.q(ctx).Select("division_id", "id").Where("is_active = ?", true).Find(&depts).Error; err != nil {
		return snap, wrap(err, "load departments")
	}
	for _, d := range depts {
		snap.Departments[scope.DeptKey{DivisionID: d.DivisionID, DepartmentID: d.ID}] = true
	}
	return snap, nil
}

// notFound maps gorm's missing-row error onto the domain error
func notFound(err error, entity string, ids ...string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NotFound(entity, ids...)
	}
	return wrap(err, "load "+entity)
}

// duplicate maps unique-constraint failures onto InvariantViolation
func duplicate(err error, entity string, ids ...string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return models.InvariantViolation(entity+" already exists", ids...)
	}
	return wrap(err, "create "+entity)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *models.Error
	if errors.As(err, &de) {
		return err
	}
	return pkgerrors.Wrap(err, msg)
}

// applyEmployeeFilter restricts q to the employees selected by f. table is the
// name or alias under which the employees table appears in q.
func applyEmployeeFilter(q *gorm.DB, f scope.Filter, table string) *gorm.DB {
	if f.None {
		return q.Where("1 = 0")
	}
	if f.EmployeeID != "" {
		q = q.Where(table+".id = ?", f.EmployeeID)
	}
	if f.DivisionID != "" {
		q = q.Where(table+".division_id = ?", f.DivisionID)
	}
	if f.DepartmentID != "" {
		q = q.Where(table+".department_id = ?", f.DepartmentID)
	}
	return q
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page clamps paging parameters
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}
