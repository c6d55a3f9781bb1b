// Package testdb provides a migrated in-memory database and a small quality
// division fixture for package tests.
package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnavshah/workforce-api/internal/logger"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/pkg/database"
	"github.com/arnavshah/workforce-api/pkg/models"
)

// Open returns a fresh migrated SQLite database private to the test
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Path:   "file::memory:",
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Fixture ids
const (
	AdminUser = "u-admin"

	QualityHead   = "EMP100" // division_manager of quality
	IncomingLead  = "EMP110" // department_manager of qc_incoming
	ProcessLead   = "EMP120" // department_manager of qc_process
	IncomingAlice = "EMP111" // employee in qc_incoming, morning
	IncomingBob   = "EMP112" // employee in qc_incoming, night
	ProcessCarol  = "EMP121" // employee in qc_process, afternoon
	LineDave      = "EMP200" // employee in production/prod_line_a, swing
)

// Fixture is the seeded organization
type Fixture struct {
	Store *repository.Store
	Admin models.Principal
	// Principals by employee id
	People map[string]models.Principal
}

func (f *Fixture) P(employeeID string) models.Principal {
	return f.People[employeeID]
}

// Seed builds two divisions, the four quality departments, the shift catalog
// and a handful of people
func Seed(t testing.TB, db *gorm.DB) *Fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.New(db)

	now := time.Now().UTC()
	for _, d := range []models.Division{
		{ID: "quality", Name: "Quality Control", Color: "green", IsActive: true, CreatedAt: now},
		{ID: "production", Name: "Production", Color: "blue", IsActive: true, CreatedAt: now},
	} {
		d := d
		require.NoError(t, store.CreateDivision(ctx, &d))
	}
	for _, d := range []models.Department{
		{DivisionID: "quality", ID: "qc_incoming", Name: "Incoming Inspection"},
		{DivisionID: "quality", ID: "qc_process", Name: "Process Quality"},
		{DivisionID: "quality", ID: "qc_final", Name: "Final Inspection"},
		{DivisionID: "quality", ID: "qa_audit", Name: "QA Audit"},
		{DivisionID: "production", ID: "prod_line_a", Name: "Production Line A"},
	} {
		d := d
		d.IsActive = true
		d.CreatedAt = now
		require.NoError(t, store.CreateDepartment(ctx, &d))
	}
	for _, sh := range []models.Shift{
		{ID: "morning", Name: "Morning Shift", Type: models.ShiftMorning, StartTime: "08:00", EndTime: "16:00"},
		{ID: "afternoon", Name: "Afternoon Shift", Type: models.ShiftAfternoon, StartTime: "16:00", EndTime: "00:00"},
		{ID: "night", Name: "Night Shift", Type: models.ShiftNight, StartTime: "00:00", EndTime: "08:00"},
		{ID: "swing", Name: "Swing Shift", Type: models.ShiftSwing, StartTime: "12:00", EndTime: "20:00"},
	} {
		sh := sh
		sh.DurationHours = 8
		sh.IsActive = true
		sh.CreatedAt = now
		require.NoError(t, store.CreateShift(ctx, &sh))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, store.CreateUser(ctx, &models.User{
		ID: AdminUser, Username: "admin", PasswordHash: string(hash), FullName: "Administrator",
		Role: models.RoleAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	people := []struct {
		id, username, name string
		role               models.Role
		division, dept     string
		shift              models.ShiftType
	}{
		{QualityHead, "quality.head", "Quinn Head", models.RoleDivisionManager, "quality", "", models.ShiftMorning},
		{IncomingLead, "incoming.lead", "Ivy Lead", models.RoleDepartmentManager, "quality", "qc_incoming", models.ShiftMorning},
		{ProcessLead, "process.lead", "Pat Lead", models.RoleDepartmentManager, "quality", "qc_process", models.ShiftMorning},
		{IncomingAlice, "alice", "Alice Inspector", models.RoleEmployee, "quality", "qc_incoming", models.ShiftMorning},
		{IncomingBob, "bob", "Bob Inspector", models.RoleEmployee, "quality", "qc_incoming", models.ShiftNight},
		{ProcessCarol, "carol", "Carol Analyst", models.RoleEmployee, "quality", "qc_process", models.ShiftAfternoon},
		{LineDave, "dave", "Dave Operator", models.RoleEmployee, "production", "prod_line_a", models.ShiftSwing},
	}

	fx := &Fixture{Store: store, People: make(map[string]models.Principal)}
	for _, p := range people {
		u := &models.User{
			ID: "u-" + p.id, Username: p.username, PasswordHash: string(hash), FullName: p.name,
			Email: p.username + "@factory.test", Role: p.role, IsActive: true, CreatedAt: now, UpdatedAt: now,
		}
		shift := p.shift
		e := &models.Employee{
			ID: p.id, DivisionID: p.division, Position: "Staff", ShiftType: &shift,
			IsActive: true, HireDate: "2023-01-09", CreatedAt: now, UpdatedAt: now,
		}
		if p.dept != "" {
			dept := p.dept
			e.DepartmentID = &dept
		}
		require.NoError(t, store.CreateEmployee(ctx, u, e))

		principal, err := store.LoadPrincipal(ctx, u.ID)
		require.NoError(t, err)
		fx.People[p.id] = principal
	}

	admin, err := store.LoadPrincipal(ctx, AdminUser)
	require.NoError(t, err)
	fx.Admin = admin
	return fx
}
