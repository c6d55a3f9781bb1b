// Package seed loads the shift catalog and, optionally, the sample plant
// layout and demo accounts. Every step skips rows that already exist.
package seed

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/pkg/auth"
	"github.com/arnavshah/workforce-api/pkg/models"
)

type division struct {
	id, name, color string
	departments     [][2]string
}

var plant = []division{
	{"production", "Production Division", "blue", [][2]string{
		{"prod_line_a", "Production Line A"},
		{"prod_line_b", "Production Line B"},
		{"prod_line_c", "Production Line C"},
		{"assembly", "Assembly Unit"},
	}},
	{"quality", "Quality Assurance Division", "green", [][2]string{
		{"qc_incoming", "Incoming QC"},
		{"qc_process", "Process QC"},
		{"qc_final", "Final QC"},
		{"qa_audit", "QA Audit"},
	}},
	{"maintenance", "Maintenance Division", "orange", [][2]string{
		{"mechanical", "Mechanical Maintenance"},
		{"electrical", "Electrical Maintenance"},
		{"preventive", "Preventive Maintenance"},
	}},
	{"logistics", "Logistics Division", "purple", [][2]string{
		{"warehouse", "Warehouse"},
		{"shipping", "Shipping & Receiving"},
		{"inventory", "Inventory Control"},
	}},
	{"admin", "Administrative Division", "gray", [][2]string{
		{"hr", "Human Resources"},
		{"finance", "Finance"},
		{"it", "IT Support"},
		{"facilities", "Facilities"},
	}},
}

var shifts = []models.Shift{
	{ID: "morning", Name: "Morning Shift", Type: models.ShiftMorning, StartTime: "08:00", EndTime: "16:00", DurationHours: 8, Color: "blue"},
	{ID: "afternoon", Name: "Afternoon Shift", Type: models.ShiftAfternoon, StartTime: "16:00", EndTime: "00:00", DurationHours: 8, Color: "green"},
	{ID: "night", Name: "Night Shift", Type: models.ShiftNight, StartTime: "00:00", EndTime: "08:00", DurationHours: 8, Color: "purple"},
	{ID: "swing", Name: "Swing Shift", Type: models.ShiftSwing, StartTime: "12:00", EndTime: "20:00", DurationHours: 8, Color: "orange"},
}

type account struct {
	id, username, name, position string
	role                         models.Role
	division, department         string
	shift                        models.ShiftType
}

// DemoPassword is shared by every demo account
const DemoPassword = "password123"

var demo = []account{
	{"MGR001", "manager.prod", "Production Manager", "Production Manager", models.RoleDivisionManager, "production", "", models.ShiftMorning},
	{"MGR002", "lead.incoming", "Robert Chen", "Incoming QC Lead", models.RoleDepartmentManager, "quality", "qc_incoming", models.ShiftMorning},
	{"EMP001", "john.doe", "John Doe", "Production Operator", models.RoleEmployee, "production", "prod_line_a", models.ShiftMorning},
	{"EMP002", "jane.smith", "Jane Smith", "Quality Inspector", models.RoleEmployee, "quality", "qc_incoming", models.ShiftAfternoon},
}

type Seeder struct {
	store  *repository.Store
	hasher auth.Hasher
	log    zerolog.Logger
}

func New(store *repository.Store, hasher auth.Hasher, log zerolog.Logger) *Seeder {
	return &Seeder{store: store, hasher: hasher, log: log.With().Str("component", "seed").Logger()}
}

// Shifts makes sure the standard catalog exists
func (s *Seeder) Shifts(ctx context.Context) error {
	now := time.Now().UTC()
	for _, sh := range shifts {
		if _, err := s.store.GetShift(ctx, sh.ID); err == nil {
			continue
		} else if models.KindOf(err) != models.KindNotFound {
			return err
		}
		sh.IsActive = true
		sh.CreatedAt = now
		if err := s.store.CreateShift(ctx, &sh); err != nil {
			return err
		}
		s.log.Debug().Str("shift", sh.ID).Msg("shift seeded")
	}
	return nil
}

// Sample creates the plant layout and demo accounts
func (s *Seeder) Sample(ctx context.Context) error {
	now := time.Now().UTC()
	for _, d := range plant {
		if _, err := s.store.GetDivision(ctx, d.id); err != nil {
			if models.KindOf(err) != models.KindNotFound {
				return err
			}
			if err := s.store.CreateDivision(ctx, &models.Division{ID: d.id, Name: d.name, Color: d.color, IsActive: true, CreatedAt: now}); err != nil {
				return err
			}
		}
		for _, dept := range d.departments {
			if _, err := s.store.GetDepartment(ctx, d.id, dept[0]); err == nil {
				continue
			} else if models.KindOf(err) != models.KindNotFound {
				return err
			}
			if err := s.store.CreateDepartment(ctx, &models.Department{
				DivisionID: d.id, ID: dept[0], Name: dept[1], IsActive: true, CreatedAt: now,
			}); err != nil {
				return err
			}
		}
	}

	hash, err := s.hasher.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	hired := now.AddDate(-1, 0, 0).Format(models.DateLayout)
	created := 0
	for _, a := range demo {
		if _, err := s.store.GetUserByUsername(ctx, a.username); err == nil {
			continue
		} else if models.KindOf(err) != models.KindNotFound {
			return err
		}
		u := &models.User{
			ID:           models.NewID(),
			Username:     a.username,
			PasswordHash: hash,
			FullName:     a.name,
			Email:        a.username + "@factory.com",
			AvatarURL:    "https://api.dicebear.com/7.x/avataaars/svg?seed=" + strings.ReplaceAll(a.name, " ", ""),
			Role:         a.role,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		shift := a.shift
		e := &models.Employee{
			ID:         a.id,
			DivisionID: a.division,
			Position:   a.position,
			ShiftType:  &shift,
			IsActive:   true,
			HireDate:   hired,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if a.department != "" {
			dept := a.department
			e.DepartmentID = &dept
		}
		if err := s.store.CreateEmployee(ctx, u, e); err != nil {
			return err
		}
		created++
	}
	s.log.Info().Int("divisions", len(plant)).Int("accounts", created).Msg("sample data ready")
	return nil
}
