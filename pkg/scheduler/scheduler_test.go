package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/workforce-api/pkg/models"
)

var catalog = []models.Shift{
	{ID: "morning", Type: models.ShiftMorning, IsActive: true},
	{ID: "night", Type: models.ShiftNight, IsActive: true},
	{ID: "afternoon", Type: models.ShiftAfternoon, IsActive: true},
	{ID: "afternoon_old", Type: models.ShiftAfternoon, IsActive: false},
}

var week = []string{"2024-03-04", "2024-03-05", "2024-03-06"}

func TestAssign_PreferenceOnly(t *testing.T) {
	s := NewScheduler([]Employee{
		{ID: "e2", ShiftType: models.ShiftNight},
		{ID: "e1", ShiftType: models.ShiftMorning},
	}, catalog)

	got := s.Assign(week)

	require.Len(t, got, 6)
	assert.Empty(t, s.Conflicts)
	assert.Equal(t, "e1", got[0].EmployeeID)
	assert.Equal(t, "2024-03-04", got[0].Date)
	assert.Equal(t, "morning", got[0].ShiftID)
	assert.Equal(t, "e2", got[1].EmployeeID)
	assert.Equal(t, "night", got[1].ShiftID)
	for _, a := range got {
		assert.Equal(t, models.SourcePreference, a.Source)
		assert.Nil(t, a.RequestID)
		assert.Equal(t, models.AssignmentID(a.EmployeeID, a.Date), a.ID)
	}
}

func TestAssign_OverrideBeatsPreference(t *testing.T) {
	s := NewScheduler([]Employee{{ID: "e1", ShiftType: models.ShiftMorning}}, catalog)
	s.Prefill([]Override{{ID: "o1", RequestID: "r1", EmployeeID: "e1", Date: "2024-03-05", ShiftID: "night", ApprovedAt: time.Now()}})

	got := s.Assign(week)

	require.Len(t, got, 3)
	assert.Equal(t, "morning", got[0].ShiftID)
	assert.Equal(t, "night", got[1].ShiftID)
	assert.Equal(t, models.SourceOverride, got[1].Source)
	require.NotNil(t, got[1].RequestID)
	assert.Equal(t, "r1", *got[1].RequestID)
	assert.Equal(t, "morning", got[2].ShiftID)
}

func TestPrefill_LaterApprovalWins(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	first := Override{ID: "o1", RequestID: "r1", EmployeeID: "e1", Date: "2024-03-05", ShiftID: "night", ApprovedAt: t0}
	second := Override{ID: "o2", RequestID: "r2", EmployeeID: "e1", Date: "2024-03-05", ShiftID: "afternoon", ApprovedAt: t0.Add(time.Hour)}

	s := NewScheduler([]Employee{{ID: "e1", ShiftType: models.ShiftMorning}}, catalog)
	// input order must not matter
	s.Prefill([]Override{second, first})

	shiftID, source, requestID, _, ok := s.Resolve("e1", "2024-03-05")
	require.True(t, ok)
	assert.Equal(t, "afternoon", shiftID)
	assert.Equal(t, models.SourceOverride, source)
	assert.Equal(t, "r2", requestID)

	require.Len(t, s.Superseded, 1)
	assert.Equal(t, "o1", s.Superseded[0].Loser.ID)
	assert.Equal(t, "o2", s.Superseded[0].Winner.ID)
}

func TestAssign_IncompleteEmployeeIsIsolated(t *testing.T) {
	s := NewScheduler([]Employee{
		{ID: "e1", ShiftType: models.ShiftMorning},
		{ID: "e2"},
		{ID: "e3", ShiftType: models.ShiftSwing},
	}, catalog)

	got := s.Assign(week)

	require.Len(t, got, 3)
	for _, a := range got {
		assert.Equal(t, "e1", a.EmployeeID)
	}
	assert.Equal(t, []string{"e2", "e3"}, s.Incomplete())
	assert.Equal(t, []string{"no shift preference"}, s.Conflicts[0].Reasons)
	assert.Equal(t, week, s.Conflicts[0].Dates)
	assert.Equal(t, []string{"no active swing shift in catalog"}, s.Conflicts[1].Reasons)
}

func TestAssign_OverridesCoverMissingPreference(t *testing.T) {
	s := NewScheduler([]Employee{{ID: "e1"}}, catalog)
	var overrides []Override
	for i, d := range week {
		overrides = append(overrides, Override{ID: d, RequestID: "r", EmployeeID: "e1", Date: d, ShiftID: "night", ApprovedAt: time.Unix(int64(i), 0)})
	}
	s.Prefill(overrides)

	got := s.Assign(week)

	assert.Len(t, got, 3)
	assert.Empty(t, s.Incomplete())
}

func TestAssign_Idempotent(t *testing.T) {
	build := func() []models.Assignment {
		s := NewScheduler([]Employee{
			{ID: "e1", ShiftType: models.ShiftMorning},
			{ID: "e2", ShiftType: models.ShiftAfternoon},
			{ID: "e3", ShiftType: models.ShiftNight},
		}, catalog)
		s.Prefill([]Override{{ID: "o1", RequestID: "r1", EmployeeID: "e3", Date: "2024-03-06", ShiftID: "morning"}})
		return s.Assign(week)
	}

	assert.Equal(t, build(), build())
}

func TestNewScheduler_CatalogSkipsInactiveAndPicksLowestID(t *testing.T) {
	s := NewScheduler(nil, []models.Shift{
		{ID: "b_morning", Type: models.ShiftMorning, IsActive: true},
		{ID: "a_morning", Type: models.ShiftMorning, IsActive: true},
		{ID: "0_morning", Type: models.ShiftMorning, IsActive: false},
	})
	assert.Equal(t, "a_morning", s.Catalog[models.ShiftMorning])
}

func TestCoverage(t *testing.T) {
	cov := Coverage([]models.Assignment{
		{EmployeeID: "e1", Date: "2024-03-04", ShiftID: "morning"},
		{EmployeeID: "e2", Date: "2024-03-04", ShiftID: "morning"},
		{EmployeeID: "e3", Date: "2024-03-04", ShiftID: "night"},
		{EmployeeID: "e1", Date: "2024-03-05", ShiftID: "night"},
	})
	assert.Equal(t, 2, cov["2024-03-04"]["morning"])
	assert.Equal(t, 1, cov["2024-03-04"]["night"])
	assert.Equal(t, 1, cov["2024-03-05"]["night"])
}
