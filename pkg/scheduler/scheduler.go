package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/arnavshah/workforce-api/pkg/models"
)

// Employee is the generator's view of a staff member
type Employee struct {
	ID        string
	ShiftType models.ShiftType
}

// Override is an approved shift change pinned to one employee-date
type Override struct {
	ID         string
	RequestID  string
	EmployeeID string
	Date       string
	ShiftID    string
	ApprovedAt time.Time
}

// Supersession records an override that lost to a later one on the same employee-date
type Supersession struct {
	Loser  Override
	Winner Override
}

// ConflictReason explains why an employee could not be scheduled
type ConflictReason struct {
	EmployeeID string   `json:"employee_id"`
	Dates      []string `json:"dates"`
	Reasons    []string `json:"reasons"`
}

// Scheduler resolves one shift per (employee, date): an approved override
// wins, then the employee's shift-type preference.
type Scheduler struct {
	Employees  map[string]*Employee
	Catalog    map[models.ShiftType]string // shift type -> shift id
	Conflicts  []ConflictReason
	Superseded []Supersession

	overrides map[string]map[string]Override // employee -> date -> winner
}

// NewScheduler builds a scheduler over the given employees. When the catalog
// holds several shifts of one type, the lowest id is used.
func NewScheduler(employees []Employee, shifts []models.Shift) *Scheduler {
	emps := make(map[string]*Employee, len(employees))
	for i := range employees {
		emps[employees[i].ID] = &employees[i]
	}
	catalog := make(map[models.ShiftType]string)
	for _, sh := range shifts {
		if !sh.IsActive {
			continue
		}
		if cur, ok := catalog[sh.Type]; !ok || sh.ID < cur {
			catalog[sh.Type] = sh.ID
		}
	}
	return &Scheduler{
		Employees: emps,
		Catalog:   catalog,
		overrides: make(map[string]map[string]Override),
	}
}

// Prefill records approved overrides. Of several overrides on the same
// employee-date the later-approved one wins (request id breaks ties) and the
// others are recorded in Superseded.
func (s *Scheduler) Prefill(overrides []Override) {
	sorted := append([]Override(nil), overrides...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ApprovedAt.Equal(sorted[j].ApprovedAt) {
			return sorted[i].ApprovedAt.Before(sorted[j].ApprovedAt)
		}
		return sorted[i].RequestID < sorted[j].RequestID
	})

	for _, o := range sorted {
		if _, ok := s.Employees[o.EmployeeID]; !ok {
			continue
		}
		byDate, ok := s.overrides[o.EmployeeID]
		if !ok {
			byDate = make(map[string]Override)
			s.overrides[o.EmployeeID] = byDate
		}
		if prev, ok := byDate[o.Date]; ok {
			s.Superseded = append(s.Superseded, Supersession{Loser: prev, Winner: o})
		}
		byDate[o.Date] = o
	}
}

// Resolve returns the shift for one employee-date, or ok=false with the reason
func (s *Scheduler) Resolve(employeeID, date string) (shiftID string, source models.AssignmentSource, requestID string, reason string, ok bool) {
	if o, found := s.overrides[employeeID][date]; found {
		return o.ShiftID, models.SourceOverride, o.RequestID, "", true
	}
	emp, found := s.Employees[employeeID]
	if !found {
		return "", "", "", "not in scope", false
	}
	if emp.ShiftType == "" {
		return "", "", "", "no shift preference", false
	}
	id, found := s.Catalog[emp.ShiftType]
	if !found {
		return "", "", "", fmt.Sprintf("no active %s shift in catalog", emp.ShiftType), false
	}
	return id, models.SourcePreference, "", "", true
}

// Assign resolves every employee on every date. An employee with any
// unresolvable date gets no assignments at all and a ConflictReason instead.
// The result is ordered by date, then employee id.
func (s *Scheduler) Assign(dates []string) []models.Assignment {
	ids := make([]string, 0, len(s.Employees))
	for id := range s.Employees {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	perEmployee := make(map[string][]models.Assignment, len(ids))
	for _, id := range ids {
		var rows []models.Assignment
		var failed []string
		reasons := map[string]bool{}
		for _, date := range dates {
			shiftID, source, requestID, reason, ok := s.Resolve(id, date)
			if !ok {
				failed = append(failed, date)
				reasons[reason] = true
				continue
			}
			a := models.Assignment{
				ID:         models.AssignmentID(id, date),
				EmployeeID: id,
				Date:       date,
				ShiftID:    shiftID,
				Source:     source,
			}
			if requestID != "" {
				rid := requestID
				a.RequestID = &rid
			}
			rows = append(rows, a)
		}
		if len(failed) > 0 {
			s.Conflicts = append(s.Conflicts, ConflictReason{
				EmployeeID: id,
				Dates:      failed,
				Reasons:    sortedKeys(reasons),
			})
			continue
		}
		perEmployee[id] = rows
	}

	var out []models.Assignment
	for i := range dates {
		for _, id := range ids {
			if rows, ok := perEmployee[id]; ok {
				out = append(out, rows[i])
			}
		}
	}
	return out
}

// Incomplete returns the ids of employees that could not be scheduled
func (s *Scheduler) Incomplete() []string {
	ids := make([]string, 0, len(s.Conflicts))
	for _, c := range s.Conflicts {
		ids = append(ids, c.EmployeeID)
	}
	return ids
}

// Coverage counts assigned employees per date and shift
func Coverage(assignments []models.Assignment) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, a := range assignments {
		byShift, ok := out[a.Date]
		if !ok {
			byShift = make(map[string]int)
			out[a.Date] = byShift
		}
		byShift[a.ShiftID]++
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
