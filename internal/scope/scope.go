// Package scope decides what a principal may read and write in the
// organization graph. A Scope is computed from the principal and a snapshot
// of the graph taken at the time of the call; it is never cached.
package scope

import (
	"context"

	"github.com/arnavshah/workforce-api/pkg/models"
)

type kind int

const (
	kindNone kind = iota
	kindAll
	kindDivision
	kindDepartment
	kindSelf
)

// DeptKey identifies a department within its division
type DeptKey struct {
	DivisionID   string
	DepartmentID string
}

// Snapshot is the part of the graph the resolver needs: which divisions and
// departments currently exist and are active.
type Snapshot struct {
	Divisions   map[string]bool
	Departments map[DeptKey]bool
}

// Source loads a fresh Snapshot
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

type Scope struct {
	Principal models.Principal

	kind         kind
	divisionID   string
	departmentID string
	employeeID   string
}

// Compute is the pure scope function. A principal whose placement does not
// match the snapshot (missing division, department outside its division,
// unknown role) gets an empty scope.
func Compute(p models.Principal, snap Snapshot) Scope {
	s := Scope{Principal: p}
	switch p.Role {
	case models.RoleAdmin:
		s.kind = kindAll
	case models.RoleDivisionManager:
		if p.DivisionID != "" && snap.Divisions[p.DivisionID] {
			s.kind = kindDivision
			s.divisionID = p.DivisionID
		}
	case models.RoleDepartmentManager:
		key := DeptKey{p.DivisionID, p.DepartmentID}
		if p.DivisionID != "" && p.DepartmentID != "" && snap.Divisions[p.DivisionID] && snap.Departments[key] {
			s.kind = kindDepartment
			s.divisionID = p.DivisionID
			s.departmentID = p.DepartmentID
		}
	case models.RoleEmployee:
		if p.EmployeeID != "" {
			s.kind = kindSelf
			s.divisionID = p.DivisionID
			s.departmentID = p.DepartmentID
			s.employeeID = p.EmployeeID
		}
	}
	return s
}

// Resolver recomputes a Scope from a fresh snapshot on every call
type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

func (r *Resolver) For(ctx context.Context, p models.Principal) (Scope, error) {
	snap, err := r.src.Snapshot(ctx)
	if err != nil {
		return Scope{Principal: p}, err
	}
	return Compute(p, snap), nil
}

func (s Scope) IsAdmin() bool { return s.kind == kindAll }

// Empty reports whether nothing at all is visible
func (s Scope) Empty() bool { return s.kind == kindNone }

func (s Scope) CanReadDivision(id string) bool {
	switch s.kind {
	case kindAll:
		return true
	case kindDivision, kindDepartment:
		return id == s.divisionID
	}
	return false
}

// CanCreateDivision covers both creation and removal of divisions
func (s Scope) CanCreateDivision() bool {
	return s.kind == kindAll
}

// CanManageDivision reports write access to everything inside a division
func (s Scope) CanManageDivision(id string) bool {
	switch s.kind {
	case kindAll:
		return true
	case kindDivision:
		return id == s.divisionID
	}
	return false
}

func (s Scope) CanReadDepartment(divisionID, departmentID string) bool {
	switch s.kind {
	case kindAll:
		return true
	case kindDivision:
		return divisionID == s.divisionID
	case kindDepartment:
		return divisionID == s.divisionID && departmentID == s.departmentID
	}
	return false
}

func (s Scope) CanWriteDepartment(divisionID, departmentID string) bool {
	return s.CanReadDepartment(divisionID, departmentID)
}

func (s Scope) CanReadEmployee(e *models.Employee) bool {
	if e == nil {
		return false
	}
	if s.kind == kindSelf {
		return e.ID == s.employeeID
	}
	return s.CanWriteEmployee(e)
}

// CanWriteEmployee covers every mutation concerning the employee, including
// resolving their requests. Employees never have write access.
func (s Scope) CanWriteEmployee(e *models.Employee) bool {
	if e == nil {
		return false
	}
	return s.covers(e.DivisionID, e.Dept())
}

// covers reports whether a placement lies inside the manager's write area
func (s Scope) covers(divisionID, departmentID string) bool {
	switch s.kind {
	case kindAll:
		return true
	case kindDivision:
		return divisionID == s.divisionID
	case kindDepartment:
		return divisionID == s.divisionID && departmentID != "" && departmentID == s.departmentID
	}
	return false
}

// CanGrant reports whether the principal may create a user with role r
func (s Scope) CanGrant(r models.Role) bool {
	switch s.kind {
	case kindAll:
		return r == models.RoleDivisionManager || r == models.RoleDepartmentManager || r == models.RoleEmployee
	case kindDivision:
		return r == models.RoleDepartmentManager || r == models.RoleEmployee
	case kindDepartment:
		return r == models.RoleEmployee
	}
	return false
}

// Placement returns the division and department the scope is anchored to
func (s Scope) Placement() (divisionID, departmentID string) {
	return s.divisionID, s.departmentID
}

// CanReadSchedule reports whether a schedule generated for (divisionID,
// departmentID) covers the principal's area. Empty ids mean plant-wide or
// division-wide schedules.
func (s Scope) CanReadSchedule(divisionID, departmentID string) bool {
	switch s.kind {
	case kindAll:
		return true
	case kindNone:
		return false
	}
	if divisionID == "" {
		return true
	}
	if divisionID != s.divisionID {
		return false
	}
	return departmentID == "" || s.departmentID == "" || departmentID == s.departmentID
}

// CanManageSchedule reports whether the principal may generate or approve a
// schedule for (divisionID, departmentID)
func (s Scope) CanManageSchedule(divisionID, departmentID string) bool {
	switch {
	case departmentID != "":
		return s.CanWriteDepartment(divisionID, departmentID)
	case divisionID != "":
		return s.CanManageDivision(divisionID)
	}
	return s.IsAdmin()
}

// Filter is a SQL-friendly description of the visible employees
type Filter struct {
	None         bool
	All          bool
	DivisionID   string
	DepartmentID string
	EmployeeID   string
}

// Employees returns the filter selecting readable employees
func (s Scope) Employees() Filter {
	switch s.kind {
	case kindAll:
		return Filter{All: true}
	case kindDivision:
		return Filter{DivisionID: s.divisionID}
	case kindDepartment:
		return Filter{DivisionID: s.divisionID, DepartmentID: s.departmentID}
	case kindSelf:
		return Filter{EmployeeID: s.employeeID}
	}
	return Filter{None: true}
}

// Organization returns the filter selecting readable divisions and departments.
// Employees see no organization listings.
func (s Scope) Organization() Filter {
	switch s.kind {
	case kindAll:
		return Filter{All: true}
	case kindDivision:
		return Filter{DivisionID: s.divisionID}
	case kindDepartment:
		return Filter{DivisionID: s.divisionID, DepartmentID: s.departmentID}
	}
	return Filter{None: true}
}

// Narrow intersects the filter with an optional caller-supplied placement.
// The result is None when the requested placement lies outside the filter.
func (f Filter) Narrow(divisionID, departmentID string) Filter {
	if f.None {
		return f
	}
	if divisionID != "" {
		if f.DivisionID != "" && f.DivisionID != divisionID {
			return Filter{None: true}
		}
		f.DivisionID = divisionID
		f.All = false
	}
	if departmentID != "" {
		if f.DepartmentID != "" && f.DepartmentID != departmentID {
			return Filter{None: true}
		}
		f.DepartmentID = departmentID
		f.All = false
	}
	return f
}
