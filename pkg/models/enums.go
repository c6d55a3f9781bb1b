package models

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin             Role = "admin"
	RoleDivisionManager   Role = "division_manager"
	RoleDepartmentManager Role = "department_manager"
	RoleEmployee          Role = "employee"
)

// Valid reports whether r is one of the four known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDivisionManager, RoleDepartmentManager, RoleEmployee:
		return true
	}
	return false
}

// DivisionLevel reports whether users of this role may exist without a department
func (r Role) DivisionLevel() bool {
	return r == RoleAdmin || r == RoleDivisionManager
}

type RequestType string

const (
	RequestLeave       RequestType = "leave"
	RequestShiftSwap   RequestType = "shift_swap"
	RequestOvertime    RequestType = "overtime"
	RequestShiftChange RequestType = "shift_change"
)

func (t RequestType) Valid() bool {
	switch t {
	case RequestLeave, RequestShiftSwap, RequestOvertime, RequestShiftChange:
		return true
	}
	return false
}

// ChangesSchedule reports whether approval must reconcile assignments
func (t RequestType) ChangesSchedule() bool {
	return t == RequestShiftSwap || t == RequestShiftChange
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

type ShiftType string

const (
	ShiftMorning   ShiftType = "morning"
	ShiftAfternoon ShiftType = "afternoon"
	ShiftNight     ShiftType = "night"
	ShiftSwing     ShiftType = "swing"
)

func (t ShiftType) Valid() bool {
	switch t {
	case ShiftMorning, ShiftAfternoon, ShiftNight, ShiftSwing:
		return true
	}
	return false
}

type NotificationType string

const (
	NotificationInfo     NotificationType = "info"
	NotificationAlert    NotificationType = "alert"
	NotificationWarning  NotificationType = "warning"
	NotificationSuccess  NotificationType = "success"
	NotificationApproval NotificationType = "approval"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationAlert, NotificationWarning, NotificationSuccess, NotificationApproval:
		return true
	}
	return false
}

type ScheduleStatus string

const (
	ScheduleDraft    ScheduleStatus = "draft"
	ScheduleApproved ScheduleStatus = "approved"
)

type AssignmentSource string

const (
	SourcePreference AssignmentSource = "preference"
	SourceOverride   AssignmentSource = "override"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// ParseDate parses a YYYY-MM-DD date in UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DateRange expands [from, to] into consecutive dates. It returns an error if
// either bound is malformed or to is before from.
func DateRange(from, to string) ([]string, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", to, from)
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}
