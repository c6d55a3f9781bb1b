package models

import (
	"github.com/google/uuid"
)

// namespace for name-based ids; reruns over the same inputs yield the same rows
var idNamespace = uuid.MustParse("3f1c2b8e-6a0d-4c59-9d1e-7b2a4e5f8c10")

// NewID returns a random identifier for requests, notifications and the like
func NewID() string {
	return uuid.NewString()
}

// AssignmentID is stable per (employee, date)
func AssignmentID(employeeID, date string) string {
	return uuid.NewSHA1(idNamespace, []byte("assignment|"+employeeID+"|"+date)).String()
}

// ScheduleID is stable per (division, department, period)
func ScheduleID(divisionID, departmentID, from, to string) string {
	return uuid.NewSHA1(idNamespace, []byte("schedule|"+divisionID+"|"+departmentID+"|"+from+"|"+to)).String()
}
