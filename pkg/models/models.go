package models

import (
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Division is a top-level organizational unit, e.g. "quality"
type Division struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Color       string    `gorm:"size:32" json:"color"`
	Description string    `json:"description"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Department belongs to exactly one Division and is never reparented
type Department struct {
	DivisionID  string    `gorm:"primaryKey;size:64" json:"division_id"`
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	ManagerID   *string   `gorm:"size:64" json:"manager_id"`
	Description string    `json:"description"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is the login identity. Role lives here; placement lives on the linked Employee.
type User struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"size:200" json:"full_name"`
	Email        string    `gorm:"size:200" json:"email"`
	AvatarURL    string    `json:"avatar_url"`
	Role         Role      `gorm:"size:32;not null" json:"role"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Employee is a staff member placed in a Division and (usually) a Department
type Employee struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	UserID       string     `gorm:"uniqueIndex;size:64;not null" json:"user_id"`
	DivisionID   string     `gorm:"size:64;not null" json:"division_id"`
	DepartmentID *string    `gorm:"size:64" json:"department_id"`
	Position     string     `gorm:"size:200" json:"position"`
	ShiftType    *ShiftType `gorm:"size:32" json:"shift_type"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	HireDate     string     `gorm:"size:10" json:"hire_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Dept returns the department id or "" when the employee sits at division level.
func (e *Employee) Dept() string {
	if e.DepartmentID == nil {
		return ""
	}
	return *e.DepartmentID
}

// Shift is an entry of the shift catalog
type Shift struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Type          ShiftType `gorm:"size:32;not null" json:"type"`
	StartTime     string    `gorm:"size:5;not null" json:"start_time"`
	EndTime       string    `gorm:"size:5;not null" json:"end_time"`
	DurationHours float64   `json:"duration_hours"`
	Color         string    `gorm:"size:32" json:"color"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Request is a leave / shift_swap / overtime / shift_change request.
// Type-specific payload fields are nil when they do not apply.
type Request struct {
	ID                 string        `gorm:"primaryKey;size:64" json:"id"`
	EmployeeID         string        `gorm:"size:64;not null;index" json:"employee_id"`
	SubmittedBy        string        `gorm:"size:64;not null" json:"submitted_by"`
	Type               RequestType   `gorm:"size:32;not null" json:"type"`
	Status             RequestStatus `gorm:"size:32;not null;index" json:"status"`
	StartDate          string        `gorm:"size:10;not null" json:"start_date"`
	EndDate            *string       `gorm:"size:10" json:"end_date"`
	ShiftID            *string       `gorm:"size:64" json:"shift_id"`
	SwapWithEmployeeID *string       `gorm:"size:64" json:"swap_with_employee_id"`
	Hours              *float64      `json:"hours"`
	Reason             string        `json:"reason"`
	Notes              *string       `json:"notes"`
	NotesProvided      bool          `gorm:"not null" json:"notes_provided"`
	ResolvedBy         *string       `gorm:"size:64" json:"resolved_by"`
	ResolvedAt         *time.Time    `json:"resolved_at"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// LastDate returns the inclusive end of the request period.
func (r *Request) LastDate() string {
	if r.EndDate == nil || *r.EndDate == "" {
		return r.StartDate
	}
	return *r.EndDate
}

// Schedule groups the assignments generated for one scope and period
type Schedule struct {
	ID           string         `gorm:"primaryKey;size:64" json:"id"`
	DivisionID   string         `gorm:"size:64" json:"division_id"`
	DepartmentID string         `gorm:"size:64" json:"department_id"`
	StartDate    string         `gorm:"size:10;not null" json:"start_date"`
	EndDate      string         `gorm:"size:10;not null" json:"end_date"`
	Status       ScheduleStatus `gorm:"size:32;not null" json:"status"`
	GeneratedBy  string         `gorm:"size:64;not null" json:"generated_by"`
	ApprovedBy   *string        `gorm:"size:64" json:"approved_by"`
	ApprovedAt   *time.Time     `json:"approved_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Assignment binds one employee to one shift on one date
type Assignment struct {
	ID         string           `gorm:"primaryKey;size:64" json:"id"`
	ScheduleID *string          `gorm:"size:64" json:"schedule_id"`
	EmployeeID string           `gorm:"size:64;not null;uniqueIndex:idx_assignment_employee_date" json:"employee_id"`
	Date       string           `gorm:"size:10;not null;uniqueIndex:idx_assignment_employee_date" json:"date"`
	ShiftID    string           `gorm:"size:64;not null" json:"shift_id"`
	Source     AssignmentSource `gorm:"size:32;not null" json:"source"`
	RequestID  *string          `gorm:"size:64" json:"request_id"`
}

// ShiftOverride records an approved shift_change / shift_swap for one employee-date.
// A superseded override keeps its row with SupersededBy pointing at the winner.
type ShiftOverride struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	RequestID    string    `gorm:"size:64;not null" json:"request_id"`
	EmployeeID   string    `gorm:"size:64;not null;index:idx_override_employee_date" json:"employee_id"`
	Date         string    `gorm:"size:10;not null;index:idx_override_employee_date" json:"date"`
	ShiftID      string    `gorm:"size:64;not null" json:"shift_id"`
	ApprovedAt   time.Time `json:"approved_at"`
	SupersededBy *string   `gorm:"size:64" json:"superseded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Notification is addressed to an employee id, or "user:<id>" for accounts
// without an employee record
type Notification struct {
	ID          string           `gorm:"primaryKey;size:64" json:"id"`
	RecipientID string           `gorm:"size:100;not null;index" json:"recipient_id"`
	Type        NotificationType `gorm:"size:32;not null" json:"type"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Message     string           `json:"message"`
	RequestID   *string          `gorm:"size:64" json:"request_id"`
	IsRead      bool             `gorm:"not null" json:"is_read"`
	ReadAt      *time.Time       `json:"read_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Attendance is one employee's check-in/check-out record for a date
type Attendance struct {
	ID            string           `gorm:"primaryKey;size:64" json:"id"`
	EmployeeID    string           `gorm:"size:64;not null;uniqueIndex:idx_attendance_employee_date" json:"employee_id"`
	Date          string           `gorm:"size:10;not null;uniqueIndex:idx_attendance_employee_date" json:"date"`
	CheckIn       *time.Time       `json:"check_in"`
	CheckOut      *time.Time       `json:"check_out"`
	Status        AttendanceStatus `gorm:"size:32;not null" json:"status"`
	HoursWorked   float64          `json:"hours_worked"`
	OvertimeHours float64          `json:"overtime_hours"`
	Notes         string           `json:"notes"`
	CreatedAt     time.Time        `json:"created_at"`
}

// TableName keeps the plural used by the migrations
func (Attendance) TableName() string { return "attendance" }
