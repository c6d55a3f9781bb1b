package models

// Principal is the authenticated caller as seen by the core: role from the
// user account, placement from the linked employee at the time of the call.
type Principal struct {
	UserID       string `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	AvatarURL    string `json:"avatar_url"`
	Role         Role   `json:"role"`
	DivisionID   string `json:"division_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	EmployeeID   string `json:"employee_id,omitempty"`
	Position     string `json:"position,omitempty"`
}

// RecipientID is the notification address of the principal
func (p Principal) RecipientID() string {
	if p.EmployeeID != "" {
		return p.EmployeeID
	}
	return UserRecipient(p.UserID)
}

// UserRecipient addresses an account that has no employee record
func UserRecipient(userID string) string {
	return "user:" + userID
}
