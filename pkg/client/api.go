package client

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/arnavshah/workforce-api/pkg/models"
)

// Me reloads the current principal from the server
func (s *Session) Me(ctx context.Context) (*models.Principal, error) {
	var p models.Principal
	if err := s.doJSON(ctx, http.MethodGet, "/auth/me", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RequestInput is the body of a new request. EmployeeID is only needed when
// a manager files on someone else's behalf.
type RequestInput struct {
	EmployeeID         string             `json:"employee_id,omitempty"`
	Type               models.RequestType `json:"type"`
	StartDate          string             `json:"start_date"`
	EndDate            string             `json:"end_date,omitempty"`
	ShiftID            string             `json:"shift_id,omitempty"`
	SwapWithEmployeeID string             `json:"swap_with_employee_id,omitempty"`
	Hours              float64            `json:"hours,omitempty"`
	Reason             string             `json:"reason,omitempty"`
}

func (s *Session) SubmitRequest(ctx context.Context, in RequestInput) (*models.Request, error) {
	var r models.Request
	if err := s.doJSON(ctx, http.MethodPost, "/requests", nil, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests filters by status and type when they are non-empty
func (s *Session) ListRequests(ctx context.Context, status models.RequestStatus, typ models.RequestType) ([]models.Request, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if typ != "" {
		q.Set("type", string(typ))
	}
	var out struct {
		Requests []models.Request `json:"requests"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "/requests", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Requests, nil
}

func (s *Session) ApproveRequest(ctx context.Context, id string) (*models.Request, error) {
	var r models.Request
	if err := s.doJSON(ctx, http.MethodPut, "/requests/"+url.PathEscape(id)+"/approve", nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RejectRequest sends notes only when non-nil
func (s *Session) RejectRequest(ctx context.Context, id string, notes *string) (*models.Request, error) {
	var body any
	if notes != nil {
		body = map[string]string{"notes": *notes}
	}
	var r models.Request
	if err := s.doJSON(ctx, http.MethodPut, "/requests/"+url.PathEscape(id)+"/reject", nil, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Session) Notifications(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread_only", "true")
	}
	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "/notifications", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (s *Session) MarkNotificationRead(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.doJSON(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", nil, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

type GenerateInput struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DivisionID   string `json:"division_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
}

type GenerateResult struct {
	Schedule    models.Schedule     `json:"schedule"`
	Assignments []models.Assignment `json:"assignments"`
	Changed     int                 `json:"changed"`
}

func (s *Session) GenerateSchedule(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	var out GenerateResult
	if err := s.doJSON(ctx, http.MethodPost, "/schedules/generate", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ApproveSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var sch models.Schedule
	if err := s.doJSON(ctx, http.MethodPut, "/schedules/"+url.PathEscape(id)+"/approve", nil, nil, &sch); err != nil {
		return nil, err
	}
	return &sch, nil
}

// Assignments lists the readable assignments between from and to inclusive
func (s *Session) Assignments(ctx context.Context, from, to string) ([]models.Assignment, error) {
	q := url.Values{"start_date": {from}, "end_date": {to}}
	var out struct {
		Assignments []models.Assignment `json:"assignments"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "/schedules/assignments", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Assignments, nil
}

// ExportSchedule copies the xlsx export of the period into w
func (s *Session) ExportSchedule(ctx context.Context, from, to string, w io.Writer) error {
	q := url.Values{"start_date": {from}, "end_date": {to}}
	return s.doJSON(ctx, http.MethodGet, "/schedules/export", q, nil, w)
}
