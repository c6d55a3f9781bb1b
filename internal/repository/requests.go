package repository

import (
	"context"
	"time"

	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/models"
)

type RequestQuery struct {
	Status models.RequestStatus
	Type   models.RequestType
}

func (s *Store) CreateRequest(ctx context.Context, r *models.Request) error {
	if err := s.q(ctx).Create(r).Error; err != nil {
		return duplicate(err, "request", r.ID)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	var r models.Request
	if err := s.q(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, notFound(err, "request", id)
	}
	return &r, nil
}

// ListRequests returns requests whose requester is selected by f, newest first
func (s *Store) ListRequests(ctx context.Context, f scope.Filter, query RequestQuery) ([]models.Request, error) {
	q := s.q(ctx).Model(&models.Request{}).
		Joins("JOIN employees ON employees.id = requests.employee_id")
	q = applyEmployeeFilter(q, f, "employees")
	if query.Status != "" {
		q = q.Where("requests.status = ?", query.Status)
	}
	if query.Type != "" {
		q = q.Where("requests.type = ?", query.Type)
	}
	var out []models.Request
	if err := q.Select("requests.*").Order("requests.created_at DESC, requests.id").Find(&out).Error; err != nil {
		return nil, wrap(err, "list requests")
	}
	return out, nil
}

func (s *Store) CountRequests(ctx context.Context, f scope.Filter, status models.RequestStatus) (int64, error) {
	var n int64
	q := s.q(ctx).Model(&models.Request{}).Joins("JOIN employees ON employees.id = requests.employee_id")
	err := applyEmployeeFilter(q, f, "employees").Where("requests.status = ?", status).Count(&n).Error
	return n, wrap(err, "count requests")
}

// Resolution is the outcome written by a status transition
type Resolution struct {
	Status     models.RequestStatus
	ResolvedBy string
	Notes      *string
	At         time.Time
}

// TransitionRequest moves a pending request to res.Status. It is a
// compare-and-set on status: false means the request was no longer pending.
func (s *Store) TransitionRequest(ctx context.Context, id string, res Resolution) (bool, error) {
	result := s.q(ctx).Model(&models.Request{}).
		Where("id = ? AND status = ?", id, models.RequestPending).
		Updates(map[string]interface{}{
			"status":         res.Status,
			"resolved_by":    res.ResolvedBy,
			"resolved_at":    res.At,
			"notes":          res.Notes,
			"notes_provided": res.Notes != nil,
			"updated_at":     res.At,
		})
	if result.Error != nil {
		return false, wrap(result.Error, "transition request")
	}
	return result.RowsAffected == 1, nil
}
