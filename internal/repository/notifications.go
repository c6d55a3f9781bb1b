package repository

import (
	"context"
	"time"

	"github.com/arnavshah/workforce-api/pkg/models"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return wrap(s.q(ctx).Create(n).Error, "create notification")
}

func (s *Store) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.q(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, notFound(err, "notification", id)
	}
	return &n, nil
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	q := s.q(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC, id").Find(&out).Error; err != nil {
		return nil, wrap(err, "list notifications")
	}
	return out, nil
}

// MarkNotificationRead only touches rows owned by recipientID
func (s *Store) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) error {
	err := s.q(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_read = ?", id, recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
	return wrap(err, "mark notification read")
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	res := s.q(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, wrap(res.Error, "mark all notifications read")
}
