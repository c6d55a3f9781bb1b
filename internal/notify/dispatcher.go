// Package notify stores and delivers in-app notifications. Delivery is
// at-least-once; there is no de-duplication.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnavshah/workforce-api/internal/metrics"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/pkg/models"
)

// Message is what a sender supplies; the dispatcher fills in id, read state and time
type Message struct {
	RecipientID string
	Type        models.NotificationType
	Title       string
	Body        string
	RequestID   string
}

type Dispatcher struct {
	store  *repository.Store
	scopes *scope.Resolver
	log    zerolog.Logger
	now    func() time.Time
}

func NewDispatcher(store *repository.Store, scopes *scope.Resolver, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		scopes: scopes,
		log:    log.With().Str("component", "notify").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send stores a notification outside of any transaction
func (d *Dispatcher) Send(ctx context.Context, msg Message) (*models.Notification, error) {
	n, err := d.Deliver(ctx, d.store, msg)
	if err != nil {
		return nil, err
	}
	metrics.NotificationsSent.WithLabelValues(string(n.Type)).Inc()
	return n, nil
}

// Deliver stores a notification through st, which may be a transaction.
// Metrics are left to the caller so a rolled-back delivery is not counted.
func (d *Dispatcher) Deliver(ctx context.Context, st *repository.Store, msg Message) (*models.Notification, error) {
	if msg.RecipientID == "" {
		return nil, models.InvariantViolation("notification has no recipient")
	}
	if !msg.Type.Valid() {
		return nil, models.InvariantViolation("unknown notification type", string(msg.Type))
	}
	n := &models.Notification{
		ID:          models.NewID(),
		RecipientID: msg.RecipientID,
		Type:        msg.Type,
		Title:       msg.Title,
		Message:     msg.Body,
		CreatedAt:   d.now(),
	}
	if msg.RequestID != "" {
		rid := msg.RequestID
		n.RequestID = &rid
	}
	if err := st.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	d.log.Debug().Str("recipient", n.RecipientID).Str("type", string(n.Type)).Str("notification", n.ID).Msg("notification stored")
	return n, nil
}

// List returns the principal's own notifications, newest first
func (d *Dispatcher) List(ctx context.Context, p models.Principal, unreadOnly bool) ([]models.Notification, error) {
	return d.store.ListNotifications(ctx, p.RecipientID(), unreadOnly)
}

// MarkRead marks one of the principal's notifications as read. Marking
// someone else's notification is AccessDenied. Marking twice is a no-op.
func (d *Dispatcher) MarkRead(ctx context.Context, p models.Principal, id string) (*models.Notification, error) {
	n, err := d.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != p.RecipientID() {
		return nil, models.AccessDenied("notification belongs to another recipient", id)
	}
	if err := d.store.MarkNotificationRead(ctx, id, n.RecipientID, d.now()); err != nil {
		return nil, err
	}
	return d.store.GetNotification(ctx, id)
}

// MarkAllRead marks every unread notification of the principal and returns how many changed
func (d *Dispatcher) MarkAllRead(ctx context.Context, p models.Principal) (int64, error) {
	return d.store.MarkAllNotificationsRead(ctx, p.RecipientID(), d.now())
}

// Notify lets a manager or admin message an employee in their write-scope
func (d *Dispatcher) Notify(ctx context.Context, p models.Principal, employeeID string, msg Message) (*models.Notification, error) {
	sc, err := d.scopes.For(ctx, p)
	if err != nil {
		return nil, err
	}
	emp, err := d.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !sc.CanWriteEmployee(emp) {
		return nil, models.AccessDenied("employee is outside your scope", employeeID)
	}
	msg.RecipientID = emp.ID
	if msg.Type == "" {
		msg.Type = models.NotificationInfo
	}
	return d.Send(ctx, msg)
}
