package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/workforce-api/internal/logger"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/internal/testdb"
	"github.com/arnavshah/workforce-api/pkg/models"
)

func setup(t *testing.T) (*Dispatcher, *testdb.Fixture) {
	fx := testdb.Seed(t, testdb.Open(t))
	return NewDispatcher(fx.Store, scope.NewResolver(fx.Store), logger.Nop()), fx
}

func TestMarkRead_OnlyRecipient(t *testing.T) {
	d, fx := setup(t)
	ctx := context.Background()

	n, err := d.Send(ctx, Message{RecipientID: testdb.IncomingAlice, Type: models.NotificationApproval, Title: "Leave approved"})
	require.NoError(t, err)

	_, err = d.MarkRead(ctx, fx.P(testdb.IncomingBob), n.ID)
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	// a manager over the recipient is still not the recipient
	_, err = d.MarkRead(ctx, fx.P(testdb.IncomingLead), n.ID)
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	list, err := d.List(ctx, fx.P(testdb.IncomingAlice), true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead)

	read, err := d.MarkRead(ctx, fx.P(testdb.IncomingAlice), n.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	again, err := d.MarkRead(ctx, fx.P(testdb.IncomingAlice), n.ID)
	require.NoError(t, err)
	assert.True(t, again.IsRead)
}

func TestMarkRead_Unknown(t *testing.T) {
	d, fx := setup(t)
	_, err := d.MarkRead(context.Background(), fx.P(testdb.IncomingAlice), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMarkAllRead_TouchesOnlyOwn(t *testing.T) {
	d, fx := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := d.Send(ctx, Message{RecipientID: testdb.IncomingAlice, Type: models.NotificationInfo, Title: "hello"})
		require.NoError(t, err)
	}
	_, err := d.Send(ctx, Message{RecipientID: testdb.IncomingBob, Type: models.NotificationInfo, Title: "hello"})
	require.NoError(t, err)

	changed, err := d.MarkAllRead(ctx, fx.P(testdb.IncomingAlice))
	require.NoError(t, err)
	assert.EqualValues(t, 3, changed)

	unread, err := d.List(ctx, fx.P(testdb.IncomingBob), true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestAdminWithoutEmployeeRecord(t *testing.T) {
	d, fx := setup(t)
	ctx := context.Background()

	_, err := d.Send(ctx, Message{RecipientID: fx.Admin.RecipientID(), Type: models.NotificationAlert, Title: "disk full"})
	require.NoError(t, err)

	list, err := d.List(ctx, fx.Admin, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.UserRecipient(testdb.AdminUser), list[0].RecipientID)
}

func TestNotify_Scope(t *testing.T) {
	d, fx := setup(t)
	ctx := context.Background()

	n, err := d.Notify(ctx, fx.P(testdb.IncomingLead), testdb.IncomingAlice, Message{Title: "Safety briefing", Body: "08:00 at gate 2"})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, n.Type)
	assert.Equal(t, testdb.IncomingAlice, n.RecipientID)

	_, err = d.Notify(ctx, fx.P(testdb.IncomingLead), testdb.ProcessCarol, Message{Title: "x"})
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	_, err = d.Notify(ctx, fx.P(testdb.IncomingAlice), testdb.IncomingBob, Message{Title: "x"})
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	_, err = d.Notify(ctx, fx.Admin, testdb.LineDave, Message{Title: "x", Type: models.NotificationWarning})
	assert.NoError(t, err)
}

func TestDeliver_Validates(t *testing.T) {
	d, _ := setup(t)
	_, err := d.Send(context.Background(), Message{Type: models.NotificationInfo})
	assert.ErrorIs(t, err, models.ErrInvariantViolation)

	_, err = d.Send(context.Background(), Message{RecipientID: "EMP111", Type: "sms"})
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
}
