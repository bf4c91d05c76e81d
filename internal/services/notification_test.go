package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/scheduler"
	"github.com/placementhub/apiserver/internal/store/memory"
	"github.com/placementhub/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopPublisher swallows published messages.
type nopPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *nopPublisher) Publish(_ context.Context, _ string, _ []byte, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return "msg-1", nil
}

func newNotificationService() (*NotificationService, *memory.Store) {
	st := memory.NewStore()
	sched := scheduler.New(st.Notifications(), &nopPublisher{}, time.Second, zerolog.Nop())
	return NewNotificationService(st.Notifications(), sched), st
}

func TestScheduleNotification(t *testing.T) {
	svc, _ := newNotificationService()

	at := time.Now().Add(time.Hour)
	notif, err := svc.Schedule(context.Background(), "STU001", "Interview", "Room 204 at 10am", at)
	require.NoError(t, err)
	assert.NotEmpty(t, notif.ID)
	assert.Equal(t, types.NotificationPending, notif.State)
	assert.True(t, notif.ScheduledAt.Equal(at))
}

func TestScheduleNotificationValidation(t *testing.T) {
	svc, _ := newNotificationService()
	ctx := context.Background()

	_, err := svc.Schedule(ctx, "STU001", "", "body", time.Now())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Schedule(ctx, "STU001", "subject", " ", time.Now())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCancelNotificationIdempotent(t *testing.T) {
	svc, _ := newNotificationService()
	ctx := context.Background()
	owner := access.Principal{UserID: "STU001", Role: types.RoleStudent}

	notif, err := svc.Schedule(ctx, "STU001", "Interview", "Room 204", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, owner, notif.ID))
	// A second cancel is a no-op success.
	require.NoError(t, svc.Cancel(ctx, owner, notif.ID))
}

func TestCancelUnknownNotification(t *testing.T) {
	svc, _ := newNotificationService()
	owner := access.Principal{UserID: "STU001", Role: types.RoleStudent}

	err := svc.Cancel(context.Background(), owner, "no-such-id")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCancelForeignNotificationLooksUnknown(t *testing.T) {
	svc, _ := newNotificationService()
	ctx := context.Background()

	notif, err := svc.Schedule(ctx, "STU001", "Interview", "Room 204", time.Now().Add(time.Hour))
	require.NoError(t, err)

	// Another student cancelling someone else's notification gets the
	// same answer as for an id that does not exist.
	other := access.Principal{UserID: "STU002", Role: types.RoleStudent}
	err = svc.Cancel(ctx, other, notif.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// Admins may cancel anyone's.
	admin := access.Principal{UserID: "ADM001", Role: types.RoleAdmin}
	assert.NoError(t, svc.Cancel(ctx, admin, notif.ID))
}

func TestListNotifications(t *testing.T) {
	svc, _ := newNotificationService()
	ctx := context.Background()

	later := time.Now().Add(2 * time.Hour)
	sooner := time.Now().Add(time.Hour)
	_, err := svc.Schedule(ctx, "STU001", "Second", "b", later)
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, "STU001", "First", "a", sooner)
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, "STU002", "Other", "c", sooner)
	require.NoError(t, err)

	notifs, err := svc.List(ctx, "STU001")
	require.NoError(t, err)
	require.Len(t, notifs, 2)
	assert.Equal(t, "First", notifs[0].Subject)
	assert.Equal(t, "Second", notifs[1].Subject)
}
