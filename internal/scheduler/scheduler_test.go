package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/placementhub/apiserver/internal/store/memory"
	"github.com/placementhub/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures every published notification id.
type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, data []byte, _ map[string]string) (string, error) {
	var notif types.Notification
	if err := json.Unmarshal(data, &notif); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, notif.ID)
	return "msg-" + notif.ID, nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func newTestScheduler() (*Scheduler, *memory.Store, *recordingPublisher) {
	st := memory.NewStore()
	pub := &recordingPublisher{}
	return New(st.Notifications(), pub, time.Second, zerolog.Nop()), st, pub
}

func pendingNotification(ownerID string, at time.Time) types.Notification {
	return types.Notification{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Subject:     "subject",
		Message:     "message",
		ScheduledAt: at,
	}
}

func TestDispatchDue(t *testing.T) {
	sched, st, pub := newTestScheduler()
	ctx := context.Background()
	now := time.Now()

	due, err := sched.Schedule(ctx, pendingNotification("STU001", now.Add(-time.Minute)))
	require.NoError(t, err)
	future, err := sched.Schedule(ctx, pendingNotification("STU001", now.Add(time.Hour)))
	require.NoError(t, err)

	dispatched := sched.DispatchDue(ctx, now)
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, []string{due.ID}, pub.published())

	stored, err := st.Notifications().Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NotificationDispatched, stored.State)
	require.NotNil(t, stored.DispatchedAt)

	// The future notification stays pending.
	stored, err = st.Notifications().Get(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NotificationPending, stored.State)
}

func TestDispatchDueOrdersByScheduledTime(t *testing.T) {
	sched, _, pub := newTestScheduler()
	ctx := context.Background()
	now := time.Now()

	second, err := sched.Schedule(ctx, pendingNotification("STU001", now.Add(-time.Minute)))
	require.NoError(t, err)
	first, err := sched.Schedule(ctx, pendingNotification("STU001", now.Add(-time.Hour)))
	require.NoError(t, err)

	assert.Equal(t, 2, sched.DispatchDue(ctx, now))
	assert.Equal(t, []string{first.ID, second.ID}, pub.published())
}

func TestCancelledNotificationNeverDispatches(t *testing.T) {
	sched, st, pub := newTestScheduler()
	ctx := context.Background()
	now := time.Now()

	notif, err := sched.Schedule(ctx, pendingNotification("STU001", now.Add(-time.Minute)))
	require.NoError(t, err)

	cancelled, err := st.Notifications().Cancel(ctx, notif.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	// The queue entry is stale; the store transition decides.
	assert.Equal(t, 0, sched.DispatchDue(ctx, now))
	assert.Empty(t, pub.published())

	stored, err := st.Notifications().Get(ctx, notif.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NotificationCancelled, stored.State)
}

func TestStartReloadsPendingFromStore(t *testing.T) {
	sched, st, pub := newTestScheduler()
	ctx := context.Background()
	now := time.Now()

	// Rows persisted by a previous process: present in the store but
	// unknown to this scheduler's queue.
	notif, err := st.Notifications().Create(ctx, pendingNotification("STU001", now.Add(-time.Minute)))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = sched.Start(cancelled)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, sched.DispatchDue(ctx, now))
	assert.Equal(t, []string{notif.ID}, pub.published())
}

func TestDispatchAndCancelRaceAtMostOnce(t *testing.T) {
	sched, st, pub := newTestScheduler()
	ctx := context.Background()
	now := time.Now()

	const n = 50
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		notif, err := sched.Schedule(ctx, pendingNotification("STU001", now.Add(-time.Minute)))
		require.NoError(t, err)
		ids = append(ids, notif.ID)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sched.DispatchDue(ctx, now)
	}()
	go func() {
		defer wg.Done()
		for _, id := range ids {
			_, _ = st.Notifications().Cancel(ctx, id)
		}
	}()
	wg.Wait()

	published := make(map[string]bool, n)
	for _, id := range pub.published() {
		assert.False(t, published[id], "notification %s published twice", id)
		published[id] = true
	}

	// Every notification ended in exactly one terminal state, and only
	// dispatched ones were published.
	for _, id := range ids {
		stored, err := st.Notifications().Get(ctx, id)
		require.NoError(t, err)
		switch stored.State {
		case types.NotificationDispatched:
			assert.True(t, published[id], "dispatched %s was not published", id)
		case types.NotificationCancelled:
			assert.False(t, published[id], "cancelled %s was published", id)
		default:
			t.Fatalf("notification %s still pending", id)
		}
	}
}
