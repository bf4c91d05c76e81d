// Package scheduler runs the time-deferred notification dispatcher: a
// min-heap of pending notifications ordered by scheduled time, drained
// by a polling worker. Dispatch and cancellation race against each
// other through a single compare-and-set on the notification's state in
// the store, never through external locking.
package scheduler

import (
	"container/heap"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/placementhub/apiserver/types"
	"github.com/rs/zerolog"
)

// DispatchChannel is the broker channel dispatched notifications are
// published to.
const DispatchChannel = "notifications.dispatch"

// Publisher delivers a dispatched notification to the broker.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// NotificationRepository is the store surface the dispatcher needs.
type NotificationRepository interface {
	Create(ctx context.Context, notif types.Notification) (types.Notification, error)
	ListPending(ctx context.Context) ([]types.Notification, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error)
}

// Scheduler owns the pending-notification queue and the dispatch loop.
type Scheduler struct {
	repo      NotificationRepository
	publisher Publisher
	interval  time.Duration
	log       zerolog.Logger

	mu    sync.Mutex
	queue notificationQueue
}

func New(repo NotificationRepository, publisher Publisher, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		log:       log,
	}
}

// Schedule persists a pending notification and enqueues it for
// dispatch. Past timestamps are accepted; they become due on the next
// tick.
func (s *Scheduler) Schedule(ctx context.Context, notif types.Notification) (types.Notification, error) {
	notif.State = types.NotificationPending
	created, err := s.repo.Create(ctx, notif)
	if err != nil {
		return types.Notification{}, err
	}
	s.Enqueue(created)
	return created, nil
}

// Enqueue adds an already-persisted pending notification to the queue.
// Enqueueing is best-effort: the store is the source of truth and
// Start reloads pending rows, so a missed enqueue survives a restart.
func (s *Scheduler) Enqueue(notif types.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.queue, notif)
}

// Start loads pending notifications from the store and runs the
// dispatch loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.queue = append(s.queue[:0], pending...)
	heap.Init(&s.queue)
	s.mu.Unlock()

	s.log.Info().
		Int("pending", len(pending)).
		Dur("interval", s.interval).
		Msg("notification dispatcher started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("notification dispatcher stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.DispatchDue(ctx, now)
		}
	}
}

// DispatchDue drains every queued notification whose scheduled time
// has elapsed and returns how many were dispatched. For each due entry
// the store transition pending->dispatched decides the race: only the
// winner publishes; a loser (the entry was cancelled, or another
// dispatcher got there first) does nothing further.
func (s *Scheduler) DispatchDue(ctx context.Context, now time.Time) int {
	dispatched := 0
	for {
		notif, ok := s.popDue(now)
		if !ok {
			return dispatched
		}

		won, err := s.repo.MarkDispatched(ctx, notif.ID, now)
		if err != nil {
			s.log.Error().Err(err).Str("notification_id", notif.ID).Msg("dispatch transition failed")
			// Put it back; the next tick retries the transition.
			s.Enqueue(notif)
			return dispatched
		}
		if !won {
			continue
		}

		s.deliver(ctx, notif, now)
		dispatched++
	}
}

func (s *Scheduler) popDue(now time.Time) (types.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.queue[0].ScheduledAt.After(now) {
		return types.Notification{}, false
	}
	return heap.Pop(&s.queue).(types.Notification), true
}

// deliver performs the delivery effect for a notification this
// dispatcher won. The dispatched transition is already committed;
// delivery failures are logged, not rolled back.
func (s *Scheduler) deliver(ctx context.Context, notif types.Notification, at time.Time) {
	notif.State = types.NotificationDispatched
	notif.DispatchedAt = &at

	payload, err := json.Marshal(notif)
	if err != nil {
		s.log.Error().Err(err).Str("notification_id", notif.ID).Msg("encode notification failed")
		return
	}
	if _, err := s.publisher.Publish(ctx, DispatchChannel, payload, map[string]string{
		"owner_id": notif.OwnerID,
	}); err != nil {
		s.log.Error().Err(err).Str("notification_id", notif.ID).Msg("publish notification failed")
		return
	}

	s.log.Info().
		Str("notification_id", notif.ID).
		Str("owner_id", notif.OwnerID).
		Msg("notification dispatched")
}

// notificationQueue is a min-heap ordered by scheduled time.
type notificationQueue []types.Notification

func (q notificationQueue) Len() int { return len(q) }

func (q notificationQueue) Less(i, j int) bool {
	return q[i].ScheduledAt.Before(q[j].ScheduledAt)
}

func (q notificationQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *notificationQueue) Push(x any) {
	*q = append(*q, x.(types.Notification))
}

func (q *notificationQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
