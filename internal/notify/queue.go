// Package notify implements the ephemeral user-message queue. Every terminal
// request transition, validation failure, and precondition failure surfaces
// exactly one notification here; each item expires on its own timer.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convertdesk/backend/internal/models"
)

// DefaultTTL is the notification lifetime used when none is configured.
const DefaultTTL = 5 * time.Second

// subscriberBuffer bounds the per-subscriber channel. A subscriber that
// stops draining loses messages rather than blocking the pushers.
const subscriberBuffer = 32

// Queue holds the active notifications and fans new ones out to websocket
// subscribers.
type Queue struct {
	items  map[string]*models.Notification
	timers map[string]*time.Timer
	subs   map[chan models.Notification]struct{}
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewQueue creates a queue with the given default TTL. A non-positive ttl
// falls back to DefaultTTL.
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		items:  make(map[string]*models.Notification),
		timers: make(map[string]*time.Timer),
		subs:   make(map[chan models.Notification]struct{}),
		ttl:    ttl,
	}
}

// Push appends a notification with the queue's default TTL.
func (q *Queue) Push(kind models.NotificationKind, title, body string) models.Notification {
	return q.PushWithTTL(kind, title, body, q.ttl)
}

// PushWithTTL appends a notification that self-removes after ttl. Each item
// expires independently; there is no batching.
func (q *Queue) PushWithTTL(kind models.NotificationKind, title, body string, ttl time.Duration) models.Notification {
	if ttl <= 0 {
		ttl = q.ttl
	}

	n := models.Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
		TTLMs:     ttl.Milliseconds(),
	}

	q.mu.Lock()
	q.items[n.ID] = &n
	q.timers[n.ID] = time.AfterFunc(ttl, func() { q.Dismiss(n.ID) })
	for ch := range q.subs {
		select {
		case ch <- n:
		default:
		}
	}
	q.mu.Unlock()

	return n
}

// Dismiss removes a notification before its TTL expires. Dismissing an
// unknown or already-expired ID is a no-op, so user-triggered closes and the
// expiry timer can race harmlessly.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
	delete(q.items, id)
}

// Active returns the live notifications ordered oldest first, so a visual
// stack renders the newest last.
func (q *Queue) Active() []models.Notification {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]models.Notification, 0, len(q.items))
	for _, n := range q.items {
		out = append(out, *n)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Subscribe registers a listener for new notifications. The returned cancel
// function must be called to release the channel.
func (q *Queue) Subscribe() (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, subscriberBuffer)

	q.mu.Lock()
	q.subs[ch] = struct{}{}
	q.mu.Unlock()

	cancel := func() {
		q.mu.Lock()
		if _, ok := q.subs[ch]; ok {
			delete(q.subs, ch)
			close(ch)
		}
		q.mu.Unlock()
	}
	return ch, cancel
}

// Shutdown stops all expiry timers and drops every subscriber. Used on
// process exit.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	for ch := range q.subs {
		delete(q.subs, ch)
		close(ch)
	}
	q.items = make(map[string]*models.Notification)
}
