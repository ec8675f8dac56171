package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ontrack-driver/internal/apperr"
	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/storage"
)

// Op names an action that can be recorded while offline.
type Op string

const (
	// OpStart records a start-order request for later replay.
	OpStart Op = "start"
)

// Request is one deferred action. Requests live as a JSON array under a
// single storage key; every mutation rewrites the whole array. The order
// snapshot and action label are kept for inspection, replay goes through
// the gateway with a fresh fetch.
type Request struct {
	Op           Op            `json:"op"`
	OrderID      string        `json:"order_id"`
	Action       string        `json:"action,omitempty"`
	Assign       string        `json:"assign,omitempty"`
	SkipDispatch bool          `json:"skip_dispatch,omitempty"`
	Snapshot     *domain.Order `json:"order,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Queue persists deferred requests in a Store. Concurrent writers on the
// same process serialize through the queue's mutex; the storage write
// itself is last-write-wins.
type Queue struct {
	mu    sync.Mutex
	store storage.Store
	key   string
	now   func() time.Time
}

// New builds a Queue over store. An empty key defaults to "offline_queue".
func New(store storage.Store, key string) *Queue {
	if key == "" {
		key = "offline_queue"
	}
	return &Queue{store: store, key: key, now: time.Now}
}

// Enqueue appends one request, stamping CreatedAt when unset.
func (q *Queue) Enqueue(ctx context.Context, r Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.read(ctx)
	if err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = q.now()
	}
	items = append(items, r)
	return q.write(ctx, items)
}

// Items returns all queued requests in insertion order.
func (q *Queue) Items(ctx context.Context) ([]Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read(ctx)
}

// Remove deletes the request at index i. Out-of-range indexes return
// apperr.NotFound.
func (q *Queue) Remove(ctx context.Context, i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.read(ctx)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(items) {
		return apperr.NotFound
	}
	items = append(items[:i], items[i+1:]...)
	return q.write(ctx, items)
}

// Replace rewrites the queue contents wholesale.
func (q *Queue) Replace(ctx context.Context, items []Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(ctx, items)
}

// Clear drops all queued requests.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Delete(ctx, q.key)
}

func (q *Queue) read(ctx context.Context) ([]Request, error) {
	raw, err := q.store.Get(ctx, q.key)
	if errors.Is(err, apperr.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read: %w", err)
	}
	var items []Request
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("queue: decode: %w", err)
	}
	return items, nil
}

func (q *Queue) write(ctx context.Context, items []Request) error {
	if items == nil {
		items = []Request{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("queue: encode: %w", err)
	}
	if err := q.store.Set(ctx, q.key, raw); err != nil {
		return fmt.Errorf("queue: write: %w", err)
	}
	return nil
}
