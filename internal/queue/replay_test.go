package queue

import (
	"context"
	"errors"
	"testing"

	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/logx"
	"ontrack-driver/internal/storage"
)

type fakeReplayGateway struct {
	fetchFn func(context.Context, string) (*domain.Order, error)
	startFn func(context.Context, string, orders.StartParams) (*domain.Order, error)
	starts  []string
}

func (f *fakeReplayGateway) Fetch(ctx context.Context, id string) (*domain.Order, error) {
	return f.fetchFn(ctx, id)
}

func (f *fakeReplayGateway) Start(ctx context.Context, id string, p orders.StartParams) (*domain.Order, error) {
	f.starts = append(f.starts, id)
	if f.startFn != nil {
		return f.startFn(ctx, id, p)
	}
	return &domain.Order{ID: id}, nil
}

type counterStub struct{ n int }

func (c *counterStub) Inc() { c.n++ }

func TestReplayer_SendsOldestFirstAndDrains(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(storage.NewMemory(), "")
	_ = q.Enqueue(ctx, Request{Op: OpStart, OrderID: "first"})
	_ = q.Enqueue(ctx, Request{Op: OpStart, OrderID: "second"})

	gw := &fakeReplayGateway{
		fetchFn: func(_ context.Context, id string) (*domain.Order, error) {
			return &domain.Order{ID: id, Status: domain.StatusDispatched}, nil
		},
	}

	sent, err := NewReplayer(q, gw, logx.Nop(), nil).Replay(ctx)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if len(gw.starts) != 2 || gw.starts[0] != "first" || gw.starts[1] != "second" {
		t.Fatalf("unexpected start order: %v", gw.starts)
	}
	items, _ := q.Items(ctx)
	if len(items) != 0 {
		t.Fatalf("queue not drained: %#v", items)
	}
}

func TestReplayer_DropsTerminalOrders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(storage.NewMemory(), "")
	_ = q.Enqueue(ctx, Request{Op: OpStart, OrderID: "done"})

	gw := &fakeReplayGateway{
		fetchFn: func(_ context.Context, id string) (*domain.Order, error) {
			return &domain.Order{ID: id, Status: domain.StatusCompleted}, nil
		},
	}

	drops := &counterStub{}
	sent, err := NewReplayer(q, gw, logx.Nop(), drops).Replay(ctx)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}
	if len(gw.starts) != 0 {
		t.Fatalf("terminal order was replayed: %v", gw.starts)
	}
	if drops.n != 1 {
		t.Fatalf("drops = %d, want 1", drops.n)
	}
	items, _ := q.Items(ctx)
	if len(items) != 0 {
		t.Fatalf("terminal request not dropped: %#v", items)
	}
}

func TestReplayer_KeepsFailedRequests(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(storage.NewMemory(), "")
	_ = q.Enqueue(ctx, Request{Op: OpStart, OrderID: "flaky"})
	_ = q.Enqueue(ctx, Request{Op: OpStart, OrderID: "ok"})

	gw := &fakeReplayGateway{
		fetchFn: func(_ context.Context, id string) (*domain.Order, error) {
			return &domain.Order{ID: id, Status: domain.StatusDispatched}, nil
		},
		startFn: func(_ context.Context, id string, _ orders.StartParams) (*domain.Order, error) {
			if id == "flaky" {
				return nil, errors.New("network down")
			}
			return &domain.Order{ID: id}, nil
		},
	}

	sent, err := NewReplayer(q, gw, logx.Nop(), nil).Replay(ctx)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	items, _ := q.Items(ctx)
	if len(items) != 1 || items[0].OrderID != "flaky" {
		t.Fatalf("failed request not kept: %#v", items)
	}
}
