package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ontrack-driver/internal/apperr"
	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/events"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/logx"
)

func newTestController(gw *fakeGateway, cf *fakeConfirmer, rp replayer) (*Controller, *events.Bus) {
	bus := events.NewBus()
	e := NewEngine(gw, cf, fakeConn{online: true}, nil, bus, logx.Nop(), EngineConfig{})
	r := NewRecorder(gw, cf, bus, logx.Nop())
	c := NewController(e, r, rp, bus, logx.Nop(), "tok")
	return c, bus
}

func TestController_LoadInstallsSnapshot(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		fetchFn: func(_ context.Context, id string) (*domain.Order, error) {
			return &domain.Order{ID: id, Status: domain.StatusDispatched, UpdatedAt: time.Now()}, nil
		},
	}
	c, _ := newTestController(gw, &fakeConfirmer{}, nil)

	if err := c.Load(context.Background(), "o1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.Order(); got == nil || got.ID != "o1" {
		t.Fatalf("snapshot not installed: %#v", got)
	}
	if !c.State().IsDispatched {
		t.Fatalf("projection not derived from snapshot")
	}
}

func TestController_MergeDropsStaleSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c, bus := newTestController(&fakeGateway{}, &fakeConfirmer{}, nil)

	bus.PublishOrderUpdated(events.OrderUpdated{Order: &domain.Order{
		ID: "o1", Status: domain.StatusStarted, UpdatedAt: now,
	}})
	bus.PublishOrderUpdated(events.OrderUpdated{Order: &domain.Order{
		ID: "o1", Status: domain.StatusCreated, UpdatedAt: now.Add(-time.Minute),
	}})

	if got := c.Order(); got.Status != domain.StatusStarted {
		t.Fatalf("stale snapshot won: %#v", got)
	}

	bus.PublishOrderUpdated(events.OrderUpdated{Order: &domain.Order{
		ID: "o1", Status: domain.StatusCompleted, UpdatedAt: now.Add(time.Minute),
	}})
	if got := c.Order(); got.Status != domain.StatusCompleted {
		t.Fatalf("newer snapshot rejected: %#v", got)
	}
}

func TestController_BusyGuard(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		startFn: func(_ context.Context, id string, _ orders.StartParams) (*domain.Order, error) {
			close(started)
			<-release
			return &domain.Order{ID: id, Status: domain.StatusStarted}, nil
		},
	}
	c, bus := newTestController(gw, &fakeConfirmer{answer: true}, nil)
	bus.PublishOrderUpdated(events.OrderUpdated{Order: &domain.Order{ID: "o1", UpdatedAt: time.Now()}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Start(context.Background(), orders.StartParams{})
	}()
	<-started

	if c.Pending() != PendingStarting {
		t.Fatalf("pending = %v, want starting", c.Pending())
	}
	if err := c.Complete(context.Background()); !errors.Is(err, apperr.Busy) {
		t.Fatalf("expected Busy, got %v", err)
	}

	close(release)
	wg.Wait()

	if c.Pending() != PendingNone {
		t.Fatalf("pending not cleared: %v", c.Pending())
	}
}

func TestController_OperationsRequireLoadedOrder(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(&fakeGateway{}, &fakeConfirmer{answer: true}, nil)

	if err := c.Start(context.Background(), orders.StartParams{}); !errors.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound before load, got %v", err)
	}
	if _, err := c.NextActivity(context.Background()); !errors.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound before load, got %v", err)
	}
}

type fakeReplayer struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (f *fakeReplayer) Replay(context.Context) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	select {
	case f.done <- struct{}{}:
	default:
	}
	return 1, nil
}

func (f *fakeReplayer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestController_ReplaysQueueWhenBackOnline(t *testing.T) {
	t.Parallel()

	rp := &fakeReplayer{done: make(chan struct{}, 1)}
	_, bus := newTestController(&fakeGateway{}, &fakeConfirmer{}, rp)

	bus.PublishConnectivityChanged(events.ConnectivityChanged{Online: false})
	select {
	case <-rp.done:
		t.Fatalf("replay triggered by offline event")
	case <-time.After(20 * time.Millisecond):
	}

	bus.PublishConnectivityChanged(events.ConnectivityChanged{Online: true})
	select {
	case <-rp.done:
	case <-time.After(time.Second):
		t.Fatalf("replay not triggered by reconnect")
	}
	if rp.count() != 1 {
		t.Fatalf("replay calls = %d, want 1", rp.count())
	}
}

func TestController_EndToEndAcceptScenario(t *testing.T) {
	t.Parallel()

	accepted := 0
	gw := &fakeGateway{
		acceptFn: func(_ context.Context, _ string, approved bool, _ string) error {
			if approved {
				accepted++
			}
			return nil
		},
		fetchFn: func(_ context.Context, id string) (*domain.Order, error) {
			status := domain.StatusCreated
			if accepted > 0 {
				status = domain.StatusConfirmed
			}
			return &domain.Order{ID: id, Status: status, UpdatedAt: time.Now()}, nil
		},
	}
	c, _ := newTestController(gw, &fakeConfirmer{answer: true}, nil)

	if err := c.Load(context.Background(), "o1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	st := c.State()
	if !st.IsNotStarted || st.IsOrderPing {
		t.Fatalf("unexpected initial projection: %#v", st)
	}
	if !domain.OffersAcceptReject(c.Order()) {
		t.Fatalf("accept prompt should be offered")
	}

	if err := c.Accept(context.Background()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted != 1 {
		t.Fatalf("accept calls = %d, want 1", accepted)
	}
	if c.Order().Status != domain.StatusConfirmed {
		t.Fatalf("status after reload = %v", c.Order().Status)
	}
}

func TestController_EndToEndDestinationScenario(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		setDestFn: func(_ context.Context, id, placeID string) (*domain.Order, error) {
			return &domain.Order{
				ID:              id,
				Status:          domain.StatusInProgress,
				CurrentWaypoint: "pub-" + placeID,
				UpdatedAt:       time.Now(),
				Waypoints: []domain.Place{
					{ID: "w1", PublicID: "pub-w1", Tracking: "pending"},
					{ID: "w2", PublicID: "pub-w2", Tracking: "pending"},
				},
			}, nil
		},
	}
	c, bus := newTestController(gw, &fakeConfirmer{}, nil)
	bus.PublishOrderUpdated(events.OrderUpdated{Order: &domain.Order{
		ID:     "o1",
		Status: domain.StatusInProgress,
		Waypoints: []domain.Place{
			{ID: "w1", PublicID: "pub-w1", Tracking: "pending"},
			{ID: "w2", PublicID: "pub-w2", Tracking: "pending"},
		},
		UpdatedAt: time.Now(),
	}})

	wps := domain.WaypointsInProgress(c.Order())
	if len(wps) != 2 || wps[0].ID != "w1" || wps[1].ID != "w2" {
		t.Fatalf("unexpected selectable waypoints: %#v", wps)
	}

	if err := c.SetDestination(context.Background(), wps[1].ID); err != nil {
		t.Fatalf("set destination: %v", err)
	}
	if got := c.Order().CurrentWaypoint; got != "pub-w2" {
		t.Fatalf("current waypoint = %q, want pub-w2", got)
	}
}
