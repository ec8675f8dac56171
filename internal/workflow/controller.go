package workflow

import (
	"context"
	"sync"

	"ontrack-driver/internal/apperr"
	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/events"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/logx"
)

// Pending is the single busy marker of a controller. Exactly one operation
// can be in flight at a time; every spinner derives from this value.
type Pending int

const (
	PendingNone Pending = iota
	PendingAccepting
	PendingRejecting
	PendingStarting
	PendingApplyingActivity
	PendingCompleting
	PendingSettingDestination
	PendingEndingShift
	PendingTakingBreak
	PendingReportingIncident
)

func (p Pending) String() string {
	switch p {
	case PendingAccepting:
		return "accepting"
	case PendingRejecting:
		return "rejecting"
	case PendingStarting:
		return "starting"
	case PendingApplyingActivity:
		return "applying_activity"
	case PendingCompleting:
		return "completing"
	case PendingSettingDestination:
		return "setting_destination"
	case PendingEndingShift:
		return "ending_shift"
	case PendingTakingBreak:
		return "taking_break"
	case PendingReportingIncident:
		return "reporting_incident"
	default:
		return "none"
	}
}

type replayer interface {
	Replay(ctx context.Context) (int, error)
}

// Controller owns one order's client-side copy: it serializes operations
// through the pending marker, merges incoming snapshots and drops stale
// ones, and drains the offline queue when connectivity returns.
type Controller struct {
	mu      sync.Mutex
	order   *domain.Order
	pending Pending

	engine   *Engine
	recorder *Recorder
	replay   replayer
	bus      *events.Bus
	logger   logx.Logger
	token    string
}

// NewController wires a controller for one order screen. The replayer may
// be nil when offline replay is handled elsewhere.
func NewController(e *Engine, r *Recorder, rp replayer, bus *events.Bus, logger logx.Logger, token string) *Controller {
	c := &Controller{
		engine:   e,
		recorder: r,
		replay:   rp,
		bus:      bus,
		logger:   logger,
		token:    token,
	}
	bus.SubscribeOrderUpdated(func(ev events.OrderUpdated) {
		c.merge(ev.Order)
	})
	bus.SubscribeConnectivityChanged(func(ev events.ConnectivityChanged) {
		if !ev.Online || c.replay == nil {
			return
		}
		go c.drainQueue()
	})
	bus.SubscribeOrderNotification(func(ev events.OrderNotification) {
		held := c.Order()
		if held == nil || held.ID != ev.OrderID {
			return
		}
		go func() {
			if _, err := c.engine.Reload(context.Background(), ev.OrderID); err != nil {
				c.logger.Warn("reload after notification failed",
					logx.String("order_id", ev.OrderID), logx.Err(err))
			}
		}()
	})
	return c
}

// Order returns the current snapshot, nil before the first load.
func (c *Controller) Order() *domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// State projects the current snapshot.
func (c *Controller) State() domain.State {
	return domain.Project(c.Order())
}

// Pending reports the operation currently in flight.
func (c *Controller) Pending() Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Load fetches the order. Safe to call repeatedly; stale responses are
// dropped by the merge guard.
func (c *Controller) Load(ctx context.Context, orderID string) error {
	_, err := c.engine.Reload(ctx, orderID)
	return err
}

// Accept runs the accept flow for the held order.
func (c *Controller) Accept(ctx context.Context) error {
	return c.run(ctx, PendingAccepting, func(ctx context.Context, o *domain.Order) error {
		return c.engine.AcceptOrder(ctx, o, c.token)
	})
}

// Reject runs the reject flow for the held order.
func (c *Controller) Reject(ctx context.Context) error {
	return c.run(ctx, PendingRejecting, func(ctx context.Context, o *domain.Order) error {
		return c.engine.RejectOrder(ctx, o, c.token)
	})
}

// Start begins or resumes the held order.
func (c *Controller) Start(ctx context.Context, params orders.StartParams) error {
	return c.run(ctx, PendingStarting, func(ctx context.Context, o *domain.Order) error {
		_, err := c.engine.StartOrder(ctx, o, params)
		return err
	})
}

// NextActivity fetches candidate activities for the held order.
func (c *Controller) NextActivity(ctx context.Context) ([]domain.Activity, error) {
	o := c.Order()
	if o == nil {
		return nil, apperr.NotFound
	}
	return c.engine.NextActivity(ctx, o)
}

// Apply advances the held order with the chosen activity.
func (c *Controller) Apply(ctx context.Context, act domain.Activity) error {
	return c.run(ctx, PendingApplyingActivity, func(ctx context.Context, o *domain.Order) error {
		_, err := c.engine.ApplyActivity(ctx, o, act)
		return err
	})
}

// SubmitProof resumes a proof-gated activity after capture succeeded.
func (c *Controller) SubmitProof(ctx context.Context, act domain.Activity) error {
	return c.run(ctx, PendingApplyingActivity, func(ctx context.Context, o *domain.Order) error {
		_, err := c.engine.SubmitProofAndAdvance(ctx, o, act)
		return err
	})
}

// Complete finishes the held order.
func (c *Controller) Complete(ctx context.Context) error {
	return c.run(ctx, PendingCompleting, func(ctx context.Context, o *domain.Order) error {
		_, err := c.engine.CompleteOrder(ctx, o)
		return err
	})
}

// SetDestination activates a waypoint on the held order.
func (c *Controller) SetDestination(ctx context.Context, waypointID string) error {
	return c.run(ctx, PendingSettingDestination, func(ctx context.Context, o *domain.Order) error {
		_, err := c.engine.SetDestination(ctx, o, waypointID)
		return err
	})
}

// EndShift records the end of shift on the held order.
func (c *Controller) EndShift(ctx context.Context) error {
	return c.run(ctx, PendingEndingShift, func(ctx context.Context, o *domain.Order) error {
		return c.recorder.EndShift(ctx, c.token, o)
	})
}

// TakeBreak records a break on the held order.
func (c *Controller) TakeBreak(ctx context.Context) error {
	return c.run(ctx, PendingTakingBreak, func(ctx context.Context, o *domain.Order) error {
		return c.recorder.TakeBreak(ctx, c.token, o)
	})
}

// ReportIncident records an incident on the held order.
func (c *Controller) ReportIncident(ctx context.Context) error {
	return c.run(ctx, PendingReportingIncident, func(ctx context.Context, o *domain.Order) error {
		return c.recorder.ReportIncident(ctx, c.token, o)
	})
}

// run claims the pending slot, executes op with the held order and always
// releases the slot again.
func (c *Controller) run(ctx context.Context, p Pending, op func(context.Context, *domain.Order) error) error {
	c.mu.Lock()
	if c.pending != PendingNone {
		c.mu.Unlock()
		return apperr.Busy
	}
	if c.order == nil {
		c.mu.Unlock()
		return apperr.NotFound
	}
	c.pending = p
	o := c.order
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = PendingNone
		c.mu.Unlock()
	}()

	return op(ctx, o)
}

// merge installs a snapshot unless an already held one is newer. Reloads
// triggered by notifications race with reloads triggered by local actions;
// the UpdatedAt guard keeps the losing response from rolling state back.
func (c *Controller) merge(incoming *domain.Order) {
	if incoming == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.order != nil && c.order.ID == incoming.ID &&
		!incoming.UpdatedAt.IsZero() && incoming.UpdatedAt.Before(c.order.UpdatedAt) {
		c.logger.Debug("dropping stale order snapshot",
			logx.String("order_id", incoming.ID),
			logx.Time("held", c.order.UpdatedAt),
			logx.Time("incoming", incoming.UpdatedAt),
		)
		return
	}
	c.order = incoming
}

func (c *Controller) drainQueue() {
	sent, err := c.replay.Replay(context.Background())
	if err != nil {
		c.logger.Warn("offline queue replay failed", logx.Err(err))
		return
	}
	if sent > 0 {
		c.logger.Info("offline queue replayed", logx.Int("sent", sent))
	}
}
