package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ontrack-driver/internal/apperr"
	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/events"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/logx"
	"ontrack-driver/internal/queue"
)

// activityCodeDispatched is the sentinel activity code the next-activity
// endpoint returns when the order was never dispatched. It routes into the
// same skip-dispatch confirmation as a refused start, it is never applied.
const activityCodeDispatched = "dispatched"

// Engine applies order transitions: it validates them against the order's
// projected state, asks the driver to confirm the irreversible ones, sends
// the remote call and publishes the resulting snapshot. It holds no order
// state of its own.
type Engine struct {
	gateway Gateway
	confirm Confirmer
	conn    Connectivity
	queue   Enqueuer
	bus     *events.Bus
	logger  logx.Logger

	// settleDelay keeps the completing state visible long enough not to
	// flash. Zero disables it.
	settleDelay time.Duration
	pingAccept  bool
	sleep       func(context.Context, time.Duration)
}

// EngineConfig carries the optional knobs of NewEngine.
type EngineConfig struct {
	SettleDelay time.Duration

	// PingAccept allows adhoc ping orders through AcceptOrder. Off, pings
	// accept only through StartOrder with an assign parameter.
	PingAccept bool
}

// NewEngine wires an Engine. All collaborators except the queue are
// required; a nil queue disables offline recording and makes offline
// starts fail instead.
func NewEngine(g Gateway, c Confirmer, conn Connectivity, q Enqueuer, bus *events.Bus, logger logx.Logger, cfg EngineConfig) *Engine {
	return &Engine{
		gateway:     g,
		confirm:     c,
		conn:        conn,
		queue:       q,
		bus:         bus,
		logger:      logger,
		settleDelay: cfg.SettleDelay,
		pingAccept:  cfg.PingAccept,
		sleep:       sleepWithContext,
	}
}

// Reload fetches the order and publishes the fresh snapshot.
func (e *Engine) Reload(ctx context.Context, orderID string) (*domain.Order, error) {
	ord, err := e.gateway.Fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	e.publish(ord)
	return ord, nil
}

// AcceptOrder confirms with the driver and accepts the offered order, then
// reloads it. Orders already confirmed, and adhoc pings (which accept
// through StartOrder with an assign parameter), are refused up front.
func (e *Engine) AcceptOrder(ctx context.Context, o *domain.Order, token string) error {
	if o == nil {
		return apperr.Invalid
	}
	if domain.HasConfirmedTracking(o.TrackingStatuses) {
		return apperr.AlreadyConfirmed
	}
	if domain.Project(o).IsOrderPing && !e.pingAccept {
		return fmt.Errorf("%w: ping orders accept through assignment", apperr.Invalid)
	}

	ok, err := e.confirm.Confirm(ctx, Prompt{
		Title: "Accept order",
		Body:  "Accept this order and confirm the pickup?",
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Declined
	}

	if err := e.gateway.AcceptReject(ctx, o.ID, true, token); err != nil {
		e.logger.Error("accept failed", logx.String("order_id", o.ID), logx.Err(err))
		return err
	}
	e.logger.Info("order accepted", logx.String("order_id", o.ID))

	if _, err := e.Reload(ctx, o.ID); err != nil {
		e.logger.Warn("reload after accept failed", logx.String("order_id", o.ID), logx.Err(err))
	}
	return nil
}

// RejectOrder confirms with the driver, rejects the offered order and asks
// the surface to route back. Terminal for this order on this device.
func (e *Engine) RejectOrder(ctx context.Context, o *domain.Order, token string) error {
	if o == nil {
		return apperr.Invalid
	}

	ok, err := e.confirm.Confirm(ctx, Prompt{
		Title: "Reject order",
		Body:  "Reject this order? It will be offered to another driver.",
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Declined
	}

	if err := e.gateway.AcceptReject(ctx, o.ID, false, token); err != nil {
		e.logger.Error("reject failed", logx.String("order_id", o.ID), logx.Err(err))
		return err
	}
	e.logger.Info("order rejected", logx.String("order_id", o.ID))
	e.bus.PublishRouteBack(events.RouteBack{OrderID: o.ID, Reason: "rejected"})
	return nil
}

// StartOrder begins (or resumes) the order. Offline, the request is
// recorded to the queue and apperr.Offline is returned instead of a
// transport call. A not-dispatched refusal prompts the driver to either
// skip dispatch, which retries exactly once with the override, or to
// decline, which resyncs the order.
func (e *Engine) StartOrder(ctx context.Context, o *domain.Order, params orders.StartParams) (*domain.Order, error) {
	if o == nil {
		return nil, apperr.Invalid
	}

	if !e.conn.Online() {
		if e.queue == nil {
			return nil, fmt.Errorf("%w: no offline queue configured", apperr.Invalid)
		}
		err := e.queue.Enqueue(ctx, queue.Request{
			Op:           queue.OpStart,
			OrderID:      o.ID,
			Action:       "start order",
			Assign:       params.Assign,
			SkipDispatch: params.SkipDispatch,
			Snapshot:     o,
		})
		if err != nil {
			return nil, err
		}
		e.logger.Info("start queued while offline", logx.String("order_id", o.ID))
		return nil, apperr.Offline
	}

	ord, err := e.gateway.Start(ctx, o.ID, params)
	if err == nil {
		e.logger.Info("order started", logx.String("order_id", o.ID))
		e.publish(ord)
		return ord, nil
	}
	if errors.Is(err, apperr.NotDispatched) && !params.SkipDispatch {
		return e.resolveNotDispatched(ctx, o, params)
	}
	e.logger.Error("start failed", logx.String("order_id", o.ID), logx.Err(err))
	return nil, err
}

// resolveNotDispatched runs the skip-dispatch confirmation. Never silently
// auto-skips: confirm retries with the override, decline reloads to resync.
func (e *Engine) resolveNotDispatched(ctx context.Context, o *domain.Order, params orders.StartParams) (*domain.Order, error) {
	ok, err := e.confirm.Confirm(ctx, Prompt{
		Title: "Order not dispatched",
		Body:  "This order has not been dispatched yet. Start it anyway?",
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := e.Reload(ctx, o.ID); err != nil {
			e.logger.Warn("resync after declined skip-dispatch failed",
				logx.String("order_id", o.ID), logx.Err(err))
		}
		return nil, apperr.Declined
	}

	params.SkipDispatch = true
	ord, err := e.gateway.Start(ctx, o.ID, params)
	if err != nil {
		e.logger.Error("skip-dispatch start failed", logx.String("order_id", o.ID), logx.Err(err))
		return nil, err
	}
	e.logger.Info("order started with dispatch override", logx.String("order_id", o.ID))
	e.publish(ord)
	return ord, nil
}

// NextActivity fetches the candidate next steps, scoped to the active
// waypoint when one is set. A lone "dispatched" candidate signals the
// not-dispatched edge and is resolved through the skip-dispatch flow
// instead of being returned.
func (e *Engine) NextActivity(ctx context.Context, o *domain.Order) ([]domain.Activity, error) {
	if o == nil {
		return nil, apperr.Invalid
	}

	var waypointID string
	if dest := domain.CurrentDestination(o); dest != nil {
		waypointID = dest.ID
	}

	acts, err := e.gateway.NextActivity(ctx, o.ID, waypointID)
	if err != nil {
		e.logger.Error("next activity failed", logx.String("order_id", o.ID), logx.Err(err))
		return nil, err
	}
	if len(acts) == 1 && acts[0].Code == activityCodeDispatched {
		if err := e.overrideDispatch(ctx, o); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return acts, nil
}

// overrideDispatch resolves the dispatched pseudo-activity. Confirm sends
// the skip-dispatch override through update-activity, decline reloads the
// order to resync.
func (e *Engine) overrideDispatch(ctx context.Context, o *domain.Order) error {
	ok, err := e.confirm.Confirm(ctx, Prompt{
		Title: "Order not dispatched",
		Body:  "This order has not been dispatched yet. Start it anyway?",
	})
	if err != nil {
		return err
	}
	if !ok {
		if _, err := e.Reload(ctx, o.ID); err != nil {
			e.logger.Warn("resync after declined skip-dispatch failed",
				logx.String("order_id", o.ID), logx.Err(err))
		}
		return apperr.Declined
	}

	ord, err := e.gateway.UpdateActivitySkipDispatch(ctx, o.ID)
	if err != nil {
		e.logger.Error("skip-dispatch update failed", logx.String("order_id", o.ID), logx.Err(err))
		return err
	}
	e.logger.Info("order started with dispatch override", logx.String("order_id", o.ID))
	e.publish(ord)
	return nil
}

// ApplyActivity advances the order with the chosen activity. Activities
// demanding proof of delivery never reach the update endpoint from here;
// the proof capture flow re-applies after capture via SubmitProofAndAdvance.
func (e *Engine) ApplyActivity(ctx context.Context, o *domain.Order, act domain.Activity) (*domain.Order, error) {
	if o == nil {
		return nil, apperr.Invalid
	}
	if act.RequirePOD {
		e.bus.PublishProofRequired(events.ProofRequired{
			OrderID:  o.ID,
			Activity: act,
			Order:    o,
			Waypoint: domain.CurrentDestination(o),
		})
		return nil, apperr.ProofRequired
	}

	ord, err := e.gateway.UpdateActivity(ctx, o.ID, act)
	if err != nil {
		e.logger.Error("update activity failed",
			logx.String("order_id", o.ID),
			logx.String("code", act.Code),
			logx.Err(err),
		)
		return nil, err
	}
	e.logger.Info("activity applied",
		logx.String("order_id", o.ID),
		logx.String("code", act.Code),
	)
	e.publish(ord)
	return ord, nil
}

// SubmitProofAndAdvance resumes a proof-gated activity once capture
// succeeded. The gate is cleared and the activity applied as usual.
func (e *Engine) SubmitProofAndAdvance(ctx context.Context, o *domain.Order, act domain.Activity) (*domain.Order, error) {
	act.RequirePOD = false
	return e.ApplyActivity(ctx, o, act)
}

// CompleteOrder finishes the order, holding the busy state for the settle
// delay so the transition stays visible.
func (e *Engine) CompleteOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if o == nil {
		return nil, apperr.Invalid
	}

	ord, err := e.gateway.Complete(ctx, o.ID)
	if err != nil {
		e.logger.Error("complete failed", logx.String("order_id", o.ID), logx.Err(err))
		return nil, err
	}
	if e.settleDelay > 0 {
		e.sleep(ctx, e.settleDelay)
	}
	e.logger.Info("order completed", logx.String("order_id", o.ID))
	e.publish(ord)
	return ord, nil
}

// SetDestination activates the given waypoint. An empty waypoint id is a
// silent no-op, the current order is returned unchanged.
func (e *Engine) SetDestination(ctx context.Context, o *domain.Order, waypointID string) (*domain.Order, error) {
	if o == nil {
		return nil, apperr.Invalid
	}
	if waypointID == "" {
		return o, nil
	}

	ord, err := e.gateway.SetDestination(ctx, o.ID, waypointID)
	if err != nil {
		e.logger.Error("set destination failed",
			logx.String("order_id", o.ID),
			logx.String("waypoint_id", waypointID),
			logx.Err(err),
		)
		return nil, err
	}
	e.logger.Info("destination set",
		logx.String("order_id", o.ID),
		logx.String("waypoint_id", waypointID),
	)
	e.publish(ord)
	return ord, nil
}

func (e *Engine) publish(ord *domain.Order) {
	if ord == nil {
		return
	}
	e.bus.PublishOrderUpdated(events.OrderUpdated{Order: ord})
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
