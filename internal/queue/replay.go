package queue

import (
	"context"

	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/logx"
)

type gateway interface {
	Fetch(ctx context.Context, orderID string) (*domain.Order, error)
	Start(ctx context.Context, orderID string, params orders.StartParams) (*domain.Order, error)
}

type counter interface {
	Inc()
}

// Replayer drains the offline queue once connectivity returns. Requests
// replay oldest first. A request whose order has since reached a terminal
// status is dropped without being sent; a request that fails to send stays
// queued for the next pass.
type Replayer struct {
	queue   *Queue
	gateway gateway
	logger  logx.Logger
	drops   counter
}

// NewReplayer wires a Replayer over the queue and order gateway. The drops
// counter may be nil.
func NewReplayer(q *Queue, g gateway, logger logx.Logger, drops counter) *Replayer {
	return &Replayer{queue: q, gateway: g, logger: logger, drops: drops}
}

// Replay processes every queued request and reports how many were sent.
func (r *Replayer) Replay(ctx context.Context) (int, error) {
	items, err := r.queue.Items(ctx)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	sent := 0
	remaining := make([]Request, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			remaining = append(remaining, item)
			continue
		}
		ord, err := r.gateway.Fetch(ctx, item.OrderID)
		if err != nil {
			r.logger.Warn("replay fetch failed",
				logx.String("order_id", item.OrderID),
				logx.Err(err),
			)
			remaining = append(remaining, item)
			continue
		}
		if ord.Status.Terminal() {
			r.logger.Info("dropping replay for terminal order",
				logx.String("order_id", item.OrderID),
				logx.String("status", string(ord.Status)),
			)
			if r.drops != nil {
				r.drops.Inc()
			}
			continue
		}
		if err := r.send(ctx, item); err != nil {
			r.logger.Warn("replay send failed",
				logx.String("order_id", item.OrderID),
				logx.String("op", string(item.Op)),
				logx.Err(err),
			)
			remaining = append(remaining, item)
			continue
		}
		sent++
	}

	if err := r.queue.Replace(ctx, remaining); err != nil {
		return sent, err
	}
	return sent, nil
}

func (r *Replayer) send(ctx context.Context, item Request) error {
	switch item.Op {
	case OpStart:
		_, err := r.gateway.Start(ctx, item.OrderID, orders.StartParams{
			Assign:       item.Assign,
			SkipDispatch: item.SkipDispatch,
		})
		return err
	default:
		r.logger.Warn("unknown queued op, dropping", logx.String("op", string(item.Op)))
		return nil
	}
}
