package orders

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/logx"
)

type gateway interface {
	Fetch(context.Context, string) (*domain.Order, error)
	AcceptReject(context.Context, string, bool, string) error
	Start(context.Context, string, StartParams) (*domain.Order, error)
	NextActivity(context.Context, string, string) ([]domain.Activity, error)
	UpdateActivity(context.Context, string, domain.Activity) (*domain.Order, error)
	UpdateActivitySkipDispatch(context.Context, string) (*domain.Order, error)
	Complete(context.Context, string) (*domain.Order, error)
	SetDestination(context.Context, string, string) (*domain.Order, error)
	DriverUpdateActivity(context.Context, string, string, string) error
}

type counter interface {
	Inc()
}

// RetryConfig bounds the retry loop of RetryingGateway.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingGateway wraps a gateway and retries transient failures with
// exponential backoff. Non-retryable errors pass through on the first
// attempt.
type RetryingGateway struct {
	next    gateway
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
	sleep   func(context.Context, time.Duration) bool
}

// NewRetryingGateway returns nil when next is nil.
func NewRetryingGateway(next gateway, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingGateway {
	if next == nil {
		return nil
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, cfg: cfg, sleep: sleepWithContext}
}

func (g *RetryingGateway) Fetch(ctx context.Context, id string) (*domain.Order, error) {
	return retry(g, ctx, "Fetch", func() (*domain.Order, error) {
		return g.next.Fetch(ctx, id)
	})
}

func (g *RetryingGateway) AcceptReject(ctx context.Context, id string, approved bool, token string) error {
	_, err := retry(g, ctx, "AcceptReject", func() (struct{}, error) {
		return struct{}{}, g.next.AcceptReject(ctx, id, approved, token)
	})
	return err
}

func (g *RetryingGateway) Start(ctx context.Context, id string, params StartParams) (*domain.Order, error) {
	return retry(g, ctx, "Start", func() (*domain.Order, error) {
		return g.next.Start(ctx, id, params)
	})
}

func (g *RetryingGateway) NextActivity(ctx context.Context, id, waypointID string) ([]domain.Activity, error) {
	return retry(g, ctx, "NextActivity", func() ([]domain.Activity, error) {
		return g.next.NextActivity(ctx, id, waypointID)
	})
}

func (g *RetryingGateway) UpdateActivity(ctx context.Context, id string, act domain.Activity) (*domain.Order, error) {
	return retry(g, ctx, "UpdateActivity", func() (*domain.Order, error) {
		return g.next.UpdateActivity(ctx, id, act)
	})
}

func (g *RetryingGateway) UpdateActivitySkipDispatch(ctx context.Context, id string) (*domain.Order, error) {
	return retry(g, ctx, "UpdateActivitySkipDispatch", func() (*domain.Order, error) {
		return g.next.UpdateActivitySkipDispatch(ctx, id)
	})
}

func (g *RetryingGateway) Complete(ctx context.Context, id string) (*domain.Order, error) {
	return retry(g, ctx, "Complete", func() (*domain.Order, error) {
		return g.next.Complete(ctx, id)
	})
}

func (g *RetryingGateway) SetDestination(ctx context.Context, id, placeID string) (*domain.Order, error) {
	return retry(g, ctx, "SetDestination", func() (*domain.Order, error) {
		return g.next.SetDestination(ctx, id, placeID)
	})
}

func (g *RetryingGateway) DriverUpdateActivity(ctx context.Context, token, id, status string) error {
	_, err := retry(g, ctx, "DriverUpdateActivity", func() (struct{}, error) {
		return struct{}{}, g.next.DriverUpdateActivity(ctx, token, id, status)
	})
	return err
}

func retry[T any](g *RetryingGateway, ctx context.Context, method string, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("orders gateway retry",
			logx.String("method", method),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !g.sleep(ctx, delay) {
			break
		}
	}
	return zero, lastErr
}

// isRetryable treats network failures, throttling and server errors as
// transient. Client errors and domain refusals are final.
func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
