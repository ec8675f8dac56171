package workflow

import (
	"context"

	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/queue"
)

// Gateway is the remote order service surface the workflow drives.
type Gateway interface {
	Fetch(ctx context.Context, orderID string) (*domain.Order, error)
	AcceptReject(ctx context.Context, orderID string, approved bool, token string) error
	Start(ctx context.Context, orderID string, params orders.StartParams) (*domain.Order, error)
	NextActivity(ctx context.Context, orderID, waypointID string) ([]domain.Activity, error)
	UpdateActivity(ctx context.Context, orderID string, activity domain.Activity) (*domain.Order, error)
	UpdateActivitySkipDispatch(ctx context.Context, orderID string) (*domain.Order, error)
	Complete(ctx context.Context, orderID string) (*domain.Order, error)
	SetDestination(ctx context.Context, orderID, placeID string) (*domain.Order, error)
	DriverUpdateActivity(ctx context.Context, token, orderID, status string) error
}

// Prompt is a blocking yes/no question put to the driver before an
// irreversible transition.
type Prompt struct {
	Title string
	Body  string
}

// Confirmer presents a Prompt and reports the driver's answer. false with
// a nil error is a decline, not a failure.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// AutoConfirm answers every prompt with the given value. Used by headless
// deployments where no driver can be asked.
func AutoConfirm(answer bool) Confirmer {
	return ConfirmerFunc(func(context.Context, Prompt) (bool, error) {
		return answer, nil
	})
}

// Connectivity reports whether the device currently has a network path.
type Connectivity interface {
	Online() bool
}

// Enqueuer records a request for replay once connectivity returns.
type Enqueuer interface {
	Enqueue(ctx context.Context, r queue.Request) error
}
