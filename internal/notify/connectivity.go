package notify

import (
	"sync/atomic"

	"ontrack-driver/internal/events"
)

// ConnectivityTracker mirrors the latest connectivity event into a flag
// the workflow can poll. It starts online; the socket corrects it on the
// first dial.
type ConnectivityTracker struct {
	online atomic.Bool
}

// NewConnectivityTracker subscribes a tracker to the bus.
func NewConnectivityTracker(bus *events.Bus) *ConnectivityTracker {
	t := &ConnectivityTracker{}
	t.online.Store(true)
	bus.SubscribeConnectivityChanged(func(e events.ConnectivityChanged) {
		t.online.Store(e.Online)
	})
	return t
}

// Online reports the last observed connectivity.
func (t *ConnectivityTracker) Online() bool { return t.online.Load() }
