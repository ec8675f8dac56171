package events

import (
	"sync"

	"ontrack-driver/internal/domain"
)

// OrderUpdated announces a fresh order snapshot.
type OrderUpdated struct {
	Order *domain.Order
}

// ProofRequired announces that an activity is blocked until proof of
// delivery is captured. It carries the order snapshot and the destination
// the proof is for, so capture surfaces need no extra lookup. Applying the
// activity resumes after capture.
type ProofRequired struct {
	OrderID  string
	Activity domain.Activity
	Order    *domain.Order
	Waypoint *domain.Place
}

// RouteBack asks the surface to leave the order screen, e.g. after a
// rejected offer.
type RouteBack struct {
	OrderID string
	Reason  string
}

// OrderNotification is a user-facing message about an order.
type OrderNotification struct {
	OrderID string
	Message string
}

// ConnectivityChanged reports the device going online or offline.
type ConnectivityChanged struct {
	Online bool
}

// Bus fans events out to typed subscriber lists. Each event type has its
// own Subscribe method so handlers take concrete payloads; there is no
// name-based dispatch to mistype. Publishing calls handlers synchronously
// in subscription order.
type Bus struct {
	mu            sync.RWMutex
	orderUpdated  []func(OrderUpdated)
	proofRequired []func(ProofRequired)
	routeBack     []func(RouteBack)
	notifications []func(OrderNotification)
	connectivity  []func(ConnectivityChanged)
}

// NewBus returns an empty Bus.
func NewBus() *Bus { return &Bus{} }

func (b *Bus) SubscribeOrderUpdated(fn func(OrderUpdated)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderUpdated = append(b.orderUpdated, fn)
}

func (b *Bus) SubscribeProofRequired(fn func(ProofRequired)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.proofRequired = append(b.proofRequired, fn)
}

func (b *Bus) SubscribeRouteBack(fn func(RouteBack)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routeBack = append(b.routeBack, fn)
}

func (b *Bus) SubscribeOrderNotification(fn func(OrderNotification)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, fn)
}

func (b *Bus) SubscribeConnectivityChanged(fn func(ConnectivityChanged)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectivity = append(b.connectivity, fn)
}

func (b *Bus) PublishOrderUpdated(e OrderUpdated) {
	b.mu.RLock()
	subs := b.orderUpdated
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) PublishProofRequired(e ProofRequired) {
	b.mu.RLock()
	subs := b.proofRequired
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) PublishRouteBack(e RouteBack) {
	b.mu.RLock()
	subs := b.routeBack
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) PublishOrderNotification(e OrderNotification) {
	b.mu.RLock()
	subs := b.notifications
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) PublishConnectivityChanged(e ConnectivityChanged) {
	b.mu.RLock()
	subs := b.connectivity
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
