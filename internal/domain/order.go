package domain

import "time"

// Order is a single delivery assignment tracked from creation through
// completion or cancellation. Instances are only ever produced by merging
// server responses; the workflow never fabricates one locally.
type Order struct {
	ID             string
	InternalID     string
	Status         Status
	Adhoc          bool
	DriverAssigned string

	CreatedAt        time.Time
	ScheduledAt      *time.Time
	DispatchedAt     *time.Time
	StartedAt        *time.Time
	EstimatedEndDate *time.Time
	UpdatedAt        time.Time

	Pickup          *Place
	Dropoff         *Place
	Waypoints       []Place
	CurrentWaypoint string
	Entities        []Entity

	TrackingStatuses []TrackingStatus
	PurchaseRate     *PurchaseRate
	Meta             map[string]any
	Notes            string
}

// Place is a physical stop: pickup, an intermediate drop, or dropoff.
// CurrentWaypoint on the order is a weak reference into the sequence by
// public id, not ownership.
type Place struct {
	ID       string
	PublicID string
	Address  string
	Location Point
	Tracking string
}

// Point holds [lon, lat] coordinates as the wire format delivers them.
type Point struct {
	Coordinates [2]float64
}

// Entity is a cargo item carried in the order payload.
type Entity struct {
	ID          string
	Name        string
	Destination string
	Price       int64
	Currency    string
}

// TrackingStatus is one discrete status code recorded over the order's life.
type TrackingStatus struct {
	Code      string
	Status    string
	CreatedAt time.Time
}

// PurchaseRate carries the agreed delivery fee when one exists.
type PurchaseRate struct {
	Amount   int64
	Currency string
}

// Activity is a server-computed recommendation for the next transition.
// It is fetched fresh per user intent and never cached.
type Activity struct {
	Code       string
	Status     string
	Details    string
	RequirePOD bool
}

// Places returns pickup, waypoints and dropoff in route order, skipping
// absent endpoints.
func (o *Order) Places() []Place {
	if o == nil {
		return nil
	}
	out := make([]Place, 0, len(o.Waypoints)+2)
	if o.Pickup != nil {
		out = append(out, *o.Pickup)
	}
	out = append(out, o.Waypoints...)
	if o.Dropoff != nil {
		out = append(out, *o.Dropoff)
	}
	return out
}

// MetaString reads a string meta value, empty when absent or not a string.
func (o *Order) MetaString(key string) string {
	if o == nil || o.Meta == nil {
		return ""
	}
	s, _ := o.Meta[key].(string)
	return s
}
