package domain

// State is the projection of an order the workflow makes decisions on.
// Every flag the UI or the transition engine reads comes from here; raw
// status strings never leak past this boundary.
type State struct {
	IsNotStarted bool
	IsDispatched bool
	IsInProgress bool
	IsCompleted  bool
	IsCanceled   bool
	OnBreak      bool

	// IsOrderPing marks an unassigned adhoc order offered to nearby
	// drivers. Such orders are accepted through the start call with an
	// assign parameter, never through the regular accept path.
	IsOrderPing bool

	IsMultiDrop       bool
	CanNavigate       bool
	CanSetDestination bool

	// CurrentDestination is the single active place whose public id equals
	// the order's current waypoint, nil when none is set.
	CurrentDestination *Place
}

// Project derives State from an order. Pure and total: a nil or partially
// filled order projects to zero values, never a panic or an error.
func Project(o *Order) State {
	if o == nil {
		return State{}
	}

	var st State
	st.IsCompleted = o.Status == StatusCompleted
	st.IsCanceled = o.Status == StatusCanceled
	st.IsInProgress = o.Status.inProgress()
	st.IsNotStarted = !st.IsInProgress && !st.IsCompleted && !st.IsCanceled && o.StartedAt == nil
	st.IsDispatched = o.DispatchedAt != nil
	st.OnBreak = o.Status.Break()
	st.IsOrderPing = o.DriverAssigned == "" && o.Adhoc && !o.Status.Terminal()
	st.IsMultiDrop = len(o.Waypoints) > 0
	st.CanNavigate = st.IsDispatched || st.IsInProgress
	st.CurrentDestination = CurrentDestination(o)
	st.CanSetDestination = st.IsMultiDrop && st.IsInProgress && st.CurrentDestination == nil
	return st
}

// CurrentDestination finds the place referenced by the order's current
// waypoint among pickup, waypoints and dropoff.
func CurrentDestination(o *Order) *Place {
	if o == nil || o.CurrentWaypoint == "" {
		return nil
	}
	for _, p := range o.Places() {
		if p.PublicID != "" && p.PublicID == o.CurrentWaypoint {
			place := p
			return &place
		}
	}
	return nil
}

// HasConfirmedTracking reports whether a CONFIRMED milestone was already
// recorded. It guards the accept/reject prompt against reappearing after a
// reload race while the status still reads created.
func HasConfirmedTracking(statuses []TrackingStatus) bool {
	for _, ts := range statuses {
		if ts.Code == TrackingConfirmed {
			return true
		}
	}
	return false
}

// WaypointsInProgress filters the order's waypoints to those still
// actionable as a destination: tracking present and neither completed nor
// canceled. Original order is preserved.
func WaypointsInProgress(o *Order) []Place {
	if o == nil {
		return nil
	}
	var out []Place
	for _, wp := range o.Waypoints {
		if wp.Tracking == "" || waypointDone(wp.Tracking) {
			continue
		}
		out = append(out, wp)
	}
	return out
}

// OffersAcceptReject reports whether the accept/reject prompt applies: the
// order was never confirmed, has not moved past created, and is not an
// adhoc ping (pings accept through their own path).
func OffersAcceptReject(o *Order) bool {
	if o == nil {
		return false
	}
	st := Project(o)
	if HasConfirmedTracking(o.TrackingStatuses) {
		return false
	}
	return st.IsNotStarted && !st.IsInProgress && !st.IsCanceled &&
		!st.IsOrderPing && o.Status != StatusConfirmed
}
