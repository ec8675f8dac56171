package domain

import "strings"

// Status is a normalized (lowercase) order status. All raw status string
// handling lives in this file; nothing outside the domain package compares
// status strings directly.
type Status string

// List of order statuses observed from the order service.
const (
	StatusCreated    Status = "created"
	StatusConfirmed  Status = "confirmed"
	StatusDispatched Status = "dispatched"
	StatusStarted    Status = "started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"

	StatusShiftEnded       Status = "shift_ended"
	StatusOnBreak          Status = "on_break"
	StatusIncidentReported Status = "incident_reported"
)

// Driver activity labels sent verbatim to the driver-activity endpoint.
const (
	DriverActivityShiftEnded       = "Shift Ended"
	DriverActivityOnBreak          = "On Break"
	DriverActivityIncidentReported = "Incident Reported"
)

// TrackingConfirmed is the tracking-status code marking that the driver
// already confirmed the order.
const TrackingConfirmed = "CONFIRMED"

// NormalizeStatus lowercases and trims a raw status string.
func NormalizeStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// Terminal reports whether the status ends the order's life.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Break reports whether the status is one of the auxiliary driver states
// that pause the activity sequence.
func (s Status) Break() bool {
	switch s {
	case StatusShiftEnded, StatusOnBreak, StatusIncidentReported:
		return true
	default:
		return false
	}
}

// inProgress covers both spellings the order service uses.
func (s Status) inProgress() bool {
	return s == StatusStarted || s == StatusInProgress
}

// waypointDone reports whether a waypoint tracking value excludes the
// waypoint from destination selection.
func waypointDone(tracking string) bool {
	switch NormalizeStatus(tracking) {
	case StatusCompleted, StatusCanceled:
		return true
	default:
		return false
	}
}
