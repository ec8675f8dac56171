package workflow

import (
	"context"

	"ontrack-driver/internal/apperr"
	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/events"
	"ontrack-driver/internal/logx"
)

// Recorder writes the auxiliary driver states that pause the activity
// sequence: shift end, break, incident. These are the only client-side way
// into the on-break branch; resuming happens through the ordinary start
// path once the status reverts server-side.
type Recorder struct {
	gateway Gateway
	confirm Confirmer
	bus     *events.Bus
	logger  logx.Logger
}

// NewRecorder wires a Recorder.
func NewRecorder(g Gateway, c Confirmer, bus *events.Bus, logger logx.Logger) *Recorder {
	return &Recorder{gateway: g, confirm: c, bus: bus, logger: logger}
}

// EndShift records the end of the driver's shift.
func (r *Recorder) EndShift(ctx context.Context, token string, o *domain.Order) error {
	return r.record(ctx, token, o, domain.DriverActivityShiftEnded, Prompt{
		Title: "End shift",
		Body:  "End your shift now? Remaining activities stay paused until you resume.",
	})
}

// TakeBreak records the start of a break.
func (r *Recorder) TakeBreak(ctx context.Context, token string, o *domain.Order) error {
	return r.record(ctx, token, o, domain.DriverActivityOnBreak, Prompt{
		Title: "Take a break",
		Body:  "Pause the order and take a break?",
	})
}

// ReportIncident records an incident.
func (r *Recorder) ReportIncident(ctx context.Context, token string, o *domain.Order) error {
	return r.record(ctx, token, o, domain.DriverActivityIncidentReported, Prompt{
		Title: "Report incident",
		Body:  "Report an incident on this order? Dispatch will be notified.",
	})
}

// record runs the shared sequence: confirm, write the literal status
// label, then reload regardless of the write's outcome so the projected
// state reflects whatever the server now holds.
func (r *Recorder) record(ctx context.Context, token string, o *domain.Order, label string, p Prompt) error {
	if o == nil {
		return apperr.Invalid
	}

	ok, err := r.confirm.Confirm(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Declined
	}

	writeErr := r.gateway.DriverUpdateActivity(ctx, token, o.ID, label)
	if writeErr != nil {
		r.logger.Error("driver status write failed",
			logx.String("order_id", o.ID),
			logx.String("status", label),
			logx.Err(writeErr),
		)
	} else {
		r.logger.Info("driver status recorded",
			logx.String("order_id", o.ID),
			logx.String("status", label),
		)
	}

	ord, err := r.gateway.Fetch(ctx, o.ID)
	if err != nil {
		r.logger.Warn("reload after driver status failed",
			logx.String("order_id", o.ID), logx.Err(err))
	} else {
		r.bus.PublishOrderUpdated(events.OrderUpdated{Order: ord})
	}
	return writeErr
}
