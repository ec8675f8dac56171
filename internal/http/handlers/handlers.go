package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"ontrack-driver/internal/apperr"
	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/gateway/orders"
	"ontrack-driver/internal/logx"
	"ontrack-driver/internal/queue"
	"ontrack-driver/internal/workflow"
)

type controller interface {
	Order() *domain.Order
	Pending() workflow.Pending
	Load(ctx context.Context, orderID string) error
	Accept(ctx context.Context) error
	Reject(ctx context.Context) error
	Start(ctx context.Context, params orders.StartParams) error
	NextActivity(ctx context.Context) ([]domain.Activity, error)
	Apply(ctx context.Context, act domain.Activity) error
	SubmitProof(ctx context.Context, act domain.Activity) error
	Complete(ctx context.Context) error
	SetDestination(ctx context.Context, waypointID string) error
	EndShift(ctx context.Context) error
	TakeBreak(ctx context.Context) error
	ReportIncident(ctx context.Context) error
}

type queueReader interface {
	Items(ctx context.Context) ([]queue.Request, error)
	Remove(ctx context.Context, i int) error
}

// Handlers exposes the local inspection and control surface of the driver
// agent: health endpoints, the held order with its projected state, the
// offline queue, and one endpoint per workflow operation.
type Handlers struct {
	Logger     logx.Logger
	Controller controller
	Queue      queueReader

	// Transitions counts operation outcomes by route. Optional.
	Transitions *prometheus.CounterVec
}

// New creates a Handlers instance.
func New(logger logx.Logger, c controller, q queueReader) *Handlers {
	return &Handlers{Logger: logger, Controller: c, Queue: q}
}

// Ping handles GET /ping and returns 200 with {"message":"pong"}.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"message": "pong"})
}

// HealthcheckHead handles HEAD /healthcheck and returns 204 No Content.
func (h *Handlers) HealthcheckHead(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// NotFound returns a JSON 404 error for unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(h.Logger, w, r, http.StatusNotFound, "route not found")
}

// GetOrder returns the held order snapshot with its projection.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o := h.Controller.Order()
	if o == nil {
		writeError(h.Logger, w, r, http.StatusNotFound, "no order loaded")
		return
	}
	writeJSON(h.Logger, w, r, http.StatusOK, toOrderViewDTO(o, h.Controller.Pending().String()))
}

// GetQueue returns the offline queue contents.
func (h *Handlers) GetQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.Queue.Items(r.Context())
	if err != nil {
		writeError(h.Logger, w, r, http.StatusInternalServerError, "queue read failed")
		return
	}
	writeJSON(h.Logger, w, r, http.StatusOK, toQueueItemDTOs(items))
}

// RemoveQueueItem deletes one queued request by its index.
func (h *Handlers) RemoveQueueItem(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(h.Logger, w, r, http.StatusBadRequest, "invalid queue index")
		return
	}
	if err := h.Queue.Remove(r.Context(), i); err != nil {
		if errors.Is(err, apperr.NotFound) {
			writeError(h.Logger, w, r, http.StatusNotFound, "no such queue item")
			return
		}
		writeError(h.Logger, w, r, http.StatusInternalServerError, "queue remove failed")
		return
	}
	writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"result": "ok"})
}

// LoadOrder fetches the given order into the controller.
func (h *Handlers) LoadOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(h.Logger, w, r, http.StatusBadRequest, "missing order id")
		return
	}
	h.respond(w, r, h.Controller.Load(r.Context(), id))
}

// Accept runs the accept flow.
func (h *Handlers) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.Accept(r.Context()))
}

// Reject runs the reject flow.
func (h *Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.Reject(r.Context()))
}

// Start begins or resumes the held order.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var body startReqDTO
	if r.ContentLength > 0 && !decodeJSON(h.Logger, w, r, &body) {
		return
	}
	h.respond(w, r, h.Controller.Start(r.Context(), orders.StartParams{
		Assign:       body.Assign,
		SkipDispatch: body.SkipDispatch,
	}))
}

// NextActivity returns candidate next activities.
func (h *Handlers) NextActivity(w http.ResponseWriter, r *http.Request) {
	acts, err := h.Controller.NextActivity(r.Context())
	if err != nil {
		h.respond(w, r, err)
		return
	}
	out := make([]activityReqDTO, 0, len(acts))
	for _, a := range acts {
		out = append(out, activityReqDTO{
			Code:       a.Code,
			Status:     a.Status,
			Details:    a.Details,
			RequirePOD: a.RequirePOD,
		})
	}
	writeJSON(h.Logger, w, r, http.StatusOK, out)
}

// Apply advances the held order with the posted activity.
func (h *Handlers) Apply(w http.ResponseWriter, r *http.Request) {
	var body activityReqDTO
	if !decodeJSON(h.Logger, w, r, &body) {
		return
	}
	h.respond(w, r, h.Controller.Apply(r.Context(), toDomainActivity(body)))
}

// SubmitProof resumes a proof-gated activity after capture.
func (h *Handlers) SubmitProof(w http.ResponseWriter, r *http.Request) {
	var body activityReqDTO
	if !decodeJSON(h.Logger, w, r, &body) {
		return
	}
	h.respond(w, r, h.Controller.SubmitProof(r.Context(), toDomainActivity(body)))
}

// Complete finishes the held order.
func (h *Handlers) Complete(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.Complete(r.Context()))
}

// SetDestination activates the given waypoint.
func (h *Handlers) SetDestination(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.SetDestination(r.Context(), chi.URLParam(r, "waypointID")))
}

// EndShift records the end of the driver's shift.
func (h *Handlers) EndShift(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.EndShift(r.Context()))
}

// TakeBreak records a break.
func (h *Handlers) TakeBreak(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.TakeBreak(r.Context()))
}

// ReportIncident records an incident.
func (h *Handlers) ReportIncident(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.ReportIncident(r.Context()))
}

// respond maps workflow outcomes onto HTTP statuses. Declines and offline
// queuing are regular outcomes, not errors.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, err error) {
	h.countTransition(r, err)
	switch {
	case err == nil:
		writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"result": "ok"})
	case errors.Is(err, apperr.Declined):
		writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"result": "declined"})
	case errors.Is(err, apperr.Offline):
		writeJSON(h.Logger, w, r, http.StatusAccepted, map[string]string{"result": "queued"})
	case errors.Is(err, apperr.ProofRequired):
		writeJSON(h.Logger, w, r, http.StatusConflict, map[string]string{"result": "proof_required"})
	case errors.Is(err, apperr.Busy):
		writeError(h.Logger, w, r, http.StatusConflict, "another operation is in flight")
	case errors.Is(err, apperr.AlreadyConfirmed):
		writeError(h.Logger, w, r, http.StatusConflict, "order already confirmed")
	case errors.Is(err, apperr.NotFound):
		writeError(h.Logger, w, r, http.StatusNotFound, "no order loaded")
	case errors.Is(err, apperr.Invalid):
		writeError(h.Logger, w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(h.Logger, w, r, http.StatusBadGateway, err.Error())
	}
}

func (h *Handlers) countTransition(r *http.Request, err error) {
	if h.Transitions == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, apperr.Declined):
		outcome = "declined"
	case errors.Is(err, apperr.Offline):
		outcome = "queued"
	case errors.Is(err, apperr.ProofRequired):
		outcome = "proof_required"
	case errors.Is(err, apperr.Busy):
		outcome = "busy"
	case err != nil:
		outcome = "error"
	}
	operation := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			operation = p
		}
	}
	h.Transitions.WithLabelValues(operation, outcome).Inc()
}
