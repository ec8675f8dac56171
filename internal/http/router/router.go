package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ontrack-driver/internal/http/handlers"
	mw "ontrack-driver/internal/http/middleware"
	"ontrack-driver/internal/logx"
)

// New constructs a chi-based http.Handler with base middleware and routes.
func New(h *handlers.Handlers, logger logx.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.Observability(logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/ping", h.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.HealthcheckHead))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/order", h.GetOrder)
		r.Get("/queue", h.GetQueue)
		r.Delete("/queue/{index}", h.RemoveQueueItem)

		r.Route("/order/{id}", func(r chi.Router) {
			r.Post("/load", h.LoadOrder)
		})

		r.Post("/order/accept", h.Accept)
		r.Post("/order/reject", h.Reject)
		r.Post("/order/start", h.Start)
		r.Get("/order/next-activity", h.NextActivity)
		r.Post("/order/activity", h.Apply)
		r.Post("/order/proof", h.SubmitProof)
		r.Post("/order/complete", h.Complete)
		r.Post("/order/destination/{waypointID}", h.SetDestination)

		r.Post("/driver/shift-end", h.EndShift)
		r.Post("/driver/break", h.TakeBreak)
		r.Post("/driver/incident", h.ReportIncident)
	})

	r.NotFound(http.HandlerFunc(h.NotFound))

	return r
}
