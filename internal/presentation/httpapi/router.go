package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	"github.com/sogos/mirai-scheduler/internal/application/service"
	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"
)

// respond renders v, surfacing any render-time error the same way a
// handler-level error would be.
func respond(w http.ResponseWriter, r *http.Request, v render.Renderer) {
	if err := render.Render(w, r, v); err != nil {
		renderError(w, r, err)
	}
}

// Handler is the admission surface's full HTTP handler: one route per
// operation, fronted by CORS and chi's standard
// request-id/timeout/recoverer middleware stack.
type Handler struct {
	claim      *service.ClaimEngine
	count      *service.CountEngine
	transition *service.TransitionEngine
	shotLinks  *service.ShotLinkEngine
	logger     domainservice.Logger
}

// NewHandler creates the admission surface's root HTTP handler.
func NewHandler(
	claim *service.ClaimEngine,
	count *service.CountEngine,
	transition *service.TransitionEngine,
	shotLinks *service.ShotLinkEngine,
	logger domainservice.Logger,
	allowedOrigin string,
) http.Handler {
	h := &Handler{claim: claim, count: count, transition: transition, shotLinks: shotLinks, logger: logger}

	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}).Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/claim", func(r chi.Router) {
			r.Post("/service", h.claimService)
			r.Post("/user", h.claimUser)
		})
		r.Route("/count", func(r chi.Router) {
			r.Get("/eligible/service", h.countEligibleService)
			r.Get("/eligible/user/{userID}", h.countEligibleUser)
			r.Get("/breakdown/service", h.countBreakdownService)
		})
		r.Get("/analyze/service", h.analyzeService)

		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Post("/complete", h.markComplete)
			r.Post("/fail", h.markFailed)
			r.Post("/status", h.updateStatus)
		})

		r.Route("/shots/{shotID}", func(r chi.Router) {
			r.Post("/generations", h.addGenerationToShot)
			r.Post("/generations/{generationID}/position", h.positionExistingGeneration)
			r.Post("/timeline/apply", h.applyTimelineFrames)
			r.Post("/timeline/exchange", h.exchangeTimelineFrames)
			r.Post("/timeline/initialize", h.initializeTimelineFrames)
		})
	})

	return r
}
