package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healthdesk/benefits-assistant/internal/logger"
)

// RouterOptions carries the cross-cutting pieces both servers share.
type RouterOptions struct {
	Log            *logger.Logger
	AllowedOrigins []string
	Stats          ProcessStats
}

func baseRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(Metrics)

	r.Method(http.MethodGet, "/health", &healthHandler{stats: opts.Stats, started: time.Now()})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func NewRouter(apiHandler *APIHandler, opts RouterOptions) http.Handler {
	r := baseRouter(opts)

	r.Get("/", apiHandler.RootHandler)
	r.Get("/welcome-message/{language}", apiHandler.WelcomeMessageHandler)
	r.Post("/process-input", apiHandler.ProcessInputHandler)
	r.Post("/extract-user-info", apiHandler.ExtractUserInfoHandler)
	r.Post("/get-answer", apiHandler.GetAnswerHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", apiHandler.CreateSessionHandler)

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(SessionAuth(apiHandler.tokens))

			r.Get("/me", apiHandler.GetSessionHandler)
			r.Delete("/me", apiHandler.ResetSessionHandler)
			r.Post("/me/messages", apiHandler.PostMessageHandler)
		})
	})

	return r
}
