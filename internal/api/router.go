package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openchat/assistant/internal/metrics"
)

// Handlers groups the route handlers served by the router.
type Handlers struct {
	Chat     *ChatHandler
	Prompts  *PromptHandler
	Settings *SettingsHandler
	Models   *ModelHandler
}

// NewRouter creates and configures a chi router with all the application's routes.
func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// A locally served UI may run on another port.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// --- Session ---
			r.Get("/session", h.Chat.GetState)
			r.Post("/session/cancel", h.Chat.HandleCancel)
			r.Post("/session/reset", h.Chat.HandleReset)
			r.Post("/session/new", h.Chat.HandleNewConversation)
			r.Post("/session/retry", h.Chat.HandleRetryCommit)
			r.Put("/session/group", h.Chat.HandleSelectGroup)
			r.Put("/session/prompt", h.Chat.HandleSelectPrompt)

			// --- Groups ---
			r.Get("/groups", h.Chat.GetGroups)
			r.Delete("/groups", h.Chat.HandleClearHistory)
			r.Post("/groups/prune", h.Chat.HandlePruneGroups)
			r.Get("/groups/{groupID}/messages", h.Chat.GetGroupMessages)
			r.Put("/groups/{groupID}/name", h.Chat.HandleRenameGroup)
			r.Delete("/groups/{groupID}", h.Chat.HandleDeleteGroup)

			// --- Prompts ---
			r.Get("/prompts", h.Prompts.GetPrompts)
			r.Post("/prompts", h.Prompts.HandleCreatePrompt)
			r.Delete("/prompts/{promptID}", h.Prompts.HandleDeletePrompt)

			// --- Accounts & settings ---
			r.Get("/accounts", h.Settings.GetAccounts)
			r.Post("/accounts", h.Settings.HandleAddAccount)
			r.Post("/accounts/import", h.Settings.HandleImportAccount)
			r.Put("/accounts/{accountID}", h.Settings.HandleUpdateAccount)
			r.Delete("/accounts/{accountID}", h.Settings.HandleDeleteAccount)
			r.Put("/accounts/{accountID}/current", h.Settings.HandleSetCurrent)
			r.Get("/accounts/{accountID}/export", h.Settings.HandleExportAccount)
			r.Get("/settings", h.Settings.GetSettings)
			r.Put("/settings", h.Settings.UpdateSettings)
		})

		// Long-running endpoints: no request timeout.
		r.Group(func(r chi.Router) {
			r.Get("/session/events", h.Chat.HandleEvents)
			r.Post("/session/messages", h.Chat.HandleSendMessage)
			r.Post("/session/once", h.Chat.HandleRunOnce)
			r.Post("/accounts/test", h.Settings.HandleTestAccount)
			r.Get("/models", h.Models.HandleListModels)
		})
	})

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// metricsMiddleware records request counts and durations by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
