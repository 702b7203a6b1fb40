package routes

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/Dosada05/alliance-board/handlers"
	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed swagger.json
var swaggerDoc []byte

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	Auth      *middleware.Authenticator
	Sessions  *handlers.SessionHandler
	Shares    *handlers.ShareHandler
	Export    *handlers.ExportHandler
	WebSocket *handlers.WebSocketHandler
	Proxy     *handlers.ProxyHandler
}

type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.Manager
	DB             Pinger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Scout-Origin"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler(opts.DB))
	router.Handle("/metrics", opts.Metrics.Handler())

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(swaggerDoc)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Прокси нужен браузеру до входа, ключ TBA не покидает сервер.
	router.Post("/proxy/tba", h.Proxy.ServeTBA)

	router.Group(func(r chi.Router) {
		r.Use(h.Auth.Authenticate)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.Sessions.CreateSession)
			r.Get("/", h.Sessions.ListSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.Sessions.GetSession)
				r.Patch("/", h.Sessions.UpdateSession)
				r.Delete("/", h.Sessions.DeleteSession)

				r.Post("/shares", h.Shares.ShareSession)
				r.Get("/shares", h.Shares.ListShares)

				r.Get("/export", h.Export.ExportSession)
				r.Post("/export/archive", h.Export.ArchiveSession)
			})
		})

		r.Get("/ws/sessions/{sessionID}", h.WebSocket.ServeWs)
	})
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
