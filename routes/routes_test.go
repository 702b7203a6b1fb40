package routes_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dosada05/alliance-board/handlers"
	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/middleware"
	"github.com/Dosada05/alliance-board/realtime"
	"github.com/Dosada05/alliance-board/routes"
	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newServer(db routes.Pinger) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewManager()
	hub := realtime.NewHub(logger, m)

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Auth:      middleware.NewAuthenticator("secret", nil, logger),
		Sessions:  handlers.NewSessionHandler(nil),
		Shares:    handlers.NewShareHandler(nil),
		Export:    handlers.NewExportHandler(nil, nil),
		WebSocket: handlers.NewWebSocketHandler(hub, nil, nil, logger),
		Proxy:     handlers.NewProxyHandler("", "", nil, m, logger),
	}, routes.Options{AllowedOrigins: []string{"https://scout.example"}, Metrics: m, DB: db})
	return router
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	Convey("Given the assembled router", t, func() {
		server := newServer(pinger{})

		Convey("Health, metrics and docs are public", func() {
			So(get(server, "/healthz").Code, ShouldEqual, http.StatusOK)
			So(get(server, "/metrics").Code, ShouldEqual, http.StatusOK)

			doc := get(server, "/swagger/doc.json")
			So(doc.Code, ShouldEqual, http.StatusOK)
			So(doc.Body.String(), ShouldContainSubstring, `"/sessions/{sessionID}/shares"`)
		})

		Convey("Session routes need a token", func() {
			So(get(server, "/sessions").Code, ShouldEqual, http.StatusUnauthorized)
			So(get(server, "/sessions/abc1234/export").Code, ShouldEqual, http.StatusUnauthorized)
			So(get(server, "/ws/sessions/abc1234").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("The proxy is reachable without a token", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/proxy/tba", nil))
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("CORS preflight allows the configured origin and the origin header", func() {
			req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
			req.Header.Set("Origin", "https://scout.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			req.Header.Set("Access-Control-Request-Headers", "X-Scout-Origin")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://scout.example")
		})
	})

	Convey("Health reports an unreachable database", t, func() {
		server := newServer(pinger{err: errors.New("down")})
		So(get(server, "/healthz").Code, ShouldEqual, http.StatusServiceUnavailable)
	})
}
