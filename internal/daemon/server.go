package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aios/organizer/pkg/config"
)

// Server is the daemon's ambient HTTP surface: a single gorilla/mux server
// on DAEMON_HTTP_ADDR exposing /healthz, /metrics (promhttp.Handler), and
// /events (a gorilla/websocket activity stream). It follows
// cmd/aios-daemon.Server's middleware/shutdown shape but collapses to one
// listener rather than that server's separate metrics listener.
type Server struct {
	httpServer  *http.Server
	logger      *logrus.Logger
	coordinator *Coordinator
	upgrader    websocket.Upgrader
}

// NewServer builds a Server bound to cfg.DaemonHTTPAddr().
func NewServer(cfg *config.Store, coordinator *Coordinator, logger *logrus.Logger) *Server {
	s := &Server{logger: logger, coordinator: coordinator}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))
	router.Use(otelhttp.NewMiddleware("organizerd"))
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         cfg.DaemonHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// handleHealthz reports 200 while the main loop is alive (spec AMBIENT-6).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleEvents upgrades to a websocket connection and streams ActivityEvent
// values as the coordinator dispatches work.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("events websocket upgrade failed")
		}
		return
	}
	defer conn.Close()

	ch := s.coordinator.bus.subscribe()
	defer s.coordinator.bus.unsubscribe(ch)

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Start launches the server in the background, logging ListenAndServe
// errors asynchronously rather than returning them, a fire-and-forget
// goroutine matching cmd/aios-daemon.Server.Start.
func (s *Server) Start() {
	go func() {
		if s.logger != nil {
			s.logger.WithField("addr", s.httpServer.Addr).Info("starting http server")
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed && s.logger != nil {
			s.logger.WithError(err).Error("http server failed")
		}
	}()
}

// Shutdown gracefully stops the server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
