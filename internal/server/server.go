package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/engine"
	"github.com/aristath/sprinklerd/internal/events"
)

// Config configures the ambient HTTP control/status surface.
type Config struct {
	Port   int
	Log    zerolog.Logger
	Engine *engine.Engine
	Bus    *events.Bus
}

// Server is the thin chi-routed adapter over engine.Engine named in §6
// EXTERNAL INTERFACES. It carries no domain state of its own: every route
// reads or mutates the Engine directly, so there is nothing here to
// serialize beyond what Engine's own mutex already guards.
type Server struct {
	cfg    Config
	log    zerolog.Logger
	stream *EventsStreamHandler
	http   *http.Server
}

// New builds a Server. Call Handler to obtain the routed mux, or Start to
// run it until Shutdown is called.
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()
	return &Server{
		cfg:    cfg,
		log:    log,
		stream: NewEventsStreamHandler(cfg.Bus, log),
	}
}

// Handler builds the routed mux (§6: POST /api/on, POST /api/raindelay,
// POST /api/weather, POST /api/wateringindex, POST /api/refresh,
// POST /api/program/{id}/run, POST /api/zone/{i}/on, POST /api/off,
// GET /api/status, GET /api/history, GET /api/events/stream).
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{eng: s.cfg.Engine, log: s.log}

	r.Get("/api/status", h.getStatus)
	r.Get("/api/history", h.getHistory)
	r.Post("/api/on", h.postOn)
	r.Post("/api/raindelay", h.postRainDelay)
	r.Post("/api/weather", h.postWeather)
	r.Post("/api/wateringindex", h.postWateringIndex)
	r.Post("/api/refresh", h.postRefresh)
	r.Post("/api/program/{id}/run", h.postProgramRun)
	r.Post("/api/zone/{id}/on", h.postZoneOn)
	r.Post("/api/off", h.postAllOff)
	r.Get("/api/events/stream", s.stream.ServeHTTP)

	return r
}

// Start runs the HTTP server in the background. It returns once the
// listener is established; a non-nil error means it never started.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    portAddr(s.cfg.Port),
		Handler: s.Handler(),
	}
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return nil
}

// Shutdown gracefully stops the HTTP server, respecting ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func portAddr(port int) string {
	if port == 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}
