// Package web provides the live Pokédex dashboard.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/go-pokedex/pkg/camera"
	"github.com/teslashibe/go-pokedex/pkg/hub"
	"github.com/teslashibe/go-pokedex/pkg/pokedex"
)

// CameraStatus reports capture state.
type CameraStatus interface {
	Stats() camera.Stats
}

// DetectorStatus reports classification state.
type DetectorStatus interface {
	Stats() pokedex.Stats
}

// CredentialResetter discards the stored API key.
type CredentialResetter interface {
	Reset() error
}

// Deps are the components the dashboard reads from. Nil members disable the
// routes that need them.
type Deps struct {
	Camera      *camera.Manager
	Source      CameraStatus
	Frames      *camera.Value
	Detector    DetectorStatus
	Credentials CredentialResetter
	Logger      *slog.Logger
}

// Event is pushed to /ws/events clients.
type Event struct {
	Type        string    `json:"type"` // sighting, cycle
	Time        time.Time `json:"time"`
	Name        string    `json:"name,omitempty"`
	Number      int       `json:"number,omitempty"`
	Probability float64   `json:"probability,omitempty"`
	CycleID     string    `json:"cycle_id,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
	Recognized  bool      `json:"recognized,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Server is the dashboard server. It is also a pokedex.Notifier and a
// pokedex.Observer so sightings reach the browser.
type Server struct {
	app    *fiber.App
	port   string
	deps   Deps
	logger *slog.Logger

	// Hubs for websocket broadcast
	cameraHub *hub.Hub
	eventsHub *hub.Hub

	mu       sync.RWMutex
	sighting *Event
}

// NewServer creates a dashboard server listening on port.
func NewServer(port string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:      port,
		deps:      deps,
		logger:    logger.With("component", "web"),
		cameraHub: hub.New("camera", logger),
		eventsHub: hub.New("events", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Pokédex",
		DisableStartupMessage: true,
	})

	// CORS only for the dashboard's own loopback origins
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:" + port + ",http://127.0.0.1:" + port,
		AllowMethods: "GET,PUT,POST",
	}))

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/frame", s.handleFrame)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", sameOrigin, s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)
	api.Post("/credential/reset", sameOrigin, s.handleCredentialReset)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs, streams frames to camera clients and serves until
// the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	go s.cameraHub.Run(ctx)
	go s.eventsHub.Run(ctx)

	if s.deps.Frames != nil {
		stop := s.deps.Frames.Subscribe(s.sendFrame)
		defer stop()
	}

	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// sendFrame pushes a published frame to camera clients as raw JPEG.
func (s *Server) sendFrame(f camera.Frame) {
	if f.IsEmpty() || s.cameraHub.ClientCount() == 0 {
		return
	}
	data, err := f.JPEG()
	if err != nil {
		s.logger.Warn("frame decode failed", "error", err)
		return
	}
	s.cameraHub.PublishFrame(data)
}

// Notify implements pokedex.Notifier.
func (s *Server) Notify(ctx context.Context, name string) error {
	ev := Event{Type: "sighting", Time: time.Now(), Name: name}

	if d := s.deps.Detector; d != nil {
		if last := d.Stats().LastSighting; last != nil && last.Name == name {
			ev.Number = last.Number
			ev.Probability = last.Probability
		}
	}

	s.mu.Lock()
	s.sighting = &ev
	s.mu.Unlock()

	return s.eventsHub.PublishEvent(ev)
}

// CycleFinished implements pokedex.Observer.
func (s *Server) CycleFinished(c pokedex.Cycle) {
	ev := Event{
		Type:       "cycle",
		Time:       c.Started,
		CycleID:    c.ID,
		DurationMs: c.Duration.Milliseconds(),
		Recognized: c.Recognized,
	}
	if c.Result != nil {
		ev.Name = c.Result.Name
		ev.Number = c.Result.Number
		ev.Probability = c.Result.Probability
	}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	if err := s.eventsHub.PublishEvent(ev); err != nil {
		s.logger.Warn("cycle event encode failed", "error", err)
	}
}

// lastSighting returns a copy of the most recent sighting event.
func (s *Server) lastSighting() *Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sighting == nil {
		return nil
	}
	ev := *s.sighting
	return &ev
}

var (
	_ pokedex.Notifier = (*Server)(nil)
	_ pokedex.Observer = (*Server)(nil)
)
