package web

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-pokedex/pkg/camera"
	"github.com/teslashibe/go-pokedex/pkg/hub"
	"github.com/teslashibe/go-pokedex/pkg/pokedex"
)

// Status is the /api/status payload.
type Status struct {
	Camera       *camera.Stats  `json:"camera,omitempty"`
	Detector     *pokedex.Stats `json:"detector,omitempty"`
	LastFrame    *time.Time     `json:"last_frame,omitempty"`
	LastSighting *Event         `json:"last_sighting,omitempty"`
	Clients      map[string]int `json:"clients"`
}

// handleStatus returns camera and detector state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := Status{
		LastSighting: s.lastSighting(),
		Clients: map[string]int{
			"camera": s.cameraHub.ClientCount(),
			"events": s.eventsHub.ClientCount(),
		},
	}
	if s.deps.Source != nil {
		stats := s.deps.Source.Stats()
		status.Camera = &stats
	}
	if s.deps.Detector != nil {
		stats := s.deps.Detector.Stats()
		status.Detector = &stats
	}
	if s.deps.Frames != nil {
		if f := s.deps.Frames.Current(); !f.IsEmpty() {
			at := f.CapturedAt
			status.LastFrame = &at
		}
	}
	return c.JSON(status)
}

// handleFrame returns the latest frame as JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.deps.Frames == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	f := s.deps.Frames.Current()
	if f.IsEmpty() {
		return c.SendStatus(fiber.StatusNoContent)
	}
	data, err := f.JPEG()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, camera.MimeJPEG)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// handleGetCamera returns the runtime camera config
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(s.deps.Camera.GetConfig())
}

// handleUpdateCamera applies a partial camera config update
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return fiber.ErrNotFound
	}

	var params map[string]interface{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}
	if err := s.deps.Camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	cfg := s.deps.Camera.GetConfig()
	s.logger.Info("camera config updated",
		"width", cfg.Width,
		"height", cfg.Height,
		"interval", cfg.Interval(),
	)
	return c.JSON(cfg)
}

// handleCameraPresets lists the named camera presets
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

// sameOrigin rejects browser requests sent from another origin. Requests
// without an Origin header (curl, scripts) pass.
func sameOrigin(c *fiber.Ctx) error {
	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" {
		return c.Next()
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host != string(c.Request().Host()) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "cross-origin request rejected",
		})
	}
	return c.Next()
}

// handleCredentialReset forgets the stored API key
func (s *Server) handleCredentialReset(c *fiber.Ctx) error {
	if s.deps.Credentials == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "credential store not configured",
		})
	}
	if err := s.deps.Credentials.Reset(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"reset": true})
}

// handleCameraWS streams JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	s.serveClient(s.cameraHub, c)
}

// handleEventsWS streams sighting and cycle events, starting with the last
// sighting if there was one
func (s *Server) handleEventsWS(c *websocket.Conn) {
	var greeting []hub.Message
	if ev := s.lastSighting(); ev != nil {
		if msg, err := hub.NewEvent(ev); err == nil {
			greeting = append(greeting, msg)
		}
	}
	s.serveClient(s.eventsHub, c, greeting...)
}

func (s *Server) serveClient(h *hub.Hub, c *websocket.Conn, greeting ...hub.Message) {
	client := hub.Attach(h, c, greeting...)
	if client == nil {
		s.logger.Debug("hub stopped, closing websocket", slog.String("remote", c.RemoteAddr().String()))
		c.Close()
		return
	}
	client.Serve()
}
