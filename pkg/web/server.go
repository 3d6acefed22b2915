// Package web exposes the rover's control loops over HTTP and streams their
// status events over a websocket.
package web

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/follow"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/scan"
	"github.com/teslashibe/go-rover/pkg/tracking"
)

// PanOwner is the arbiter owner used for manual pan commands.
const PanOwner = "pan"

// Controllers are the loops and hardware the server drives. Any controller
// may be nil when its hardware is missing; its endpoints then answer 503.
type Controllers struct {
	Rig        *robot.Rig
	Arbiter    *arbiter.Arbiter
	Scanner    *scan.Engine
	ScanConfig scan.Config
	Tracker    *tracking.Tracker
	Follower   *follow.Follower
}

// Server is the control and status API.
type Server struct {
	app    *fiber.App
	port   string
	ctl    Controllers
	events *hub.Hub
	logger *slog.Logger

	mu       sync.RWMutex
	lastScan *scan.Result
}

// NewServer builds the routes. events may be nil, in which case
// /ws/events is not served. The caller runs the hub. Websocket clients may
// pass ?source=scan,follower to receive only those loops' events.
func NewServer(port string, ctl Controllers, events *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ctl.Rig == nil {
		ctl.Rig = &robot.Rig{}
	}
	s := &Server{
		port:   port,
		ctl:    ctl,
		events: events,
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-rover",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/scan", s.handleLastScan)
	api.Post("/scan", s.handleScan)
	api.Post("/track/start", s.handleTrackStart)
	api.Post("/track/stop", s.handleTrackStop)
	api.Post("/follow/start", s.handleFollowStart)
	api.Post("/follow/stop", s.handleFollowStop)
	api.Post("/pan", s.handlePan)

	if events != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", websocket.New(func(conn *websocket.Conn) {
			hub.NewClient(events, conn, hub.ParseSources(conn.Query("source"))...).Run()
		}))
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	fmt.Printf("🌐 Rover API: http://localhost:%s/api/status\n", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync serves in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) emit(e robot.Event) {
	if s.events != nil {
		robot.Emit(s.events, e)
	}
}
