package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"chain-observer/src/helpers"
	"chain-observer/src/interfaces"
	"chain-observer/src/logger"
	"chain-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type Server struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	controller interfaces.IStreamController

	// WebSocket clients and per-stream subscriber sets
	clients    map[*Client]struct{}
	streamSubs map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	startedAt time.Time
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, controller interfaces.IStreamController, log *logger.Logger) *Server {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:     cfg,
		Logger:     log,
		engine:     gin.Default(),
		controller: controller,
		clients:    make(map[*Client]struct{}),
		streamSubs: make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		startedAt:  time.Now(),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// REST status surface (read-only, polled out-of-band)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/stats", s.getStats)
	s.engine.GET("/api/streams", s.getStreams)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *Server) Stop() error {
	s.mu.Lock()
	for client := range s.clients {
		close(client.done)
		client.conn.Close()
		delete(s.clients, client)
	}
	s.streamSubs = make(map[string]map[*Client]struct{})
	s.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"connections":    s.SubscriberCount(),
		"rss_mb":         helpers.GetProcessRSSMB(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getStats(c *gin.Context) {
	c.JSON(200, s.controller.EngineStats())
}

// -----------------------------------------------------------------------------

func (s *Server) getStreams(c *gin.Context) {
	c.JSON(200, gin.H{
		"streams": s.controller.Catalogue(),
	})
}
