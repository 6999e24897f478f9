// Package server is the stream side of the local MarketStore simulator: a gin
// engine exposing the WebSocket endpoint and a hub that pushes written rows
// to every client whose subscription matches the row's key.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"marketstore-client/src/logger"
	"marketstore-client/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// StreamServer
// -----------------------------------------------------------------------------

type StreamServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	// WebSocket clients, owned by the hub goroutine
	clients    map[*Client]struct{}
	broadcast  chan models.MStreamPayload
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	hubDone    chan struct{}

	connections  atomic.Int64
	published    atomic.Int64
	latestUpdate atomic.Int64

	pingPeriod time.Duration
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewStreamServer(cfg *models.MConfig, log *logger.Logger) *StreamServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &StreamServer{
		Config:     cfg,
		Logger:     log,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan models.MStreamPayload, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		hubDone:    make(chan struct{}),
		pingPeriod: defaultPingPeriod,
	}
	s.engine.Use(gin.Recovery())

	s.setupRoutes()
	go s.runHub()
	return s
}

// -----------------------------------------------------------------------------

func (s *StreamServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the routes, e.g. for httptest.
func (s *StreamServer) Handler() http.Handler {
	return s.engine
}

// SetPingPeriod changes how often idle clients are pinged.
func (s *StreamServer) SetPingPeriod(d time.Duration) {
	s.pingPeriod = d
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *StreamServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Simulator.Host, s.Config.Simulator.Port)
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	s.Logger.Info("Starting stream server on %s", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop sends a close frame to every client, waits briefly for their echoes and
// shuts the HTTP listener down.
func (s *StreamServer) Stop() error {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.hubDone

	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*closeGrace)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *StreamServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.connections.Load(),
		"published":     s.published.Load(),
		"latest_update": s.latestUpdate.Load(),
	})
}

func (s *StreamServer) getConfig(c *gin.Context) {
	sim := s.Config.Simulator
	streams := make([]string, 0, len(sim.Symbols))
	for _, sym := range sim.Symbols {
		streams = append(streams, models.BucketKey(sym, sim.Timeframe, "OHLCV"))
	}
	c.JSON(http.StatusOK, gin.H{
		"symbols":   sim.Symbols,
		"timeframe": sim.Timeframe,
		"streams":   strings.Join(streams, ","),
	})
}
