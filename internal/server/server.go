// Package server wires the pipeline together: ingestion listener, record
// store, broadcaster, and the HTTP/websocket surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/shepherdlog/shepherd/internal/api/http"
	"github.com/shepherdlog/shepherd/internal/api/middleware"
	"github.com/shepherdlog/shepherd/internal/api/ws"
	"github.com/shepherdlog/shepherd/internal/domain/broadcast"
	"github.com/shepherdlog/shepherd/internal/domain/parser"
	"github.com/shepherdlog/shepherd/internal/domain/query"
	"github.com/shepherdlog/shepherd/internal/domain/store"
	"github.com/shepherdlog/shepherd/internal/infrastructure/config"
	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
	"github.com/shepherdlog/shepherd/internal/infrastructure/monitoring"
	"github.com/shepherdlog/shepherd/internal/ingest"
)

// Server wraps the HTTP server, the ingestion listener, and their shared
// dependencies.
type Server struct {
	router  *gin.Engine
	httpSrv *http.Server
	ingest  *ingest.Server
	store   *store.Store
	bcast   *broadcast.Broadcaster
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing Shepherd",
		zap.String("port", cfg.Server.Port),
		zap.String("ingest_addr", cfg.Ingest.Addr),
		zap.Int("store_capacity", cfg.Store.Capacity),
	)

	metrics := monitoring.NewMetrics()

	st := store.New(cfg.Store.Capacity).WithMetrics(metrics)
	bcast := broadcast.New(cfg.Broadcast.Buffer, logger).WithMetrics(metrics)
	queries := query.NewService(st)

	ingestSrv := ingest.NewServer(cfg.Ingest.Addr, parser.NewAccessLog(), st, bcast, logger).
		WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(queries, st, bcast)
	wsHandler := ws.NewHandler(bcast, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/logs", handlers.GetLogs)
	router.GET("/stats", handlers.GetStats)
	router.POST("/acknowledge", handlers.Acknowledge)

	// WebSocket
	router.GET("/ws", wsHandler.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		ingest:  ingestSrv,
		store:   st,
		bcast:   bcast,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the ingestion listener and the HTTP server. It blocks until
// the HTTP server stops.
func (s *Server) Run() error {
	go func() {
		if err := s.ingest.Run(); err != nil {
			s.logger.Error("Ingest server failed", zap.Error(err))
		}
	}()

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if err := s.ingest.Close(); err != nil {
		s.logger.Error("Failed to close ingest server", zap.Error(err))
	}
	s.bcast.Close()

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
			return err
		}
	}

	s.logger.Sync()
	return nil
}
