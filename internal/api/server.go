package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/data"
	"github.com/caesar-quant/caesar/internal/database"
	"github.com/caesar-quant/caesar/internal/factors/backtest"
	"github.com/caesar-quant/caesar/internal/notify"
)

// Server exposes the pipeline over HTTP.
type Server struct {
	cfg      *config.App
	symbols  []string
	fetcher  *data.Fetcher
	engine   *backtest.Engine
	db       *database.DB     // nil when DATABASE_URL is unset
	notifier *notify.Notifier // nil when Telegram is unconfigured
	logger   zerolog.Logger
}

// NewServer wires the HTTP surface. db and notifier may be nil.
func NewServer(cfg *config.App, symbols []string, fetcher *data.Fetcher, engine *backtest.Engine, db *database.DB, notifier *notify.Notifier) *Server {
	return &Server{
		cfg:      cfg,
		symbols:  symbols,
		fetcher:  fetcher,
		engine:   engine,
		db:       db,
		notifier: notifier,
		logger:   log.With().Str("component", "api").Logger(),
	}
}

// Router builds the gin router with all routes registered.
func (s *Server) Router() *gin.Engine {
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/symbols", s.listSymbols)
		api.GET("/candles/:symbol", s.getCandles)
		api.GET("/features/:symbol", s.getFeatures)
		api.GET("/factors/:symbol", s.getFactors)
		api.POST("/backtest", s.runBacktest)
		api.GET("/strategies/best", s.bestStrategy)
		api.GET("/ws/quotes", s.streamQuotes)
	}

	return router
}

// Run serves the API until the listener fails. CORS is applied outside gin
// so the OPTIONS preflight never reaches the route handlers.
func (s *Server) Run(addr string) error {
	handler := cors.AllowAll().Handler(s.Router())
	s.logger.Info().Str("addr", addr).Msg("Starting API server")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// requestLogger emits one zerolog line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request")
	}
}
