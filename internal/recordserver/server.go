package recordserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"calixo/internal/domain"
)

const requestIDHeader = "X-Request-ID"

var errInvalidRecord = errors.New("invalid record")

// Server exposes the tracking record over /api/data and /api/health.
type Server struct {
	router *gin.Engine
	repo   Repository
	cache  Cache
	logger *zap.Logger

	// generation counts successful writes. A read only fills the cache when
	// no write landed between its load and its cache fill.
	cacheMu    sync.Mutex
	generation uint64
}

// Options configures NewServer. Cache may be nil.
type Options struct {
	Cache       Cache
	CORSOrigins []string
	Logger      *zap.Logger
}

func NewServer(repo Repository, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors.New(corsConfig(opts.CORSOrigins)))

	s := &Server{router: router, repo: repo, cache: opts.Cache, logger: logger}

	api := router.Group("/api")
	api.GET("/health", s.health)
	api.GET("/data", s.getData)
	api.PUT("/data", s.putData)
	return s
}

// Handler returns the HTTP handler for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("record server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	available := s.repo.Ping(ctx) == nil
	c.JSON(http.StatusOK, gin.H{"ok": true, "recordStore": available})
}

func (s *Server) getData(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.repo.Ping(ctx); err != nil {
		s.unavailable(c, err)
		return
	}

	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("record cache read failed", zap.Error(err))
		} else if ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			return
		}
	}

	s.cacheMu.Lock()
	seen := s.generation
	s.cacheMu.Unlock()

	record, _, err := s.repo.Load(ctx)
	if err != nil {
		s.unavailable(c, err)
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not encode record"})
		return
	}
	if s.cache != nil {
		s.fillCache(ctx, seen, data)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) putData(c *gin.Context) {
	ctx := c.Request.Context()
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	record, err := decodeRecord(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.Ping(ctx); err != nil {
		s.unavailable(c, err)
		return
	}
	if err := s.repo.Save(ctx, record); err != nil {
		s.unavailable(c, err)
		return
	}
	s.cacheMu.Lock()
	s.generation++
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("record cache invalidate failed", zap.Error(err))
		}
	}
	s.cacheMu.Unlock()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// fillCache stores data unless a write has completed since seen was read.
func (s *Server) fillCache(ctx context.Context, seen uint64, data []byte) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation != seen {
		return
	}
	if err := s.cache.Set(ctx, data); err != nil {
		s.logger.Warn("record cache write failed", zap.Error(err))
	}
}

func (s *Server) unavailable(c *gin.Context, err error) {
	s.logger.Error("record store unavailable", zap.Error(err), zap.String("request_id", c.GetString("request_id")))
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record store unavailable"})
}

// decodeRecord accepts a JSON object shaped like a tracking record. Date keys
// must be calendar dates and every entry needs an id.
func decodeRecord(raw []byte) (domain.TrackingRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.TrackingRecord{}, fmt.Errorf("%w: expected a JSON object", errInvalidRecord)
	}
	var record domain.TrackingRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("%w: %v", errInvalidRecord, err)
	}
	record.Normalize()

	for date, entries := range record.Diet {
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			return domain.TrackingRecord{}, fmt.Errorf("%w: bad diet date %q", errInvalidRecord, date)
		}
		for _, entry := range entries {
			if strings.TrimSpace(entry.ID) == "" {
				return domain.TrackingRecord{}, fmt.Errorf("%w: diet entry on %s has no id", errInvalidRecord, date)
			}
		}
	}
	for date, entries := range record.Activity {
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			return domain.TrackingRecord{}, fmt.Errorf("%w: bad activity date %q", errInvalidRecord, date)
		}
		for _, entry := range entries {
			if strings.TrimSpace(entry.ID) == "" {
				return domain.TrackingRecord{}, fmt.Errorf("%w: activity entry on %s has no id", errInvalidRecord, date)
			}
		}
	}
	return record, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
