package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pbaille/notemarket/internal/dashboard"
	"github.com/pbaille/notemarket/internal/detection"
	"github.com/pbaille/notemarket/internal/domain"
	"github.com/pbaille/notemarket/internal/moderation"
	"github.com/pbaille/notemarket/internal/transparency"
)

// Catalog stores creators and notes
type Catalog interface {
	Ping(ctx context.Context) error
	CreateCreator(ctx context.Context, username string, isPublic bool) (domain.Creator, error)
	GetCreator(ctx context.Context, id int64) (domain.Creator, error)
	AddNote(ctx context.Context, creatorID int64, title, body string, priceCents int) (domain.Note, error)
	GetNote(ctx context.Context, id int64) (domain.Note, error)
	ListNotes(ctx context.Context, limit, offset int) ([]domain.Note, error)
	SearchNotes(ctx context.Context, query string) ([]domain.Note, error)
	HasEmbedding(ctx context.Context, noteID int64) (bool, error)
	IsScanned(ctx context.Context, noteID int64) (bool, error)
}

// Deps are the services the API exposes. Detector may be nil when no
// embedding provider is configured.
type Deps struct {
	Catalog      Catalog
	Workflow     *moderation.Workflow
	Transparency transparency.Getter
	Dashboard    *dashboard.Service
	Detector     *detection.Detector
}

// Server handles HTTP requests for the marketplace moderation API
type Server struct {
	deps Deps
	addr string
}

// New creates a new API server
func New(deps Deps, addr string) *Server {
	return &Server{deps: deps, addr: addr}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), withCORS())

	r.GET("/health", s.health)
	r.POST("/classify", s.classify)

	r.POST("/creators", s.createCreator)
	r.GET("/creators/:id/dashboard", s.creatorDashboard)

	r.GET("/notes", s.listNotes)
	r.GET("/notes/search", s.searchNotes)
	r.GET("/notes/:id", s.getNote)
	r.POST("/notes", s.publishNote)
	r.POST("/drafts/check", s.checkDraft)
	r.GET("/notes/:id/transparency", s.noteTransparency)
	r.DELETE("/transparency/cache", s.clearTransparencyCache)

	r.POST("/clones/bulk-actions", s.bulkActions)
	r.POST("/clones/:id/actions", s.cloneAction)
	r.POST("/clones/:id/messages", s.messageCloner)
	r.GET("/clones/:id/history", s.cloneHistory)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for frontend development
func withCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.deps.Catalog.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "detection": s.deps.Detector != nil})
}
