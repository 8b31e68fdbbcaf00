package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freeredeemgames/freerg-bot/internal/config"
	"github.com/freeredeemgames/freerg-bot/internal/images"
	"github.com/freeredeemgames/freerg-bot/internal/models"
	"github.com/freeredeemgames/freerg-bot/internal/pipeline"
	"github.com/freeredeemgames/freerg-bot/internal/publisher"
	"github.com/freeredeemgames/freerg-bot/internal/storage"
)

// Server owns the read-only web surface: the deals page, the click
// redirect, the analytics dashboard and the operational endpoints. It
// never writes deals — only the ingestion job does that. The resolver
// is shared across requests; rendering only ever touches its
// no-network helpers.
type Server struct {
	store    *storage.Store
	pipe     *pipeline.Pipeline
	pub      *publisher.Publisher
	cfg      *config.Config
	resolver *images.Resolver
}

func NewServer(store *storage.Store, pipe *pipeline.Pipeline, pub *publisher.Publisher, cfg *config.Config) *Server {
	return &Server{store: store, pipe: pipe, pub: pub, cfg: cfg, resolver: images.NewResolver()}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router(templatesGlob string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.LoadHTMLGlob(templatesGlob)

	r.GET("/", s.Index)
	r.GET("/go/:id", s.ClickRedirect)
	r.GET("/analytics", s.Analytics)

	r.GET("/health", s.Health)
	r.HEAD("/health", s.Health)
	r.GET("/count", s.Count)
	r.GET("/update", s.UpdateNow)
	r.GET("/cleanup", s.Cleanup)
	r.GET("/post_last", s.PostLast)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) Count(c *gin.Context) {
	n, err := s.store.CountDeals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": n})
}

// UpdateNow triggers an ad hoc ingestion run. The run happens in the
// background so the response is not blocked by scraping, storage and
// channel calls that may exceed request timeouts.
func (s *Server) UpdateNow(c *gin.Context) {
	store := models.Store(c.DefaultQuery("store", "steam"))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in manual update run", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		res := s.pipe.Run(ctx, store)
		if res.Err != nil {
			slog.Error("manual update run failed", "store", store, "error", res.Err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "queued": true, "store": store})
}

func (s *Server) Cleanup(c *gin.Context) {
	keepDays := intQuery(c, "keep_days", s.cfg.RetentionDays)

	deleted, err := s.store.SweepExpired(c.Request.Context(), keepDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": deleted, "keep_days": keepDays})
}

// PostLast re-queues the n most recent deals and publishes them. Test
// and recovery path: the at-most-once guarantee is per stored flag, so
// resends are always an explicit operator decision.
func (s *Server) PostLast(c *gin.Context) {
	n := intQuery(c, "n", 1)

	ctx := c.Request.Context()
	if err := s.store.ResetPosted(ctx, n); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	batch, err := s.store.SelectUnposted(ctx, "", n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	res, err := s.pub.Publish(ctx, batch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error(), "posted": res.Posted})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "queued": res.Queued, "posted": res.Posted})
}
