// Package statushttp serves the read-only operator surface: loop status,
// recent cycles, ledger rows and a cumulative-profit report. It never writes
// to the trading state.
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"scalper/internal/agent"
	"scalper/internal/history"
	"scalper/internal/ledger"
	"scalper/internal/logger"
	"scalper/internal/store/sqlite"
)

// Server exposes the status API on one address.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the server's read-only dependencies.
type ServerConfig struct {
	Addr   string
	Agent  *agent.Agent
	Ledger *ledger.Ledger
	Cycles *history.Store
	Orders *sqlite.Store
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("status server requires the agent")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h := &handlers{cfg: cfg}
	router.GET("/status", h.handleStatus)
	router.GET("/cycles", h.handleCycles)
	router.GET("/orders", h.handleOrders)
	router.GET("/ledger", h.handleLedger)
	router.GET("/report", h.handleReport)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type handlers struct {
	cfg ServerConfig
}

func (h *handlers) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Agent.Status())
}

func (h *handlers) handleCycles(c *gin.Context) {
	if h.cfg.Cycles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle history not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	recs, err := h.cfg.Cycles.RecentCycles(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] cycles failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": recs})
}

func (h *handlers) handleOrders(c *gin.Context) {
	if h.cfg.Orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order event store not enabled"})
		return
	}
	if cycleID := c.Query("cycle_id"); cycleID != "" {
		events, err := h.cfg.Orders.EventsForCycle(c.Request.Context(), cycleID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.cfg.Orders.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *handlers) handleLedger(c *gin.Context) {
	if h.cfg.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := h.cfg.Ledger.Tail(limit)
	if err != nil {
		logger.Errorf("[api] ledger failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			c.ClientIP(), time.Since(start))
	}
}
