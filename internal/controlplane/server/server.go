// Package server 只读控制面：暴露模拟账户的概览、仓位、成交与交易者状态。
// 引擎自身不依赖本包，HTTP 层挂了也不影响扫描。
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/betbot/copybot/internal/engine"
	"github.com/betbot/copybot/internal/ledger"
	"github.com/betbot/copybot/pkg/logger"
)

type Server struct {
	store  *ledger.Store
	engine *engine.Engine
}

func New(store *ledger.Store, eng *engine.Engine) *Server {
	return &Server{store: store, engine: eng}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/summary", s.handleSummary)
	api.GET("/positions", s.handlePositions)
	api.GET("/trades", s.handleTrades)
	api.GET("/traders", s.handleTraders)
	api.GET("/status", s.handleStatus)
	api.POST("/scan", s.handleScanNow)

	return r
}

// Serve 启动 HTTP 服务，ctx 取消时优雅关闭
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Infof("控制面监听 %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSummary(c *gin.Context) {
	sum, err := s.store.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handlePositions(c *gin.Context) {
	status := strings.ToUpper(c.Query("status"))
	switch status {
	case "", "OPEN", "CLOSED", "ALL":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open, closed or all"})
		return
	}
	if status == "" {
		status = "OPEN"
	}
	if status == "ALL" {
		status = ""
	}

	positions, err := s.store.PositionsByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	trades, err := s.store.TradesPage(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleTraders(c *gin.Context) {
	traders, err := s.store.TrackedTraders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"traders": traders, "count": len(traders)})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scanning": s.engine != nil && s.engine.Running(),
	})
}

// handleScanNow 手动触发一次扫描周期。
// 周期进行中时返回 409，不排队。
func (s *Server) handleScanNow(c *gin.Context) {
	if s.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not running"})
		return
	}
	if s.engine.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
		return
	}
	go s.engine.RunCycle(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}
