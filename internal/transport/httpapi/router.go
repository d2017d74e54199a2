package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pulse/internal/analysis"
	"pulse/internal/logger"
	"pulse/internal/market"
)

// Router 暴露分析结果的 HTTP API
type Router struct {
	svc     *analysis.Service
	source  market.Source
	started time.Time
}

func NewRouter(svc *analysis.Service, source market.Source) *Router {
	return &Router{svc: svc, source: source, started: time.Now()}
}

// Register 注册 /api/v1 下的全部路由
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/health", r.handleHealth)
	group.GET("/analysis/:symbol", r.handleAnalysis)
	group.POST("/analysis/batch", r.handleBatch)
	group.GET("/source/stats", r.handleSourceStats)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(r.started).Round(time.Second).String(),
	})
}

func (r *Router) handleAnalysis(c *gin.Context) {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	interval := c.DefaultQuery("interval", "1d")

	report, err := r.svc.Analyze(c.Request.Context(), symbol, interval)
	if err != nil {
		logger.Errorf("[api] analyze %s %s failed: %v", symbol, interval, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// BatchRequest 批量分析请求体
type BatchRequest struct {
	Symbols  []string `json:"symbols" binding:"required"`
	Interval string   `json:"interval"`
}

func (r *Router) handleBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if len(req.Symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols 不能为空"})
		return
	}
	if len(req.Symbols) > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "单次最多 50 个 symbol"})
		return
	}
	interval := req.Interval
	if interval == "" {
		interval = "1d"
	}

	reports, err := r.svc.AnalyzeBatch(c.Request.Context(), req.Symbols, interval)
	if err != nil {
		logger.Errorf("[api] batch analyze failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (r *Router) handleSourceStats(c *gin.Context) {
	if r.source == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	stats := r.source.Stats()
	c.JSON(http.StatusOK, gin.H{
		"requests":   stats.Requests,
		"errors":     stats.Errors,
		"last_error": stats.LastError,
	})
}
