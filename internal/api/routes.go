package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rawblock/triarb-engine/internal/ledger"
	"github.com/rawblock/triarb-engine/internal/queue"
)

// APIHandler serves the operator control/observability surface: health,
// stats, the dashboard websocket feed, and the manual kill-switch toggle.
// It never touches the detection pipeline directly — every mutation goes
// through the same Ledger/Breaker the detector and queue already share.
type APIHandler struct {
	led       *ledger.Ledger
	breaker   *ledger.Breaker
	q         *queue.Queue
	wsHub     *Hub
	killPath  string
	paperMode bool
	startedAt time.Time
	log       *zap.Logger
}

// SetupRouter wires the control API. killSwitchPath is the same marker
// path internal/killswitch.Watcher polls; the admin endpoints just create
// or remove that file, so the watcher and the admin toggle share one
// source of truth. metricsReg must be the same registry the pipeline's
// internal/metrics.Metrics bundle was registered against, or /metrics
// scrapes an empty registry.
func SetupRouter(led *ledger.Ledger, breaker *ledger.Breaker, q *queue.Queue, wsHub *Hub, metricsReg *prometheus.Registry, killSwitchPath string, paperMode bool, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowedOrigins == "" || allowedOrigins == "*":
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		default:
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		led:       led,
		breaker:   breaker,
		q:         q,
		wsHub:     wsHub,
		killPath:  killSwitchPath,
		paperMode: paperMode,
		startedAt: time.Now(),
		log:       log,
	}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stats", handler.handleStats)
		pub.GET("/stream", wsHub.Subscribe)
	}
	pub.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{})))

	admin := r.Group("/admin")
	admin.Use(AuthMiddleware(log))
	admin.Use(NewRateLimiter(30, 5).Middleware())
	{
		admin.POST("/kill", handler.handleKillSwitchEngage)
		admin.POST("/kill/clear", handler.handleKillSwitchClear)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "operational",
		"uptime":    time.Since(h.startedAt).String(),
		"paperMode": h.paperMode,
	})
}

// handleStats returns a read-only point-in-time report: trade ledger
// snapshot, breaker state, and queue depth. The pipeline counters kept by
// internal/metrics (ticks, candidates, rejections) are served only on
// /metrics.
func (h *APIHandler) handleStats(c *gin.Context) {
	now := time.Now()
	snap := h.led.Snapshot(now)

	c.JSON(http.StatusOK, gin.H{
		"ledger": gin.H{
			"totalCapital":        snap.TotalCapital,
			"reserved":            snap.Reserved,
			"freeCapital":         snap.FreeCapital,
			"dailyPnL":            snap.DailyPnL,
			"dailyTradeCount":     snap.DailyTradeCount,
			"consecutiveFailures": snap.ConsecutiveFailures,
		},
		"breaker": gin.H{
			"state":    h.breaker.State().String(),
			"reason":   h.breaker.Reason(),
			"openedAt": h.breaker.OpenedAt(),
		},
		"queueDepth": h.q.Len(),
	})
}

// handleKillSwitchEngage creates the kill-switch marker file, the same
// contract internal/killswitch.Watcher polls for. Gives operators a second
// way to flip the marker when they don't share a filesystem with the
// running process.
func (h *APIHandler) handleKillSwitchEngage(c *gin.Context) {
	if err := os.WriteFile(h.killPath, []byte("engaged via admin API at "+time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		h.log.Error("failed to write kill switch marker", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to engage kill switch"})
		return
	}
	h.log.Warn("kill switch engaged via admin API", zap.String("remoteAddr", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"status": "engaged"})
}

// handleKillSwitchClear removes the marker file. Clearing it does not
// itself resume submission — the breaker still requires one clean
// detection tick to confirm the rearm (spec §4.4/§6).
func (h *APIHandler) handleKillSwitchClear(c *gin.Context) {
	if err := os.Remove(h.killPath); err != nil && !os.IsNotExist(err) {
		h.log.Error("failed to remove kill switch marker", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear kill switch"})
		return
	}
	h.log.Info("kill switch marker cleared via admin API", zap.String("remoteAddr", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{
		"status": "cleared",
		"note":   "breaker still requires one clean detection tick to rearm",
	})
}
