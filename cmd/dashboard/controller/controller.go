package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/service/hub"
	"github.com/JustinTDCT/onlineTracker/service/rpc"
)

// Store is the slice of service/store the HTTP surface reads and writes.
type Store interface {
	ListMonitors(ctx context.Context) ([]*model.Monitor, error)
	GetMonitor(ctx context.Context, id uint64) (*model.Monitor, error)
	CreateMonitor(ctx context.Context, m *model.Monitor) error
	UpdateMonitor(ctx context.Context, m *model.Monitor) error
	DeleteMonitor(ctx context.Context, id uint64) error
	LatestStatuses(ctx context.Context) (map[uint64]*model.StatusRecord, error)
	GetRecentStatuses(ctx context.Context, monitorID uint64, limit int) ([]*model.StatusRecord, error)
	GetStatusDetail(ctx context.Context, id uint64) (*model.StatusRecord, error)
	ListAlerts(ctx context.Context, monitorID uint64, limit int) ([]*model.AlertRecord, error)
	GetSettings(ctx context.Context) (model.Settings, error)
	SetSettings(ctx context.Context, values map[string]string) error
	ListAgents(ctx context.Context) ([]*model.Agent, error)
	ListPendingAgents(ctx context.Context) ([]*model.PendingAgent, error)
	PushReceivers(ctx context.Context) ([]*model.PushReceiver, error)
	CreatePushReceiver(ctx context.Context, r *model.PushReceiver) error
	Ping(ctx context.Context) error
}

type Options struct {
	Store  Store
	Agents *rpc.AgentHandler
	Hub    *hub.Hub
	Log    *zap.Logger
	Clock  utils.Clock
	// AdminToken is the bearer token of the manage API; empty disables it.
	AdminToken string
	Debug      bool
}

// NewRouter wires every route of the dashboard.
func NewRouter(o Options) *gin.Engine {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = utils.SystemClock
	}
	if !o.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(o.Log.With(zap.String("component", "http"))))
	if o.Debug {
		pprof.Register(r)
	}

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := o.Store.Ping(ctx); err != nil {
			fail(c, http.StatusServiceUnavailable, err)
			return
		}
		ok(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := authorize(o.AdminToken)
	api := r.Group("api")
	{
		aa := &agentAPI{r: api.Group("agents"), agents: o.Agents, store: o.Store, clock: o.Clock, admin: admin}
		aa.serve()
		sa := &statusAPI{r: api, store: o.Store, clock: o.Clock}
		sa.serve()
		ma := &manageAPI{r: api.Group("", admin), store: o.Store}
		ma.serve()
	}

	ws := &wsAPI{hub: o.Hub, debug: o.Debug}
	r.GET("/ws", ws.serve)
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			log.Warn("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
