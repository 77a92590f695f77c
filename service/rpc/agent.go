package rpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

type Store interface {
	GetSettings(ctx context.Context) (model.Settings, error)
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	UpsertAgent(ctx context.Context, a *model.Agent) error
	TouchAgent(ctx context.Context, id string, at time.Time) error
	RecordPendingAgent(ctx context.Context, uuid, name, secretHash string, at time.Time) error
	GetMonitor(ctx context.Context, id uint64) (*model.Monitor, error)
	ListAgentMonitors(ctx context.Context, agentID string) ([]*model.Monitor, error)
}

// Recorder persists a result and runs alerting for it.
type Recorder interface {
	Record(ctx context.Context, m *model.Monitor, r *model.StatusRecord) error
}

// AgentHandler serves the remote agent protocol.
type AgentHandler struct {
	store    Store
	recorder Recorder
	clock    utils.Clock
	log      *zap.Logger
}

type Option func(*AgentHandler)

func WithClock(c utils.Clock) Option {
	return func(h *AgentHandler) { h.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *AgentHandler) { h.log = l }
}

func NewAgentHandler(store Store, recorder Recorder, opts ...Option) *AgentHandler {
	h := &AgentHandler{
		store:    store,
		recorder: recorder,
		clock:    utils.SystemClock,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(zap.String("component", "agent_rpc"))
	return h
}

// Report ingests a batch of results. Results for monitors not assigned to the
// agent or disabled, and results carrying an unknown status, are rejected one by one.
func (h *AgentHandler) Report(ctx context.Context, report *model.AgentReport) (*model.AgentReportResponse, error) {
	agent, err := h.Authenticate(ctx, report.UUID, report.Secret)
	if err != nil {
		return nil, err
	}
	now := h.clock.Now()
	if err := h.store.TouchAgent(ctx, agent.ID, now); err != nil {
		h.log.Warn("update last seen", zap.String("agent_id", agent.ID), zap.Error(err))
	}

	resp := &model.AgentReportResponse{}
	reject := func(item model.AgentResultItem, reason string) {
		resp.Rejected++
		resp.Errors = append(resp.Errors, fmt.Sprintf("monitor %d: %s", item.MonitorID, reason))
	}
	for _, item := range report.Results {
		status, err := model.ParseStatus(item.Status)
		if err != nil {
			reject(item, err.Error())
			continue
		}
		m, err := h.store.GetMonitor(ctx, item.MonitorID)
		if err != nil || m.AgentID == nil || *m.AgentID != agent.ID {
			reject(item, "not assigned to this agent")
			continue
		}
		if !m.Enabled {
			reject(item, "monitor disabled")
			continue
		}
		checkedAt := item.CheckedAt
		if checkedAt.IsZero() {
			checkedAt = now
		}
		r := &model.StatusRecord{
			MonitorID:      m.ID,
			CheckedAt:      checkedAt,
			Status:         status,
			ResponseTimeMs: item.ResponseTimeMs,
			Details:        item.Details,
		}
		if err := h.recorder.Record(ctx, m, r); err != nil {
			reject(item, "storage unavailable")
			h.log.Error("record agent result", zap.String("agent_id", agent.ID), zap.Uint64("monitor_id", m.ID), zap.Error(err))
			continue
		}
		resp.Accepted++
	}
	h.log.Debug("agent report", zap.String("agent_id", agent.ID), zap.Int("accepted", resp.Accepted), zap.Int("rejected", resp.Rejected))
	return resp, nil
}

// Assignments lists the agent's enabled monitors with every probe parameter resolved.
func (h *AgentHandler) Assignments(ctx context.Context, agentID, secret string) ([]model.AgentMonitor, error) {
	agent, err := h.Authenticate(ctx, agentID, secret)
	if err != nil {
		return nil, err
	}
	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	monitors, err := h.store.ListAgentMonitors(ctx, agent.ID)
	if err != nil {
		return nil, err
	}
	defaults := settings.ProbeDefaults()
	ret := make([]model.AgentMonitor, 0, len(monitors))
	for _, m := range monitors {
		ret = append(ret, model.AgentMonitor{
			ID:            m.ID,
			Name:          m.Name,
			Kind:          m.Kind,
			Target:        m.Target,
			CheckInterval: m.CheckInterval,
			Config:        m.Config.WithDefaults(defaults),
		})
	}
	return ret, nil
}
