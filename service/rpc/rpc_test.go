package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var now = time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)

type pending struct {
	name, hash string
	attempts   int
}

type memStore struct {
	settings model.Settings
	agents   map[string]*model.Agent
	pending  map[string]*pending
	monitors map[uint64]*model.Monitor
}

func newMemStore() *memStore {
	return &memStore{
		settings: model.Settings{
			model.SettingSharedSecret:      "s3cret",
			model.SettingAllowedAgentUUIDs: "agent-1, AGENT-2",
		},
		agents:   map[string]*model.Agent{},
		pending:  map[string]*pending{},
		monitors: map[uint64]*model.Monitor{},
	}
}

func (s *memStore) GetSettings(context.Context) (model.Settings, error) { return s.settings, nil }

func (s *memStore) GetAgent(_ context.Context, id string) (*model.Agent, error) {
	return s.agents[id], nil
}

func (s *memStore) UpsertAgent(_ context.Context, a *model.Agent) error {
	s.agents[a.ID] = a
	delete(s.pending, a.ID)
	return nil
}

func (s *memStore) TouchAgent(_ context.Context, id string, at time.Time) error {
	if a, ok := s.agents[id]; ok {
		a.LastSeen = &at
	}
	return nil
}

func (s *memStore) RecordPendingAgent(_ context.Context, uuid, name, hash string, _ time.Time) error {
	p, ok := s.pending[uuid]
	if !ok {
		p = &pending{}
		s.pending[uuid] = p
	}
	p.name, p.hash = name, hash
	p.attempts++
	return nil
}

func (s *memStore) GetMonitor(_ context.Context, id uint64) (*model.Monitor, error) {
	m, ok := s.monitors[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return m, nil
}

func (s *memStore) ListAgentMonitors(_ context.Context, agentID string) ([]*model.Monitor, error) {
	var ret []*model.Monitor
	for id := uint64(1); id <= 10; id++ {
		if m, ok := s.monitors[id]; ok && m.Enabled && m.AgentID != nil && *m.AgentID == agentID {
			ret = append(ret, m)
		}
	}
	return ret, nil
}

type recorder struct {
	records []*model.StatusRecord
	err     error
}

func (r *recorder) Record(_ context.Context, _ *model.Monitor, rec *model.StatusRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func newHandler(t *testing.T) (*AgentHandler, *memStore, *recorder) {
	st, rec := newMemStore(), &recorder{}
	return NewAgentHandler(st, rec, WithClock(fixedClock(now)), WithLogger(zaptest.NewLogger(t))), st, rec
}

func TestRegister(t *testing.T) {
	h, st, _ := newHandler(t)
	ctx := context.Background()
	good := utils.SHA256Hex("s3cret")

	type testSt struct {
		req     model.AgentRegisterRequest
		err     error
		pending bool
	}
	cases := []testSt{
		{req: model.AgentRegisterRequest{UUID: "stranger", Name: "x", SecretHash: good}, err: ErrNotAllowed, pending: true},
		{req: model.AgentRegisterRequest{UUID: "agent-1", Name: "edge", SecretHash: utils.SHA256Hex("wrong")}, err: ErrUnauthenticated},
		{req: model.AgentRegisterRequest{UUID: "agent-2", Name: "core", SecretHash: good}},
		{req: model.AgentRegisterRequest{UUID: "agent-1", Name: "edge", SecretHash: good}},
	}
	for _, c := range cases {
		resp, err := h.Register(ctx, &c.req)
		if c.err != nil {
			assert.ErrorIs(t, err, c.err, c.req.UUID)
			assert.Nil(t, resp)
		} else {
			require.NoError(t, err, c.req.UUID)
			assert.Equal(t, c.req.UUID, resp.AgentID)
			assert.True(t, st.agents[c.req.UUID].Approved)
		}
		_, parked := st.pending[c.req.UUID]
		assert.Equal(t, c.pending, parked, c.req.UUID)
	}

	_, err := h.Register(ctx, &model.AgentRegisterRequest{UUID: "stranger", SecretHash: good})
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Equal(t, 2, st.pending["stranger"].attempts)

	st.settings[model.SettingSharedSecret] = ""
	_, err = h.Register(ctx, &model.AgentRegisterRequest{UUID: "agent-1", SecretHash: utils.SHA256Hex("")})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func registeredHandler(t *testing.T) (*AgentHandler, *memStore, *recorder) {
	h, st, rec := newHandler(t)
	_, err := h.Register(context.Background(), &model.AgentRegisterRequest{UUID: "agent-1", Name: "edge", SecretHash: utils.SHA256Hex("s3cret")})
	require.NoError(t, err)
	return h, st, rec
}

func TestAuthenticate(t *testing.T) {
	h, st, _ := registeredHandler(t)
	ctx := context.Background()

	a, err := h.Authenticate(ctx, "agent-1", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "edge", a.Name)

	_, err = h.Authenticate(ctx, "agent-1", "nope")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = h.Authenticate(ctx, "agent-1", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = h.Authenticate(ctx, "ghost", "s3cret")
	assert.ErrorIs(t, err, ErrUnknownAgent)

	st.agents["agent-1"].Approved = false
	_, err = h.Authenticate(ctx, "agent-1", "s3cret")
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestReport(t *testing.T) {
	h, st, rec := registeredHandler(t)
	mine, other := "agent-1", "agent-9"
	st.monitors[1] = &model.Monitor{Common: model.Common{ID: 1}, Name: "a", AgentID: &mine, Enabled: true}
	st.monitors[2] = &model.Monitor{Common: model.Common{ID: 2}, Name: "b", AgentID: &other, Enabled: true}
	st.monitors[3] = &model.Monitor{Common: model.Common{ID: 3}, Name: "c", Enabled: true}

	rt := 42
	checked := now.Add(-time.Minute)
	resp, err := h.Report(context.Background(), &model.AgentReport{
		UUID:   "agent-1",
		Secret: "s3cret",
		Results: []model.AgentResultItem{
			{MonitorID: 1, Status: "down", ResponseTimeMs: &rt, Details: "Ping timeout", CheckedAt: checked},
			{MonitorID: 1, Status: "up"},
			{MonitorID: 1, Status: "sideways"},
			{MonitorID: 2, Status: "up"},
			{MonitorID: 3, Status: "up"},
			{MonitorID: 99, Status: "up"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, 4, resp.Rejected)
	assert.Len(t, resp.Errors, 4)

	require.Len(t, rec.records, 2)
	assert.Equal(t, model.StatusDown, rec.records[0].Status)
	assert.Equal(t, checked, rec.records[0].CheckedAt)
	assert.Equal(t, 42, *rec.records[0].ResponseTimeMs)
	assert.Equal(t, now, rec.records[1].CheckedAt)
	assert.Equal(t, now, *st.agents["agent-1"].LastSeen)

	_, err = h.Report(context.Background(), &model.AgentReport{UUID: "agent-1", Secret: "bad"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestReportDisabledMonitor(t *testing.T) {
	h, st, rec := registeredHandler(t)
	mine := "agent-1"
	st.monitors[1] = &model.Monitor{Common: model.Common{ID: 1}, Name: "paused", AgentID: &mine, Enabled: false}
	st.monitors[2] = &model.Monitor{Common: model.Common{ID: 2}, Name: "live", AgentID: &mine, Enabled: true}

	resp, err := h.Report(context.Background(), &model.AgentReport{UUID: "agent-1", Secret: "s3cret",
		Results: []model.AgentResultItem{{MonitorID: 1, Status: "down"}, {MonitorID: 2, Status: "up"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 1, resp.Rejected)
	assert.Equal(t, []string{"monitor 1: monitor disabled"}, resp.Errors)
	require.Len(t, rec.records, 1)
	assert.EqualValues(t, 2, rec.records[0].MonitorID)
}

func TestReportStorageFailure(t *testing.T) {
	h, st, rec := registeredHandler(t)
	mine := "agent-1"
	st.monitors[1] = &model.Monitor{Common: model.Common{ID: 1}, AgentID: &mine, Enabled: true}
	rec.err = errors.New("database is locked")

	resp, err := h.Report(context.Background(), &model.AgentReport{UUID: "agent-1", Secret: "s3cret",
		Results: []model.AgentResultItem{{MonitorID: 1, Status: "up"}}})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Accepted)
	assert.Equal(t, 1, resp.Rejected)
}

func TestAssignments(t *testing.T) {
	h, st, _ := registeredHandler(t)
	mine := "agent-1"
	count := 4
	st.monitors[1] = &model.Monitor{Common: model.Common{ID: 1}, Name: "a", Kind: model.MonitorKindPing, Target: "10.0.0.1",
		CheckInterval: 30, AgentID: &mine, Enabled: true, Config: model.ProbeConfig{PingCount: &count}}
	st.monitors[2] = &model.Monitor{Common: model.Common{ID: 2}, Name: "off", AgentID: &mine, Enabled: false}
	st.settings[model.SettingDefaultTimeoutSeconds] = "7"

	got, err := h.Assignments(context.Background(), "agent-1", "s3cret")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.MonitorKindPing, got[0].Kind)
	assert.Equal(t, 30, got[0].CheckInterval)
	assert.Equal(t, 4, *got[0].Config.PingCount)
	assert.Equal(t, 7, *got[0].Config.TimeoutSeconds)

	_, err = h.Assignments(context.Background(), "agent-1", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
