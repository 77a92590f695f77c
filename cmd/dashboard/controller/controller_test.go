package controller

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/service/alertmanager"
	"github.com/JustinTDCT/onlineTracker/service/checker"
	"github.com/JustinTDCT/onlineTracker/service/hub"
	"github.com/JustinTDCT/onlineTracker/service/rpc"
	"github.com/JustinTDCT/onlineTracker/service/scheduler"
	"github.com/JustinTDCT/onlineTracker/service/store"
)

var dbSeq int64

const adminToken = "admin-token"

type testEnv struct {
	store  *store.Store
	router http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWithToken(t, adminToken)
}

func newEnvWithToken(t *testing.T, token string) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	dsn := fmt.Sprintf("file:controller_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	st, err := store.Open(model.DatabaseDriverSQLite, dsn, false, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.SetSettings(context.Background(), map[string]string{
		model.SettingSharedSecret:      "s3cret",
		model.SettingAllowedAgentUUIDs: "agent-1",
	}))

	alerter := alertmanager.New(st, nil, alertmanager.WithLogger(log))
	h := hub.New(log)
	sched := scheduler.New(st, checker.New(), alerter, scheduler.WithLogger(log), scheduler.WithPublisher(h))
	agents := rpc.NewAgentHandler(st, sched, rpc.WithLogger(log))
	return &testEnv{
		store:  st,
		router: NewRouter(Options{Store: st, Agents: agents, Hub: h, Log: log, AdminToken: token}),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, header map[string]string) (int, gjson.Result) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		data, err := utils.Json.Marshal(body)
		require.NoError(t, err)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w.Code, gjson.ParseBytes(w.Body.Bytes())
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	code, body := e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Get("result.status").String())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestMonitorCRUD(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodPost, "/api/monitors", jsonMap{"name": "site", "type": "ssl", "target": "example.com"}, nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	id := body.Get("result.id").Uint()
	assert.NotZero(t, id)
	assert.Equal(t, "tls", body.Get("result.type").String())
	assert.Equal(t, int64(60), body.Get("result.check_interval").Int())

	code, _ = e.do(t, http.MethodPost, "/api/monitors", jsonMap{"name": "bad", "type": "ftp", "target": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, http.MethodPost, "/api/monitors", jsonMap{"name": "bad", "type": "ping", "target": "x", "check_interval": 5}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, http.MethodPut, fmt.Sprintf("/api/monitors/%d", id), jsonMap{"name": "site2", "type": "https", "target": "example.com", "enabled": false}, nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "site2", body.Get("result.name").String())
	assert.False(t, body.Get("result.enabled").Bool())

	code, body = e.do(t, http.MethodGet, "/api/monitors", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), body.Get("result.#").Int())

	code, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/monitors/%d", id), nil, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/monitors/%d", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = e.do(t, http.MethodPut, "/api/monitors/abc", jsonMap{}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSettingsAPI(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodGet, "/api/settings", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, maskedValue, body.Get("result.shared_secret").String())
	assert.Equal(t, "once", body.Get("result.alert_type").String())

	code, _ = e.do(t, http.MethodPut, "/api/settings", map[string]string{"no_such_key": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodPut, "/api/settings", map[string]string{
		model.SettingAlertType:    "repeated",
		model.SettingSharedSecret: maskedValue,
	}, nil)
	require.Equal(t, http.StatusOK, code)

	settings, err := e.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "repeated", settings.String(model.SettingAlertType))
	assert.Equal(t, "s3cret", settings.String(model.SettingSharedSecret))
}

func TestAgentFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hash := utils.SHA256Hex("s3cret")

	code, _ := e.do(t, http.MethodPost, "/api/agents/register", jsonMap{"uuid": "stranger", "name": "x", "secret_hash": hash}, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, body := e.do(t, http.MethodGet, "/api/pending-agents", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "stranger", body.Get("result.0.uuid").String())

	code, _ = e.do(t, http.MethodPost, "/api/agents/register", jsonMap{"uuid": "agent-1", "name": "edge", "secret_hash": utils.SHA256Hex("nope")}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = e.do(t, http.MethodPost, "/api/agents/register", jsonMap{"uuid": "agent-1", "name": "edge", "secret_hash": hash}, nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "agent-1", body.Get("result.agent_id").String())

	agentID := "agent-1"
	m := &model.Monitor{Name: "remote", Kind: model.MonitorKindPing, Target: "10.1.1.1", Enabled: true, AgentID: &agentID}
	require.NoError(t, e.store.CreateMonitor(ctx, m))

	code, _ = e.do(t, http.MethodGet, "/api/agents/agent-1/monitors", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, body = e.do(t, http.MethodGet, "/api/agents/agent-1/monitors", nil, map[string]string{AgentSecretHeader: "s3cret"})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "10.1.1.1", body.Get("result.0.target").String())
	assert.Equal(t, int64(5), body.Get("result.0.config.ping_count").Int())

	code, body = e.do(t, http.MethodPost, "/api/agents/report", jsonMap{
		"uuid":   "agent-1",
		"secret": "s3cret",
		"results": []jsonMap{
			{"monitor_id": m.ID, "status": "down", "details": "Ping timeout", "checked_at": "2024-05-01T10:00:00Z"},
			{"monitor_id": m.ID + 100, "status": "up", "checked_at": "2024-05-01T10:00:00Z"},
		},
	}, nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, int64(1), body.Get("result.accepted").Int())
	assert.Equal(t, int64(1), body.Get("result.rejected").Int())

	code, body = e.do(t, http.MethodGet, fmt.Sprintf("/api/monitors/%d/history", m.ID), nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "down", body.Get("result.0.status").String())

	code, body = e.do(t, http.MethodGet, "/api/status", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "down", body.Get("result.0.latest.status").String())
	assert.Equal(t, "Ping timeout", body.Get("result.0.latest.details").String())

	code, body = e.do(t, http.MethodGet, "/api/agents", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("result.0.online").Bool())

	code, _ = e.do(t, http.MethodPost, "/api/agents/report", jsonMap{"uuid": "agent-1", "secret": "s3cret", "results": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, http.MethodPost, "/api/agents/report", jsonMap{"uuid": "agent-1", "secret": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPushReceiversAPI(t *testing.T) {
	e := newEnv(t)
	code, body := e.do(t, http.MethodPost, "/api/push-receivers", jsonMap{"name": "phone", "endpoint": "https://push.example.com", "token": "tok"}, nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.False(t, body.Get("result.token").Exists())
	assert.True(t, body.Get("result.enabled").Bool())

	code, body = e.do(t, http.MethodGet, "/api/push-receivers", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), body.Get("result.#").Int())
}

func TestManageAPIRequiresAdminToken(t *testing.T) {
	type testSt struct {
		method string
		path   string
		body   interface{}
	}
	routes := []testSt{
		{method: http.MethodGet, path: "/api/monitors"},
		{method: http.MethodPost, path: "/api/monitors", body: jsonMap{"name": "site", "type": "ping", "target": "10.0.0.1"}},
		{method: http.MethodPut, path: "/api/monitors/1", body: jsonMap{"name": "site", "type": "ping", "target": "10.0.0.1"}},
		{method: http.MethodDelete, path: "/api/monitors/1"},
		{method: http.MethodGet, path: "/api/settings"},
		{method: http.MethodPut, path: "/api/settings", body: map[string]string{model.SettingSharedSecret: "stolen"}},
		{method: http.MethodGet, path: "/api/pending-agents"},
		{method: http.MethodGet, path: "/api/push-receivers"},
		{method: http.MethodPost, path: "/api/push-receivers", body: jsonMap{"name": "x", "endpoint": "https://push.example.com"}},
		{method: http.MethodGet, path: "/api/agents"},
	}
	headers := []map[string]string{
		{"Authorization": ""},
		{"Authorization": "Bearer wrong"},
		{"Authorization": adminToken},
		{"Authorization": "Bearer ADMIN-TOKEN"},
	}

	e := newEnv(t)
	for _, r := range routes {
		for _, h := range headers {
			code, body := e.do(t, r.method, r.path, r.body, h)
			assert.Equal(t, http.StatusUnauthorized, code, "%s %s %v", r.method, r.path, h)
			assert.Equal(t, int64(http.StatusUnauthorized), body.Get("code").Int())
		}
	}
	settings, err := e.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", settings.String(model.SettingSharedSecret))
	monitors, err := e.store.ListMonitors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, monitors)

	// status reads stay public
	code, _ := e.do(t, http.MethodGet, "/api/status", nil, map[string]string{"Authorization": ""})
	assert.Equal(t, http.StatusOK, code)
	code, _ = e.do(t, http.MethodGet, "/health", nil, map[string]string{"Authorization": ""})
	assert.Equal(t, http.StatusOK, code)

	disabled := newEnvWithToken(t, "")
	for _, r := range routes {
		code, _ := disabled.do(t, r.method, r.path, r.body, map[string]string{"Authorization": "Bearer "})
		assert.Equal(t, http.StatusForbidden, code, "%s %s", r.method, r.path)
	}
}

type blockingStore struct {
	Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu      sync.Mutex
	calls   int
	ctxErrs []error
}

func (b *blockingStore) ListMonitors(ctx context.Context) ([]*model.Monitor, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	b.mu.Lock()
	b.calls++
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.mu.Unlock()
	m := &model.Monitor{Name: "site", Kind: model.MonitorKindPing, Target: "10.0.0.1", Enabled: true}
	m.ID = 1
	return []*model.Monitor{m}, ctx.Err()
}

func (b *blockingStore) LatestStatuses(ctx context.Context) (map[uint64]*model.StatusRecord, error) {
	return map[uint64]*model.StatusRecord{}, ctx.Err()
}

func TestOverviewSurvivesLeaderCancel(t *testing.T) {
	st := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	r := gin.New()
	sa := &statusAPI{r: r, store: st, clock: utils.SystemClock}
	sa.serve()

	serve := func(ctx context.Context) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil).WithContext(ctx))
		return w
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leader := make(chan *httptest.ResponseRecorder, 1)
	go func() { leader <- serve(leaderCtx) }()
	<-st.entered

	follower := make(chan *httptest.ResponseRecorder, 1)
	go func() { follower <- serve(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	close(st.release)

	w := <-follower
	<-leader
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := gjson.ParseBytes(w.Body.Bytes())
	assert.Equal(t, "site", body.Get("result.0.monitor.name").String())

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, err := range st.ctxErrs {
		assert.NoError(t, err)
	}
}

type jsonMap map[string]interface{}
