package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

func sample() (*model.Monitor, *model.StatusRecord) {
	rt := 12
	m := &model.Monitor{Name: "api", Kind: model.MonitorKindHTTPS}
	m.ID = 5
	r := &model.StatusRecord{
		ID:             900,
		MonitorID:      5,
		Status:         model.StatusDegraded,
		ResponseTimeMs: &rt,
		Details:        "High latency: 120ms",
		CheckedAt:      time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	return m, r
}

func TestNewStatusUpdate(t *testing.T) {
	m, r := sample()
	u, err := NewStatusUpdate(m, r)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), u.MonitorID)
	assert.Equal(t, "api", u.Name)
	assert.Equal(t, model.MonitorKindHTTPS, u.Kind)
	assert.Equal(t, model.StatusDegraded, u.Status)
	assert.Equal(t, 12, *u.ResponseTimeMs)
	assert.Equal(t, r.CheckedAt, u.CheckedAt)
}

func TestBroadcast(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(ws)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	m, r := sample()
	h.Publish(m, r)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got StatusUpdate
	require.NoError(t, utils.Json.Unmarshal(data, &got))
	assert.Equal(t, "api", got.Name)
	assert.Equal(t, model.StatusDegraded, got.Status)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPublishWithoutClients(t *testing.T) {
	h := New(nil)
	m, r := sample()
	assert.NotPanics(t, func() { h.Publish(m, r) })
}
