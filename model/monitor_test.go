package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMonitorKind(t *testing.T) {
	cases := []struct {
		input  string
		expect MonitorKind
		err    bool
	}{
		{input: "ping", expect: MonitorKindPing},
		{input: "HTTPS", expect: MonitorKindHTTPS},
		{input: " http ", expect: MonitorKindHTTP},
		{input: "tls", expect: MonitorKindTLS},
		{input: "ssl", expect: MonitorKindTLS},
		{input: "tcp", err: true},
		{input: "", err: true},
	}
	for _, c := range cases {
		kind, err := ParseMonitorKind(c.input)
		if c.err {
			assert.ErrorIs(t, err, ErrUnknownMonitorKind, c.input)
			continue
		}
		assert.NoError(t, err, c.input)
		assert.Equal(t, c.expect, kind, c.input)
	}
}

func TestMonitorValidate(t *testing.T) {
	m := Monitor{Kind: MonitorKindHTTP, Target: "example.com", CheckInterval: 60}
	assert.NoError(t, m.Validate())

	for _, interval := range []int{0, 9, 3601} {
		m.CheckInterval = interval
		assert.ErrorIs(t, m.Validate(), ErrCheckInterval)
	}
	for _, interval := range []int{10, 3600} {
		m.CheckInterval = interval
		assert.NoError(t, m.Validate())
	}

	m.Target = "  "
	assert.Error(t, m.Validate())
}

func TestMonitorInterval(t *testing.T) {
	m := Monitor{CheckInterval: 30}
	assert.Equal(t, "30s", m.Interval().String())
	m.CheckInterval = 5
	assert.Equal(t, "1m0s", m.Interval().String())
}

func TestMonitorLocal(t *testing.T) {
	m := Monitor{}
	assert.True(t, m.Local())
	empty := ""
	m.AgentID = &empty
	assert.True(t, m.Local())
	id := "a0c1"
	m.AgentID = &id
	assert.False(t, m.Local())
}

func TestMonitorConfigHooks(t *testing.T) {
	status := 204
	m := Monitor{
		Kind:          "SSL",
		Target:        "example.com",
		CheckInterval: 0,
		Config:        ProbeConfig{ExpectedStatus: &status, ExpectedContent: "ok"},
	}
	assert.NoError(t, m.BeforeSave(nil))
	assert.Equal(t, MonitorKindTLS, m.Kind)
	assert.Equal(t, DefaultCheckInterval, m.CheckInterval)
	assert.JSONEq(t, `{"expected_status":204,"expected_content":"ok"}`, m.ConfigRaw)

	loaded := Monitor{ConfigRaw: m.ConfigRaw}
	assert.NoError(t, loaded.AfterFind(nil))
	if assert.NotNil(t, loaded.Config.ExpectedStatus) {
		assert.Equal(t, 204, *loaded.Config.ExpectedStatus)
	}
	assert.Equal(t, "ok", loaded.Config.ExpectedContent)
	assert.Nil(t, loaded.Config.PingCount)
}

func TestProbeConfigWithDefaults(t *testing.T) {
	count := 2
	c := ProbeConfig{PingCount: &count, ExpectedContent: "ok"}
	d := Settings{}.ProbeDefaults()

	full := c.WithDefaults(d)
	assert.Equal(t, 2, *full.PingCount)
	assert.Equal(t, 3, *full.HTTPRequestCount)
	assert.Equal(t, 80, *full.PingOKThresholdMs)
	assert.Equal(t, 200, *full.HTTPDegradedThresholdMs)
	assert.Equal(t, 14, *full.SSLWarningThresholdDays)
	assert.Equal(t, 10, *full.TimeoutSeconds)
	assert.Equal(t, "ok", full.ExpectedContent)
	assert.Nil(t, full.ExpectedStatus)
	assert.Nil(t, c.TimeoutSeconds)
}
