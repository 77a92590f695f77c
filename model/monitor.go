package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

type MonitorKind string

const (
	MonitorKindPing  MonitorKind = "ping"
	MonitorKindHTTP  MonitorKind = "http"
	MonitorKindHTTPS MonitorKind = "https"
	MonitorKindTLS   MonitorKind = "tls"
)

const (
	MinCheckInterval     = 10
	MaxCheckInterval     = 3600
	DefaultCheckInterval = 60
)

var (
	ErrUnknownMonitorKind = errors.New("unknown monitor kind")
	ErrCheckInterval      = fmt.Errorf("check interval must be within [%d, %d] seconds", MinCheckInterval, MaxCheckInterval)
	ErrEmptyTarget        = errors.New("monitor target is empty")
)

// ParseMonitorKind accepts the legacy "ssl" spelling for tls monitors.
func ParseMonitorKind(s string) (MonitorKind, error) {
	switch k := MonitorKind(strings.ToLower(strings.TrimSpace(s))); k {
	case MonitorKindPing, MonitorKindHTTP, MonitorKindHTTPS, MonitorKindTLS:
		return k, nil
	case "ssl":
		return MonitorKindTLS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMonitorKind, s)
}

// ProbeConfig 监控的探测参数，未设置的字段回落到全局设置
type ProbeConfig struct {
	ExpectedStatus   *int   `json:"expected_status,omitempty"`
	ExpectedContent  string `json:"expected_content,omitempty"`
	ExpectedBodyHash string `json:"expected_body_hash,omitempty"`

	PingCount        *int `json:"ping_count,omitempty"`
	HTTPRequestCount *int `json:"http_request_count,omitempty"`

	PingOKThresholdMs       *int `json:"ping_ok_threshold_ms,omitempty"`
	PingDegradedThresholdMs *int `json:"ping_degraded_threshold_ms,omitempty"`
	HTTPOKThresholdMs       *int `json:"http_ok_threshold_ms,omitempty"`
	HTTPDegradedThresholdMs *int `json:"http_degraded_threshold_ms,omitempty"`

	SSLOKThresholdDays      *int `json:"ssl_ok_threshold_days,omitempty"`
	SSLWarningThresholdDays *int `json:"ssl_warning_threshold_days,omitempty"`

	TimeoutSeconds *int `json:"timeout_seconds,omitempty"`
}

// WithDefaults fills every unset field from d, so the result no longer depends on server settings.
func (c ProbeConfig) WithDefaults(d ProbeDefaults) ProbeConfig {
	fill := func(v *int, def int) *int {
		if v != nil {
			return v
		}
		return &def
	}
	c.PingCount = fill(c.PingCount, d.PingCount)
	c.HTTPRequestCount = fill(c.HTTPRequestCount, d.HTTPRequestCount)
	c.PingOKThresholdMs = fill(c.PingOKThresholdMs, d.PingOKThresholdMs)
	c.PingDegradedThresholdMs = fill(c.PingDegradedThresholdMs, d.PingDegradedThresholdMs)
	c.HTTPOKThresholdMs = fill(c.HTTPOKThresholdMs, d.HTTPOKThresholdMs)
	c.HTTPDegradedThresholdMs = fill(c.HTTPDegradedThresholdMs, d.HTTPDegradedThresholdMs)
	c.SSLOKThresholdDays = fill(c.SSLOKThresholdDays, d.SSLOKThresholdDays)
	c.SSLWarningThresholdDays = fill(c.SSLWarningThresholdDays, d.SSLWarningThresholdDays)
	c.TimeoutSeconds = fill(c.TimeoutSeconds, d.TimeoutSeconds)
	return c
}

type Monitor struct {
	Common
	Name          string      `json:"name"`
	Kind          MonitorKind `gorm:"column:type;index" json:"type"`
	Target        string      `json:"target"`
	ConfigRaw     string      `gorm:"column:config;default:'{}'" json:"-"`
	Config        ProbeConfig `gorm:"-" json:"config"`
	CheckInterval int         `gorm:"default:60" json:"check_interval"`
	Enabled       bool        `gorm:"index" json:"enabled"`
	AgentID       *string     `gorm:"index" json:"agent_id,omitempty"`

	// LastCheckedAt is filled by the store when listing candidates.
	LastCheckedAt *time.Time `gorm:"-" json:"last_checked_at,omitempty"`
}

func (m *Monitor) Validate() error {
	if _, err := ParseMonitorKind(string(m.Kind)); err != nil {
		return err
	}
	if m.CheckInterval < MinCheckInterval || m.CheckInterval > MaxCheckInterval {
		return ErrCheckInterval
	}
	if strings.TrimSpace(m.Target) == "" {
		return ErrEmptyTarget
	}
	return nil
}

// Interval 返回检查间隔，非法值按默认间隔处理
func (m *Monitor) Interval() time.Duration {
	if m.CheckInterval < MinCheckInterval || m.CheckInterval > MaxCheckInterval {
		return DefaultCheckInterval * time.Second
	}
	return time.Duration(m.CheckInterval) * time.Second
}

func (m *Monitor) Local() bool {
	return m.AgentID == nil || *m.AgentID == ""
}

func (m *Monitor) BeforeSave(tx *gorm.DB) error {
	if k, err := ParseMonitorKind(string(m.Kind)); err != nil {
		return err
	} else {
		m.Kind = k
	}
	if m.CheckInterval == 0 {
		m.CheckInterval = DefaultCheckInterval
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if data, err := utils.Json.Marshal(m.Config); err != nil {
		return err
	} else {
		m.ConfigRaw = string(data)
	}
	return nil
}

func (m *Monitor) AfterFind(tx *gorm.DB) error {
	m.Config = ProbeConfig{}
	if m.ConfigRaw == "" {
		return nil
	}
	return utils.Json.Unmarshal([]byte(m.ConfigRaw), &m.Config)
}
