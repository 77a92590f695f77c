package model

import (
	"strconv"
	"strings"
	"time"
)

// Setting is one row of the runtime key-value settings table.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SettingCheckIntervalSeconds = "check_interval_seconds"

	SettingDefaultPingCount               = "default_ping_count"
	SettingDefaultPingOKThresholdMs       = "default_ping_ok_threshold_ms"
	SettingDefaultPingDegradedThresholdMs = "default_ping_degraded_threshold_ms"
	SettingDefaultHTTPRequestCount        = "default_http_request_count"
	SettingDefaultHTTPOKThresholdMs       = "default_http_ok_threshold_ms"
	SettingDefaultHTTPDegradedThresholdMs = "default_http_degraded_threshold_ms"
	SettingDefaultSSLOKThresholdDays      = "default_ssl_ok_threshold_days"
	SettingDefaultSSLWarningThresholdDays = "default_ssl_warning_threshold_days"
	SettingDefaultTimeoutSeconds          = "default_timeout_seconds"

	SettingAlertType                   = "alert_type"
	SettingAlertRepeatFrequencyMinutes = "alert_repeat_frequency_minutes"
	SettingAlertOnRestored             = "alert_on_restored"
	SettingAlertIncludeHistory         = "alert_include_history"
	SettingAlertSeverityThreshold      = "alert_severity_threshold"
	SettingAlertFailureThreshold       = "alert_failure_threshold"

	SettingWebhookURL       = "webhook_url"
	SettingWebhookHeaders   = "webhook_headers"
	SettingWebhookVerifySSL = "webhook_verify_ssl"

	SettingEmailAlertsEnabled = "email_alerts_enabled"
	SettingSMTPHost           = "smtp_host"
	SettingSMTPPort           = "smtp_port"
	SettingSMTPUsername       = "smtp_username"
	SettingSMTPPassword       = "smtp_password"
	SettingSMTPUseTLS         = "smtp_use_tls"
	SettingAlertEmailFrom     = "alert_email_from"
	SettingAlertEmailTo       = "alert_email_to"

	SettingPushAlertsEnabled = "push_alerts_enabled"

	SettingSharedSecret        = "shared_secret"
	SettingAllowedAgentUUIDs   = "allowed_agent_uuids"
	SettingAgentTimeoutMinutes = "agent_timeout_minutes"

	SettingSSLWarnDays = "ssl_warn_days"
)

// DefaultSettings 所有设置项的默认值
var DefaultSettings = map[string]string{
	SettingCheckIntervalSeconds: "60",

	SettingDefaultPingCount:               "5",
	SettingDefaultPingOKThresholdMs:       "80",
	SettingDefaultPingDegradedThresholdMs: "200",
	SettingDefaultHTTPRequestCount:        "3",
	SettingDefaultHTTPOKThresholdMs:       "80",
	SettingDefaultHTTPDegradedThresholdMs: "200",
	SettingDefaultSSLOKThresholdDays:      "30",
	SettingDefaultSSLWarningThresholdDays: "14",
	SettingDefaultTimeoutSeconds:          "10",

	SettingAlertType:                   "once",
	SettingAlertRepeatFrequencyMinutes: "15",
	SettingAlertOnRestored:             "1",
	SettingAlertIncludeHistory:         "event_only",
	SettingAlertSeverityThreshold:      "all",
	SettingAlertFailureThreshold:       "2",

	SettingWebhookURL:       "",
	SettingWebhookHeaders:   "",
	SettingWebhookVerifySSL: "1",

	SettingEmailAlertsEnabled: "0",
	SettingSMTPHost:           "",
	SettingSMTPPort:           "587",
	SettingSMTPUsername:       "",
	SettingSMTPPassword:       "",
	SettingSMTPUseTLS:         "1",
	SettingAlertEmailFrom:     "",
	SettingAlertEmailTo:       "",

	SettingPushAlertsEnabled: "0",

	SettingSharedSecret:        "",
	SettingAllowedAgentUUIDs:   "",
	SettingAgentTimeoutMinutes: "5",

	SettingSSLWarnDays: "30,14,7",
}

// Settings is a snapshot of the settings table. Missing keys read as their default.
type Settings map[string]string

func NewSettings(rows []Setting) Settings {
	s := make(Settings, len(rows))
	for _, r := range rows {
		s[r.Key] = r.Value
	}
	return s
}

func (s Settings) String(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return DefaultSettings[key]
}

// Int falls back to the default when the stored value does not parse.
func (s Settings) Int(key string) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s.String(key))); err == nil {
		return v
	}
	v, _ := strconv.Atoi(DefaultSettings[key])
	return v
}

func (s Settings) Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(s.String(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// List splits a comma separated value, dropping blanks.
func (s Settings) List(key string) []string {
	var ret []string
	for _, item := range strings.Split(s.String(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

func (s Settings) IntList(key string) []int {
	var ret []int
	for _, item := range s.List(key) {
		if v, err := strconv.Atoi(item); err == nil {
			ret = append(ret, v)
		}
	}
	return ret
}

// ProbeDefaults are the fleet-wide probe parameters a monitor falls back to.
type ProbeDefaults struct {
	PingCount               int
	PingOKThresholdMs       int
	PingDegradedThresholdMs int
	HTTPRequestCount        int
	HTTPOKThresholdMs       int
	HTTPDegradedThresholdMs int
	SSLOKThresholdDays      int
	SSLWarningThresholdDays int
	TimeoutSeconds          int
}

func (s Settings) ProbeDefaults() ProbeDefaults {
	return ProbeDefaults{
		PingCount:               s.Int(SettingDefaultPingCount),
		PingOKThresholdMs:       s.Int(SettingDefaultPingOKThresholdMs),
		PingDegradedThresholdMs: s.Int(SettingDefaultPingDegradedThresholdMs),
		HTTPRequestCount:        s.Int(SettingDefaultHTTPRequestCount),
		HTTPOKThresholdMs:       s.Int(SettingDefaultHTTPOKThresholdMs),
		HTTPDegradedThresholdMs: s.Int(SettingDefaultHTTPDegradedThresholdMs),
		SSLOKThresholdDays:      s.Int(SettingDefaultSSLOKThresholdDays),
		SSLWarningThresholdDays: s.Int(SettingDefaultSSLWarningThresholdDays),
		TimeoutSeconds:          s.Int(SettingDefaultTimeoutSeconds),
	}
}
