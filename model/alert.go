package model

import "time"

type AlertKind string

const (
	AlertKindUp          AlertKind = "up"
	AlertKindDegraded    AlertKind = "degraded"
	AlertKindDown        AlertKind = "down"
	AlertKindUnknown     AlertKind = "unknown"
	AlertKindSSLExpiring AlertKind = "ssl_expiring"
)

// FailureAlertKinds are the kinds that start or repeat an outage notification.
var FailureAlertKinds = []AlertKind{AlertKindDown, AlertKindDegraded}

func AlertKindOf(s Status) AlertKind {
	return AlertKind(s)
}

type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelEmail   Channel = "email"
	ChannelPush    Channel = "push"
)

// AlertRecord 每个通知渠道的一次发送尝试
type AlertRecord struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	MonitorID uint64    `gorm:"index:idx_alert_monitor_sent_at" json:"monitor_id"`
	Kind      AlertKind `gorm:"index" json:"kind"`
	Channel   Channel   `json:"channel"`
	SentAt    time.Time `gorm:"index:idx_alert_monitor_sent_at" json:"sent_at"`
	Payload   string    `json:"payload"`
	Success   bool      `json:"success"`
}
