package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
	StatusUnknown  Status = "unknown"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusUp, StatusDegraded, StatusDown, StatusUnknown:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Failing reports whether the status counts towards an outage.
func (s Status) Failing() bool {
	return s == StatusDown || s == StatusDegraded
}

// StatusRecord 一次完整检查的结果，只追加不修改
type StatusRecord struct {
	ID             uint64         `gorm:"primaryKey" json:"id"`
	MonitorID      uint64         `gorm:"index:idx_status_monitor_checked_at" json:"monitor_id"`
	CheckedAt      time.Time      `gorm:"index:idx_status_monitor_checked_at;index" json:"checked_at"`
	Status         Status         `gorm:"index" json:"status"`
	ResponseTimeMs *int           `json:"response_time_ms,omitempty"`
	Details        string         `json:"details,omitempty"`
	TLSExpiryDays  *int           `json:"tls_expiry_days,omitempty"`
	BodyHash       string         `json:"body_hash,omitempty"`
	ProbeAttempts  []ProbeAttempt `gorm:"foreignKey:StatusID;constraint:OnDelete:CASCADE" json:"probe_attempts,omitempty"`
}

type ProbeAttempt struct {
	ID        uint64   `gorm:"primaryKey" json:"-"`
	StatusID  uint64   `gorm:"index" json:"-"`
	Sequence  int      `json:"sequence"`
	Success   bool     `json:"success"`
	LatencyMs *float64 `json:"latency_ms,omitempty"`
	Details   string   `json:"details,omitempty"`
}

// CheckOutcome is the result of one check, whether it ran locally or on an agent.
type CheckOutcome struct {
	Status         Status
	ResponseTimeMs *int
	Details        string
	BodyHash       string
	TLSExpiryDays  *int
	ProbeAttempts  []ProbeAttempt
}

func (o *CheckOutcome) Record(monitorID uint64, checkedAt time.Time) *StatusRecord {
	attempts := make([]ProbeAttempt, len(o.ProbeAttempts))
	copy(attempts, o.ProbeAttempts)
	return &StatusRecord{
		MonitorID:      monitorID,
		CheckedAt:      checkedAt,
		Status:         o.Status,
		ResponseTimeMs: o.ResponseTimeMs,
		Details:        o.Details,
		TLSExpiryDays:  o.TLSExpiryDays,
		BodyHash:       o.BodyHash,
		ProbeAttempts:  attempts,
	}
}
