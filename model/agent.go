package model

import (
	"strings"
	"time"
)

// Agent is a remote prober. Monitors point at it through Monitor.AgentID.
type Agent struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Name       string     `json:"name"`
	SecretHash string     `json:"-"`
	Approved   bool       `json:"approved"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Online reports whether the agent reported within the timeout window.
func (a *Agent) Online(now time.Time, timeout time.Duration) bool {
	return a.LastSeen != nil && now.Sub(*a.LastSeen) <= timeout
}

func (a *Agent) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.ID
}

// PendingAgent 未在白名单内的注册请求，等待管理员处理
type PendingAgent struct {
	UUID         string    `gorm:"primaryKey" json:"uuid"`
	Name         string    `json:"name"`
	SecretHash   string    `json:"-"`
	FirstAttempt time.Time `json:"first_attempt"`
	LastAttempt  time.Time `json:"last_attempt"`
	AttemptCount int       `json:"attempt_count"`
}

type AgentRegisterRequest struct {
	UUID       string `json:"uuid" binding:"required"`
	Name       string `json:"name"`
	SecretHash string `json:"secret_hash" binding:"required"`
}

type AgentRegisterResponse struct {
	AgentID string `json:"agent_id"`
}

type AgentResultItem struct {
	MonitorID      uint64    `json:"monitor_id"`
	Status         string    `json:"status"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty"`
	Details        string    `json:"details,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

type AgentReport struct {
	UUID    string            `json:"uuid" binding:"required"`
	Secret  string            `json:"secret" binding:"required"`
	Results []AgentResultItem `json:"results"`
}

type AgentReportResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// AgentMonitor is the assignment an agent receives for one monitor.
type AgentMonitor struct {
	ID            uint64      `json:"id"`
	Name          string      `json:"name"`
	Kind          MonitorKind `json:"type"`
	Target        string      `json:"target"`
	CheckInterval int         `json:"check_interval"`
	Config        ProbeConfig `json:"config"`
}
