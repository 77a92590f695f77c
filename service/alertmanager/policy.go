package alertmanager

import (
	"time"

	"github.com/JustinTDCT/onlineTracker/model"
)

const (
	AlertTypeNone     = "none"
	AlertTypeOnce     = "once"
	AlertTypeRepeated = "repeated"

	SeverityAll      = "all"
	SeverityDownOnly = "down_only"

	IncludeEventOnly = "event_only"
	IncludeLast24h   = "last_24h"
)

// Policy is the alerting behaviour read from settings on every evaluation.
type Policy struct {
	Type             string
	DownOnly         bool
	OnRestored       bool
	FailureThreshold int
	RepeatEvery      time.Duration
	IncludeHistory   bool
}

func PolicyFrom(s model.Settings) Policy {
	p := Policy{
		Type:             s.String(model.SettingAlertType),
		DownOnly:         s.String(model.SettingAlertSeverityThreshold) == SeverityDownOnly,
		OnRestored:       s.Bool(model.SettingAlertOnRestored),
		FailureThreshold: s.Int(model.SettingAlertFailureThreshold),
		RepeatEvery:      time.Duration(s.Int(model.SettingAlertRepeatFrequencyMinutes)) * time.Minute,
		IncludeHistory:   s.String(model.SettingAlertIncludeHistory) == IncludeLast24h,
	}
	switch p.Type {
	case AlertTypeNone, AlertTypeOnce, AlertTypeRepeated:
	default:
		p.Type = AlertTypeOnce
	}
	if p.FailureThreshold < 1 {
		p.FailureThreshold = 1
	}
	return p
}
