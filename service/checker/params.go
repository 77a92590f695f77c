package checker

import (
	"time"

	"github.com/JustinTDCT/onlineTracker/model"
)

const (
	minProbeCount = 1
	maxProbeCount = 10
)

// Params are the fully resolved parameters of a single check.
type Params struct {
	Timeout time.Duration

	PingCount        int
	HTTPRequestCount int

	// OKThresholdMs and DegradedThresholdMs hold the latency bands of the monitor's kind.
	OKThresholdMs       int
	DegradedThresholdMs int

	ExpectedStatus   int
	ExpectedContent  string
	ExpectedBodyHash string

	TLSOKDays      int
	TLSWarningDays int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pick(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

// Resolve merges a monitor's probe config over the fleet defaults.
func Resolve(kind model.MonitorKind, c model.ProbeConfig, d model.ProbeDefaults) Params {
	p := Params{
		Timeout:          time.Duration(pick(c.TimeoutSeconds, d.TimeoutSeconds)) * time.Second,
		PingCount:        clamp(pick(c.PingCount, d.PingCount), minProbeCount, maxProbeCount),
		HTTPRequestCount: clamp(pick(c.HTTPRequestCount, d.HTTPRequestCount), minProbeCount, maxProbeCount),
		ExpectedStatus:   pick(c.ExpectedStatus, 0),
		ExpectedContent:  c.ExpectedContent,
		ExpectedBodyHash: c.ExpectedBodyHash,
		TLSOKDays:        pick(c.SSLOKThresholdDays, d.SSLOKThresholdDays),
		TLSWarningDays:   pick(c.SSLWarningThresholdDays, d.SSLWarningThresholdDays),
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	switch kind {
	case model.MonitorKindPing:
		p.OKThresholdMs = pick(c.PingOKThresholdMs, d.PingOKThresholdMs)
		p.DegradedThresholdMs = pick(c.PingDegradedThresholdMs, d.PingDegradedThresholdMs)
	default:
		p.OKThresholdMs = pick(c.HTTPOKThresholdMs, d.HTTPOKThresholdMs)
		p.DegradedThresholdMs = pick(c.HTTPDegradedThresholdMs, d.HTTPDegradedThresholdMs)
	}
	return p
}
