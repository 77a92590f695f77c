package scheduler

import (
	"time"

	"github.com/JustinTDCT/onlineTracker/model"
)

// phasePrime spreads monitor ids sharing an interval over the interval.
const phasePrime = 7

func phaseOffset(id uint64, intervalSec int64) int64 {
	return int64((id * phasePrime) % uint64(intervalSec))
}

// onPhase reports whether now lies within half a tick of one of the
// monitor's phase boundaries, offset + k*interval seconds.
func onPhase(now time.Time, offset, intervalSec int64, tick time.Duration) bool {
	x := now.Add(tick / 2).Unix()
	r := (x - offset) % intervalSec
	if r < 0 {
		r += intervalSec
	}
	return time.Duration(r)*time.Second < tick
}

// isDue reports whether m should be probed at now given its last check.
// A check is never due before interval-tick/2 has elapsed. Past that point
// it waits for its phase boundary, but never longer than one more interval.
func isDue(m *model.Monitor, last *time.Time, now time.Time, tick time.Duration) bool {
	if last == nil {
		return true
	}
	interval := m.Interval()
	halfTick := tick / 2
	elapsed := now.Sub(*last)
	switch {
	case elapsed < interval-halfTick:
		return false
	case elapsed >= 2*interval-halfTick:
		return true
	}
	intervalSec := int64(interval / time.Second)
	return onPhase(now, phaseOffset(m.ID, intervalSec), intervalSec, tick)
}

// crossedThreshold returns the smallest warning threshold passed between
// two consecutive certificate readings.
func crossedThreshold(thresholds []int, prev, cur *int) (int, bool) {
	if prev == nil || cur == nil {
		return 0, false
	}
	var (
		best    int
		crossed bool
	)
	for _, t := range thresholds {
		if *prev > t && *cur <= t && (!crossed || t < best) {
			best, crossed = t, true
		}
	}
	return best, crossed
}
