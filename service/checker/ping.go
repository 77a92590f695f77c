package checker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/model"
)

// ErrResolve is returned by a Pinger when the target has no address.
var ErrResolve = errors.New("could not resolve host")

type PingReply struct {
	Seq int // zero based
	RTT time.Duration
}

type Pinger interface {
	Ping(ctx context.Context, host string, count int, interval, timeout time.Duration) ([]PingReply, error)
}

// ICMPPinger sends echo requests with go-ping. Unprivileged mode uses UDP sockets.
type ICMPPinger struct {
	Privileged bool
}

func (p ICMPPinger) Ping(ctx context.Context, host string, count int, interval, timeout time.Duration) ([]PingReply, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolve, err)
	}
	pinger.Count = count
	pinger.Interval = interval
	pinger.Timeout = time.Duration(count)*interval + timeout
	pinger.SetPrivileged(p.Privileged)

	var (
		mu      sync.Mutex
		replies []PingReply
	)
	pinger.OnRecv = func(pkt *ping.Packet) {
		mu.Lock()
		replies = append(replies, PingReply{Seq: pkt.Seq, RTT: pkt.Rtt})
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()
	err = pinger.Run()
	close(done)

	mu.Lock()
	defer mu.Unlock()
	if err == nil && ctx.Err() != nil && len(replies) == 0 {
		err = ErrProbeTimeout
	}
	return replies, err
}

// pingHost strips what a user may paste around a host name.
func pingHost(target string) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	if i := strings.Index(target, "/"); i >= 0 {
		target = target[:i]
	}
	return target
}

func (c *Checker) checkPing(ctx context.Context, target string, p Params) *model.CheckOutcome {
	n := p.PingCount
	ctx, cancel := context.WithTimeout(ctx, time.Duration(n)*c.pingInterval+p.Timeout+5*time.Second)
	defer cancel()

	replies, err := c.pinger.Ping(ctx, pingHost(target), n, c.pingInterval, p.Timeout)
	switch {
	case errors.Is(err, ErrResolve):
		return &model.CheckOutcome{Status: model.StatusDown, Details: err.Error(), ProbeAttempts: failedAttempts(n, "No response")}
	case errors.Is(err, ErrProbeTimeout), errors.Is(err, context.DeadlineExceeded):
		return &model.CheckOutcome{Status: model.StatusDown, Details: "Ping timeout", ProbeAttempts: failedAttempts(n, "Timeout")}
	case err != nil && len(replies) == 0:
		c.log.Warn("ping failed", zap.String("target", target), zap.Error(err))
		return &model.CheckOutcome{Status: model.StatusUnknown, Details: err.Error()}
	}

	rtts := make(map[int]time.Duration, len(replies))
	for _, r := range replies {
		if r.Seq < 0 || r.Seq >= n {
			continue
		}
		if _, dup := rtts[r.Seq]; !dup {
			rtts[r.Seq] = r.RTT
		}
	}

	attempts := make([]model.ProbeAttempt, 0, n)
	var latencies []float64
	for seq := 0; seq < n; seq++ {
		a := model.ProbeAttempt{Sequence: seq + 1}
		rtt, ok := rtts[seq]
		switch {
		case !ok:
			a.Details = "No response"
		case rtt > p.Timeout:
			a.Details = "Timeout"
		default:
			ms := float64(rtt) / float64(time.Millisecond)
			a.Success = true
			a.LatencyMs = &ms
			latencies = append(latencies, ms)
		}
		attempts = append(attempts, a)
	}

	v := Classify(len(latencies), n, latencies, p.OKThresholdMs, p.DegradedThresholdMs, "pings")
	return &model.CheckOutcome{
		Status:         v.Status,
		ResponseTimeMs: v.ResponseTimeMs,
		Details:        v.Details,
		ProbeAttempts:  attempts,
	}
}

func failedAttempts(n int, details string) []model.ProbeAttempt {
	attempts := make([]model.ProbeAttempt, n)
	for i := range attempts {
		attempts[i] = model.ProbeAttempt{Sequence: i + 1, Details: details}
	}
	return attempts
}
