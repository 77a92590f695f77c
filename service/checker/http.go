package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

const maxBodyBytes = 10 << 20

const bodyChangedDetails = "Response body changed"

type httpAttempt struct {
	attempt     model.ProbeAttempt
	bodyHash    string
	bodyChanged bool
}

func targetURL(kind model.MonitorKind, target string) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		return target
	}
	if kind == model.MonitorKindHTTPS {
		return "https://" + target
	}
	return "http://" + target
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func describeRequestError(err error) string {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return "Request timeout"
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return fmt.Sprintf("Connection error: %v", oe)
	}
	return err.Error()
}

func (c *Checker) doHTTPAttempt(ctx context.Context, client *http.Client, url string, seq int, p Params) httpAttempt {
	res := httpAttempt{attempt: model.ProbeAttempt{Sequence: seq}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.attempt.Details = err.Error()
		return res
	}
	req.Header.Set("User-Agent", "OnlineTracker/1.0")

	start := c.clock.Now()
	resp, err := client.Do(req)
	if err != nil {
		res.attempt.Details = describeRequestError(err)
		return res
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	if err != nil {
		res.attempt.Details = describeRequestError(err)
		return res
	}
	latency := float64(msSince(c.clock, start))
	res.bodyHash = utils.MD5Hex(body)

	if p.ExpectedContent != "" && !strings.Contains(string(body), p.ExpectedContent) {
		res.attempt.Details = fmt.Sprintf("Expected content not found: '%s'", truncate(p.ExpectedContent, 50))
		return res
	}
	if p.ExpectedStatus != 0 && resp.StatusCode != p.ExpectedStatus {
		res.attempt.Details = fmt.Sprintf("Expected status %d, got %d", p.ExpectedStatus, resp.StatusCode)
		return res
	}
	if p.ExpectedBodyHash != "" && !strings.EqualFold(res.bodyHash, p.ExpectedBodyHash) {
		// reachable, so it still counts towards the success rate
		res.bodyChanged = true
		res.attempt.Success = true
		res.attempt.LatencyMs = &latency
		res.attempt.Details = bodyChangedDetails
		return res
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		res.attempt.Details = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}
	res.attempt.Success = true
	res.attempt.LatencyMs = &latency
	return res
}

func (c *Checker) checkHTTP(ctx context.Context, kind model.MonitorKind, target string, p Params) *model.CheckOutcome {
	url := targetURL(kind, target)
	client := &http.Client{Transport: c.transport, Timeout: p.Timeout}
	n := p.HTTPRequestCount

	var (
		attempts    = make([]model.ProbeAttempt, 0, n)
		latencies   []float64
		lastError   string
		bodyHash    string
		bodyChanged bool
	)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, c.httpGap); err != nil {
				break
			}
		}
		res := c.doHTTPAttempt(ctx, client, url, i+1, p)
		attempts = append(attempts, res.attempt)
		if res.bodyHash != "" {
			bodyHash = res.bodyHash
		}
		if res.attempt.Success {
			latencies = append(latencies, *res.attempt.LatencyMs)
		}
		if res.bodyChanged {
			bodyChanged = true
		}
		if res.attempt.Details != "" {
			lastError = res.attempt.Details
		}
	}

	out := &model.CheckOutcome{BodyHash: bodyHash, ProbeAttempts: attempts}
	if len(latencies) == 0 {
		out.Status = model.StatusDown
		out.Details = lastError
		if out.Details == "" {
			out.Details = fmt.Sprintf("All %d requests failed", n)
		}
		return out
	}

	v := Classify(len(latencies), len(attempts), latencies, p.OKThresholdMs, p.DegradedThresholdMs, "requests")
	out.Status, out.ResponseTimeMs, out.Details = v.Status, v.ResponseTimeMs, v.Details
	if out.Status == model.StatusUp && bodyChanged {
		out.Status = model.StatusDegraded
		out.Details = bodyChangedDetails
	}
	return out
}
