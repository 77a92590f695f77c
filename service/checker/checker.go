package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

// ErrProbeTimeout marks an attempt or a whole check that ran out of time.
var ErrProbeTimeout = errors.New("probe timeout")

// Checker executes probes. It keeps no state between checks.
type Checker struct {
	log          *zap.Logger
	clock        utils.Clock
	pinger       Pinger
	pingInterval time.Duration
	transport    http.RoundTripper
	httpGap      time.Duration
	certs        CertFetcher
}

type Option func(*Checker)

func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) { c.log = l }
}

func WithClock(clock utils.Clock) Option {
	return func(c *Checker) { c.clock = clock }
}

func WithPinger(p Pinger) Option {
	return func(c *Checker) { c.pinger = p }
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Checker) { c.pingInterval = d }
}

// WithTransport replaces the round tripper used by http and https probes.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Checker) { c.transport = rt }
}

func WithHTTPGap(d time.Duration) Option {
	return func(c *Checker) { c.httpGap = d }
}

func WithCertFetcher(f CertFetcher) Option {
	return func(c *Checker) { c.certs = f }
}

func New(opts ...Option) *Checker {
	c := &Checker{
		log:          zap.NewNop(),
		clock:        utils.SystemClock,
		pinger:       ICMPPinger{Privileged: true},
		pingInterval: time.Second,
		transport:    utils.NewTransport(false),
		httpGap:      100 * time.Millisecond,
		certs:        TLSDialer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "checker"))
	return c
}

// Check runs one check. It never fails: unexpected errors and panics yield StatusUnknown.
func (c *Checker) Check(ctx context.Context, kind model.MonitorKind, target string, p Params) (out *model.CheckOutcome) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("probe panicked", zap.String("kind", string(kind)), zap.String("target", target), zap.Any("panic", r))
			out = &model.CheckOutcome{Status: model.StatusUnknown, Details: fmt.Sprintf("%v", r)}
		}
	}()

	switch kind {
	case model.MonitorKindPing:
		out = c.checkPing(ctx, target, p)
	case model.MonitorKindHTTP, model.MonitorKindHTTPS:
		out = c.checkHTTP(ctx, kind, target, p)
	case model.MonitorKindTLS:
		out = c.checkTLS(ctx, target, p)
	default:
		out = &model.CheckOutcome{Status: model.StatusUnknown, Details: fmt.Sprintf("Unknown monitor type: %s", kind)}
	}
	if out.Status == model.StatusUnknown {
		c.log.Warn("check unclassified", zap.String("kind", string(kind)), zap.String("target", target), zap.String("details", out.Details))
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func msSince(clock utils.Clock, start time.Time) int {
	return int(clock.Now().Sub(start) / time.Millisecond)
}
