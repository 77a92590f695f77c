package checker

import (
	"context"
	"crypto/x509"
	"time"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePinger struct {
	replies []PingReply
	err     error
	panics  bool
	calls   int
}

func (f *fakePinger) Ping(ctx context.Context, host string, count int, interval, timeout time.Duration) ([]PingReply, error) {
	f.calls++
	if f.panics {
		panic("raw socket exploded")
	}
	return f.replies, f.err
}

type fakeCerts struct {
	cert *x509.Certificate
	err  error
	addr string
}

func (f *fakeCerts) LeafCertificate(ctx context.Context, addr, serverName string) (*x509.Certificate, error) {
	f.addr = addr
	return f.cert, f.err
}

func intPtr(v int) *int {
	return &v
}

func testParams() Params {
	return Params{
		Timeout:             2 * time.Second,
		PingCount:           5,
		HTTPRequestCount:    3,
		OKThresholdMs:       80,
		DegradedThresholdMs: 200,
		TLSOKDays:           30,
		TLSWarningDays:      14,
	}
}
