package checker

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JustinTDCT/onlineTracker/model"
)

func certExpiringIn(days int) *x509.Certificate {
	// an hour of slack keeps the floor on the intended day
	return &x509.Certificate{NotAfter: testNow.Add(time.Duration(days)*24*time.Hour + time.Hour)}
}

func TestTLSBanding(t *testing.T) {
	cases := []struct {
		days    int
		status  model.Status
		details string
	}{
		{days: 45, status: model.StatusUp},
		{days: 30, status: model.StatusUp},
		{days: 29, status: model.StatusDegraded, details: "Certificate expires in 29 days"},
		{days: 20, status: model.StatusDegraded, details: "Certificate expires in 20 days"},
		{days: 14, status: model.StatusDegraded, details: "Certificate expires in 14 days"},
		{days: 5, status: model.StatusDown, details: "Certificate expires in 5 days"},
		{days: 0, status: model.StatusDown, details: "Certificate expired"},
		{days: -3, status: model.StatusDown, details: "Certificate expired"},
	}

	for _, c := range cases {
		certs := &fakeCerts{cert: certExpiringIn(c.days)}
		ck := New(WithCertFetcher(certs), WithClock(fixedClock{now: testNow}))
		out := ck.Check(context.Background(), model.MonitorKindTLS, "https://example.com/login", testParams())

		assert.Equal(t, c.status, out.Status, "days=%d", c.days)
		assert.Equal(t, c.details, out.Details, "days=%d", c.days)
		if assert.NotNil(t, out.TLSExpiryDays) {
			assert.Equal(t, c.days, *out.TLSExpiryDays)
		}
		assert.Equal(t, "example.com:443", certs.addr)
	}
}

func TestTLSFailures(t *testing.T) {
	ck := New(WithCertFetcher(&fakeCerts{err: errors.New("connection refused")}))
	out := ck.Check(context.Background(), model.MonitorKindTLS, "example.com:8443", testParams())
	assert.Equal(t, model.StatusDown, out.Status)
	assert.Equal(t, "Could not get certificate: connection refused", out.Details)
	assert.Nil(t, out.TLSExpiryDays)

	ck = New(WithCertFetcher(&fakeCerts{err: context.DeadlineExceeded}))
	out = ck.Check(context.Background(), model.MonitorKindTLS, "example.com", testParams())
	assert.Equal(t, model.StatusDown, out.Status)
	assert.Equal(t, "SSL check timeout", out.Details)
}

func TestTLSAgainstServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	out := New().Check(context.Background(), model.MonitorKindTLS, srv.URL, testParams())
	assert.Equal(t, model.StatusUp, out.Status)
	if assert.NotNil(t, out.TLSExpiryDays) {
		assert.Greater(t, *out.TLSExpiryDays, 30)
	}
}

func TestDaysRemaining(t *testing.T) {
	assert.Equal(t, 0, DaysRemaining(testNow.Add(3*time.Hour), testNow))
	assert.Equal(t, -1, DaysRemaining(testNow.Add(-3*time.Hour), testNow))
	assert.Equal(t, 2, DaysRemaining(testNow.Add(71*time.Hour), testNow))
}

func TestParseTLSTarget(t *testing.T) {
	cases := []struct {
		target, host, port string
	}{
		{"example.com", "example.com", "443"},
		{"example.com:8443", "example.com", "8443"},
		{"https://example.com/path?q=1", "example.com", "443"},
		{"https://example.com:9443/path", "example.com", "9443"},
		{"example.com/path", "example.com", "443"},
		{"[2001:db8::1]:465", "2001:db8::1", "465"},
		{"example.com:abc", "example.com", "443"},
	}
	for _, c := range cases {
		host, port := ParseTLSTarget(c.target)
		assert.Equal(t, c.host, host, c.target)
		assert.Equal(t, c.port, port, c.target)
	}
}
