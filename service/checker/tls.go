package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JustinTDCT/onlineTracker/model"
)

const defaultTLSPort = "443"

// CertFetcher returns the leaf certificate presented at addr.
type CertFetcher interface {
	LeafCertificate(ctx context.Context, addr, serverName string) (*x509.Certificate, error)
}

// TLSDialer performs a handshake without verifying the chain; only the expiry matters.
type TLSDialer struct{}

func (TLSDialer) LeafCertificate(ctx context.Context, addr, serverName string) (*x509.Certificate, error) {
	d := tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true, ServerName: serverName}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, errors.New("no peer certificate")
	}
	return certs[0], nil
}

// ParseTLSTarget accepts a host, host:port or URL and returns host and port.
func ParseTLSTarget(target string) (host, port string) {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			target = u.Host
		} else {
			target = target[strings.Index(target, "://")+3:]
		}
	}
	if i := strings.Index(target, "/"); i >= 0 {
		target = target[:i]
	}
	if h, p, err := net.SplitHostPort(target); err == nil {
		if _, err := strconv.Atoi(p); err == nil {
			return h, p
		}
		return h, defaultTLSPort
	}
	return strings.Trim(target, "[]"), defaultTLSPort
}

// DaysRemaining floors to whole days, so a certificate expiring in 3h has 0 days left.
func DaysRemaining(notAfter, now time.Time) int {
	return int(math.Floor(notAfter.Sub(now).Hours() / 24))
}

func ClassifyCertificate(days, okDays, warningDays int) Verdict {
	switch {
	case days <= 0:
		return Verdict{Status: model.StatusDown, Details: "Certificate expired"}
	case days < warningDays:
		return Verdict{Status: model.StatusDown, Details: fmt.Sprintf("Certificate expires in %d days", days)}
	case days < okDays:
		return Verdict{Status: model.StatusDegraded, Details: fmt.Sprintf("Certificate expires in %d days", days)}
	}
	return Verdict{Status: model.StatusUp}
}

func (c *Checker) checkTLS(ctx context.Context, target string, p Params) *model.CheckOutcome {
	host, port := ParseTLSTarget(target)
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := c.clock.Now()
	cert, err := c.certs.LeafCertificate(ctx, net.JoinHostPort(host, port), host)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return &model.CheckOutcome{Status: model.StatusDown, Details: "SSL check timeout"}
		}
		return &model.CheckOutcome{Status: model.StatusDown, Details: fmt.Sprintf("Could not get certificate: %v", err)}
	}
	elapsed := msSince(c.clock, start)

	days := DaysRemaining(cert.NotAfter, c.clock.Now())
	v := ClassifyCertificate(days, p.TLSOKDays, p.TLSWarningDays)
	return &model.CheckOutcome{
		Status:         v.Status,
		ResponseTimeMs: &elapsed,
		Details:        v.Details,
		TLSExpiryDays:  &days,
	}
}
