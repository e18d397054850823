package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
)

const dialTimeout = 10 * time.Second

// dial connects to the configured server, over TLS when enabled. A
// custom CA bundle replaces the system roots; TLSInsecure skips
// verification entirely and is for testing only.
func dial(cfg *Config) (net.Conn, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	if !cfg.TLS {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		return conn, errors.Wrap(err, "dial")
	}

	tlsCfg := &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "read CA bundle")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates in CA bundle")
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.TLSInsecure {
		tlsCfg.InsecureSkipVerify = true
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	return conn, errors.Wrap(err, "dial TLS")
}
