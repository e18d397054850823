package server

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// listen opens the accept socket, wrapped in TLS when both a cert and a
// key are configured. TLS termination is transparent to the rest of the
// server; the application-level crypto runs either way.
func listen(host string, port int, certFile, keyFile string) (net.Listener, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	if certFile == "" || keyFile == "" {
		ln, err := net.Listen("tcp", addr)
		return ln, errors.Wrap(err, "listen")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "load TLS keypair")
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	ln, err := tls.Listen("tcp", addr, cfg)
	return ln, errors.Wrap(err, "listen TLS")
}
