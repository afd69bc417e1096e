// Package tls provides TLS client configuration for the SMTP relay.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
)

// ClientOptions tune certificate verification for the relay connection.
type ClientOptions struct {
	// RootCAs overrides the system pool when set.
	RootCAs *x509.CertPool

	InsecureSkipVerify bool
}

// ClientConfig returns a TLS configuration for connecting to the relay at
// host. It fails if host cannot be used as a TLS server name.
func ClientConfig(host string, opts ClientOptions) (*tls.Config, error) {
	if host == "" {
		return nil, fmt.Errorf("relay host is empty")
	}
	if strings.ContainsAny(host, " \t\r\n/\\@") {
		return nil, fmt.Errorf("invalid relay host %q", host)
	}

	return &tls.Config{
		ServerName:         strings.Trim(host, "[]"),
		RootCAs:            opts.RootCAs,
		InsecureSkipVerify: opts.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}, nil
}
