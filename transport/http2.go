package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/net/http2"
)

// BuildTLSConfig returns the TLS settings shared by page fetches and wss
// dials. caPath is optional: when set, its PEM certificates are trusted in
// addition to the system roots.
func BuildTLSConfig(caPath string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caPath == "" {
		return tlsConfig, nil
	}

	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	tlsConfig.RootCAs = pool

	return tlsConfig, nil
}

// BuildHTTP2Client creates the client used to fetch pages. It negotiates
// HTTP/2 over TLS and falls back to HTTP/1.1 for plain http.
func BuildHTTP2Client(tlsConfig *tls.Config) (*http.Client, error) {
	// ConfigureTransport adds "h2" to NextProtos; keep that off the config
	// the websocket dialer shares.
	if tlsConfig != nil {
		tlsConfig = tlsConfig.Clone()
	}
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConfig,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
	}

	return &http.Client{Transport: transport}, nil
}
