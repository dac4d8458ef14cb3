// Package util provides logging, the pooled HTTP client and small shared helpers
package util

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// httpClientConfig holds configuration for creating pooled HTTP clients
type httpClientConfig struct {
	timeout             time.Duration
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
	idleConnTimeout     time.Duration
	tlsHandshakeTimeout time.Duration
	expectContinue      time.Duration
	keepAlive           time.Duration
	dialTimeout         time.Duration
}

// defaultConfig returns the pool settings used for provider traffic
func defaultConfig() httpClientConfig {
	return httpClientConfig{
		timeout:             30 * time.Second,
		maxIdleConns:        150,
		maxIdleConnsPerHost: 25,
		maxConnsPerHost:     40,
		idleConnTimeout:     90 * time.Second,
		tlsHandshakeTimeout: 5 * time.Second,
		expectContinue:      500 * time.Millisecond,
		keepAlive:           30 * time.Second,
		dialTimeout:         5 * time.Second,
	}
}

// createTransport creates an HTTP transport with the given config
func createTransport(cfg httpClientConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.dialTimeout,
			KeepAlive: cfg.keepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.maxIdleConns,
		MaxIdleConnsPerHost:   cfg.maxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.maxConnsPerHost,
		IdleConnTimeout:       cfg.idleConnTimeout,
		TLSHandshakeTimeout:   cfg.tlsHandshakeTimeout,
		ExpectContinueTimeout: cfg.expectContinue,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// NewHTTPClient returns a pooled client with the given overall timeout.
// A zero timeout keeps the default of 30 seconds.
func NewHTTPClient(timeout time.Duration) *http.Client {
	cfg := defaultConfig()
	if timeout > 0 {
		cfg.timeout = timeout
	}
	return &http.Client{
		Transport: createTransport(cfg),
		Timeout:   cfg.timeout,
	}
}

// GetSharedClient returns the process-wide pooled HTTP client.
func GetSharedClient() *http.Client {
	sharedClientOnce.Do(func() {
		sharedClient = NewHTTPClient(0)
	})
	return sharedClient
}
