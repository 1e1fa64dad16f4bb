package exchange

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// newHTTPClient returns a client that dials through the SOCKS5 proxy at
// proxyAddr when it is set.
func newHTTPClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	if proxyAddr == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	dial, err := proxyDialer(proxyAddr)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		DialContext:           dial,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func proxyDialer(proxyAddr string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	dialer, err := proxy.FromURL(&url.URL{Scheme: "socks5h", Host: proxyAddr}, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// newBreaker opens after three requests in a five second window with at
// least 60% failures, and probes again after thirty seconds.
func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}
