package proctor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
)

// Grant is the outcome of a capture request performed by the browser.
// Bytes carries the size of the recording the browser holds when it stops.
type Grant struct {
	Granted bool
	Reason  string
	Bytes   int
}

type grantCtxKey struct{}

// WithGrant attaches the browser's capture outcome to ctx.
func WithGrant(ctx context.Context, g Grant) context.Context {
	return context.WithValue(ctx, grantCtxKey{}, g)
}

func grantFromContext(ctx context.Context) (Grant, bool) {
	g, ok := ctx.Value(grantCtxKey{}).(Grant)
	return g, ok
}

// Relay implements Capabilities for captures performed in the browser.
// Acquisition succeeds when the request context carries a positive Grant.
// Media never leaves the browser; the server only mirrors lifecycle state.
type Relay struct{}

func (Relay) acquire(ctx context.Context) (Stream, error) {
	g, ok := grantFromContext(ctx)
	if !ok {
		return nil, ErrUnsupported
	}
	if !g.Granted {
		if g.Reason == "" {
			return nil, ErrDenied
		}
		return nil, fmt.Errorf("%w: %s", ErrDenied, g.Reason)
	}
	return relayStream{}, nil
}

// AcquireVideoStream implements Capabilities.
func (r Relay) AcquireVideoStream(ctx context.Context) (Stream, error) {
	return r.acquire(ctx)
}

// AcquireDisplayStream implements Capabilities.
func (r Relay) AcquireDisplayStream(ctx context.Context) (Stream, error) {
	return r.acquire(ctx)
}

// NewRecorder implements Capabilities.
func (Relay) NewRecorder(_ Stream) (Recorder, error) {
	return &relayRecorder{}, nil
}

// relayStream stands for tracks owned by the browser.
type relayStream struct{}

// Stop is a no-op; the browser stops its own tracks.
func (relayStream) Stop() {}

type relayRecorder struct {
	mu     sync.Mutex
	active bool
}

func (m *relayRecorder) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	return nil
}

// Stop takes the retained size from the grant the browser sent with its stop request.
func (m *relayRecorder) Stop(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	g, _ := grantFromContext(ctx)
	if g.Bytes < 0 {
		return 0, nil
	}
	return g.Bytes, nil
}

func (m *relayRecorder) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// IsSecureOrigin reports whether browsers will expose capture APIs to this request:
// https, or a loopback host.
func IsSecureOrigin(r *http.Request) bool {
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
