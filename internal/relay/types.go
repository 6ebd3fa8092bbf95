package relay

import (
	"context"
	"net"
	"time"
)

// Defaults applied by NewPool to zero Config values.
const (
	DefaultLockPort       = 3333
	DefaultDialTimeout    = 5 * time.Second
	DefaultReadTimeout    = 3 * time.Second
	DefaultReadBufferSize = 1024
)

// Outcomes reported to Metrics.
const (
	OutcomeOK           = "ok"
	OutcomeUnreachable  = "unreachable"
	OutcomeRelayFailure = "relay_error"
)

// DialFunc opens a connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config controls how the pool reaches locks.
type Config struct {
	// LockPort is used when a stored address has no port.
	LockPort int

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// ReadTimeout bounds the wait for a response.
	ReadTimeout time.Duration

	// ReadBufferSize is the largest response returned by one command.
	ReadBufferSize int

	// Dial overrides the dialer, mainly for tests.
	Dial DialFunc
}

func (c Config) withDefaults() Config {
	if c.LockPort == 0 {
		c.LockPort = DefaultLockPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Dial == nil {
		var d net.Dialer
		c.Dial = d.DialContext
	}
	return c
}

// Resolver looks up the network address of a lock. An empty address means
// the lock is not registered.
type Resolver interface {
	GetAddress(ctx context.Context, mac string) (string, error)
}

// Logger defines the logging interface used by the Pool.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics records the outcome of each relayed command.
type Metrics interface {
	RecordRelay(mac, outcome string, latency time.Duration, responseBytes int)
}

type noopMetrics struct{}

func (noopMetrics) RecordRelay(string, string, time.Duration, int) {}

// Events is told when a pooled connection is dropped after a failure.
type Events interface {
	ConnectionEvicted(mac, reason string)
}

type noopEvents struct{}

func (noopEvents) ConnectionEvicted(string, string) {}
