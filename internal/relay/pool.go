package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/doorlock-core/internal/lock"
)

type key struct {
	userID string
	mac    string
}

// entry is one pooled connection. conn is nil until the first command dials.
type entry struct {
	mu   sync.Mutex
	conn net.Conn
}

// Pool multiplexes commands onto per-(user, lock) connections.
type Pool struct {
	cfg      Config
	resolver Resolver

	mu     sync.Mutex
	conns  map[key]*entry
	closed bool

	logger  Logger
	metrics Metrics
	events  Events
}

// NewPool creates an empty pool.
func NewPool(resolver Resolver, cfg Config) *Pool {
	return &Pool{
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		conns:    make(map[key]*entry),
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		events:   noopEvents{},
	}
}

// SetLogger sets the logger for the pool.
func (p *Pool) SetLogger(logger Logger) {
	p.logger = logger
}

// SetMetrics sets the metrics sink.
func (p *Pool) SetMetrics(metrics Metrics) {
	p.metrics = metrics
}

// SetEvents sets the eviction notification sink.
func (p *Pool) SetEvents(events Events) {
	p.events = events
}

// Send writes payload to the lock and returns its response. With closeAfter
// the connection is closed once the response has been read.
//
// Errors:
//   - ErrLockUnregistered: no address on file; no connection is attempted
//   - ErrLockUnreachable: the dial failed
//   - ErrRelay: write or read failed, timed out or returned nothing
//   - ErrPoolClosed: CloseAll has been called
func (p *Pool) Send(ctx context.Context, userID, mac string, payload []byte, closeAfter bool) ([]byte, error) {
	k := key{userID: userID, mac: lock.NormalizeMAC(mac)}
	start := time.Now()

	e, err := p.acquire(k)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if e.conn == nil {
		conn, err := p.dial(ctx, k.mac)
		if err != nil {
			p.remove(k, e)
			if errors.Is(err, ErrLockUnreachable) {
				p.metrics.RecordRelay(k.mac, OutcomeUnreachable, time.Since(start), 0)
			}
			return nil, err
		}
		e.conn = conn
		p.logger.Debug("lock connection opened", "mac", k.mac, "user_id", userID)
	}

	resp, err := p.roundTrip(ctx, e.conn, payload)
	if err != nil {
		p.evict(k, e, err.Error())
		p.metrics.RecordRelay(k.mac, OutcomeRelayFailure, time.Since(start), 0)
		return nil, fmt.Errorf("%w: %s: %w", ErrRelay, k.mac, err)
	}

	p.metrics.RecordRelay(k.mac, OutcomeOK, time.Since(start), len(resp))
	if closeAfter {
		p.closeEntry(k, e)
	}
	return resp, nil
}

// acquire returns the locked entry for k, inserting an empty one if needed.
func (p *Pool) acquire(k key) (*entry, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		e, ok := p.conns[k]
		if !ok {
			e = &entry{}
			p.conns[k] = e
		}
		p.mu.Unlock()

		e.mu.Lock()
		// The entry may have been evicted while we waited for it.
		p.mu.Lock()
		current := p.conns[k] == e
		p.mu.Unlock()
		if current {
			return e, nil
		}
		e.mu.Unlock()
	}
}

// dial resolves the lock's address and connects.
func (p *Pool) dial(ctx context.Context, mac string) (net.Conn, error) {
	addr, err := p.resolver.GetAddress(ctx, mac)
	if err != nil {
		return nil, fmt.Errorf("resolving lock address: %w", err)
	}
	if addr == "" {
		return nil, fmt.Errorf("%w: %s", ErrLockUnregistered, mac)
	}
	addr = withPort(addr, p.cfg.LockPort)

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	conn, err := p.cfg.Dial(dialCtx, "tcp", addr)
	if err != nil {
		p.logger.Warn("lock unreachable", "mac", mac, "address", addr, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrLockUnreachable, mac, err)
	}
	return conn, nil
}

// roundTrip writes payload and performs a single bounded read.
func (p *Pool) roundTrip(ctx context.Context, conn net.Conn, payload []byte) ([]byte, error) {
	deadline := time.Now().Add(p.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	buf := make([]byte, p.cfg.ReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if n == 0 {
		return nil, errors.New("read: empty response")
	}
	return buf[:n], nil
}

// remove drops e from the map if it is still the entry for k.
func (p *Pool) remove(k key, e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[k] == e {
		delete(p.conns, k)
	}
}

// evict closes a failed connection. Caller holds e.mu.
func (p *Pool) evict(k key, e *entry, reason string) {
	p.logger.Warn("evicting lock connection", "mac", k.mac, "user_id", k.userID, "reason", reason)
	p.closeEntry(k, e)
	p.events.ConnectionEvicted(k.mac, reason)
}

// closeEntry closes e's connection and removes it. Caller holds e.mu.
func (p *Pool) closeEntry(k key, e *entry) {
	p.remove(k, e)
	if e.conn != nil {
		e.conn.Close() //nolint:errcheck // connection is discarded either way
		e.conn = nil
	}
}

// Close ends the session for (userID, mac). It waits for an in-flight
// command on that connection to finish. Closing an absent session is a no-op.
func (p *Pool) Close(userID, mac string) error {
	k := key{userID: userID, mac: lock.NormalizeMAC(mac)}

	p.mu.Lock()
	e, ok := p.conns[k]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	p.closeEntry(k, e)
	return nil
}

// CloseAll closes every connection and rejects further commands.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	p.closed = true
	entries := p.conns
	p.conns = make(map[key]*entry)
	p.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if e.conn != nil {
			e.conn.Close() //nolint:errcheck // shutting down
			e.conn = nil
		}
		e.mu.Unlock()
	}
	p.logger.Info("relay pool closed", "connections", len(entries))
}

// Len returns the number of pooled sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// withPort appends the default port when addr has none.
func withPort(addr string, port int) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

var _ Resolver = (*lock.Registry)(nil)
