package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/doorlock-core/internal/access"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/doorlock-core/internal/invite"
	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/relay"
)

// Ensure Emitter implements the notification interfaces it is wired to.
var (
	_ lock.Events   = (*Emitter)(nil)
	_ invite.Events = (*Emitter)(nil)
	_ relay.Events  = (*Emitter)(nil)
)

// queueSize bounds pending notifications.
const queueSize = 256

// Event is the JSON body published on doorlock/lock/{MAC}/{event}.
type Event struct {
	Event     string `json:"event"`
	MAC       string `json:"mac"`
	Address   string `json:"address,omitempty"`
	Type      string `json:"type,omitempty"`
	PhoneID   string `json:"phone_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Publisher sends a JSON message. *mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Recorder counts lock events. *influxdb.Client satisfies it.
type Recorder interface {
	WriteLockEvent(mac, event string)
}

// Logger defines the logging interface used by this package.
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

// Emitter publishes lock events asynchronously.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Notifications after Close are dropped.
type Emitter struct {
	pub    Publisher
	rec    Recorder
	logger Logger
	now    func() time.Time

	queue   chan Event
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewEmitter starts an emitter. Either sink may be nil.
func NewEmitter(pub Publisher, rec Recorder, logger Logger) *Emitter {
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Emitter{
		pub:    pub,
		rec:    rec,
		logger: logger,
		now:    time.Now,
		queue:  make(chan Event, queueSize),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for ev := range e.queue {
		if e.rec != nil {
			e.rec.WriteLockEvent(ev.MAC, ev.Event)
		}
		if e.pub == nil {
			continue
		}
		if err := e.pub.PublishJSON(mqtt.Topics{}.LockEvent(ev.MAC, ev.Event), ev); err != nil {
			e.logger.Debug("lock event not published", "event", ev.Event, "mac", ev.MAC, "error", err)
		}
	}
}

func (e *Emitter) emit(ev Event) {
	ev.Timestamp = e.now().UTC().Format(time.RFC3339)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- ev:
	default:
		e.dropped.Add(1)
		e.logger.Warn("event queue full, dropping event", "event", ev.Event, "mac", ev.MAC)
	}
}

// Close drains queued events and stops the worker.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
}

// Dropped returns the number of events discarded because the queue was full.
func (e *Emitter) Dropped() uint64 {
	return e.dropped.Load()
}

// LockRegistered implements lock.Events.
func (e *Emitter) LockRegistered(mac string) {
	e.emit(Event{Event: mqtt.EventRegistered, MAC: mac})
}

// LockCheckedIn implements lock.Events.
func (e *Emitter) LockCheckedIn(mac, address string) {
	e.emit(Event{Event: mqtt.EventCheckIn, MAC: mac, Address: address})
}

// InviteCreated implements invite.Events.
func (e *Emitter) InviteCreated(mac string, t access.AccessType) {
	e.emit(Event{Event: mqtt.EventInvite, MAC: mac, Type: t.String()})
}

// AuthorizationGranted implements invite.Events.
func (e *Emitter) AuthorizationGranted(mac, phoneID string, t access.AccessType) {
	e.emit(Event{Event: mqtt.EventAuthorization, MAC: mac, PhoneID: phoneID, Type: t.String()})
}

// ConnectionEvicted implements relay.Events.
func (e *Emitter) ConnectionEvicted(mac, reason string) {
	e.emit(Event{Event: mqtt.EventRelay, MAC: mac, Reason: reason})
}
