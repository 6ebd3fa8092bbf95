package lock

import "strings"

// Lock is the stored record at doors/{MAC}.
type Lock struct {
	MAC         string `json:"MAC"`
	BLE         string `json:"BLE"`
	Address     string `json:"IP,omitempty"`
	Certificate string `json:"certificate"`
}

// Status summarises a lock's registration.
type Status int

// Status values as reported to clients.
const (
	StatusUnregistered Status = 0
	StatusRegistered   Status = 1
	StatusAuthorized   Status = 2 // registered and at least one authorization exists
)

// NormalizeMAC upper-cases and trims a MAC or BLE address.
func NormalizeMAC(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Logger defines the logging interface used by the Registry.
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

// Events receives registry notifications. Implementations must not block.
type Events interface {
	LockRegistered(mac string)
	LockCheckedIn(mac, address string)
}

type noopEvents struct{}

func (noopEvents) LockRegistered(string)        {}
func (noopEvents) LockCheckedIn(string, string) {}
