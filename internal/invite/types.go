package invite

import (
	"context"

	"github.com/nerrad567/doorlock-core/internal/access"
	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/signature"
)

// Invite is the stored record at invites/{id}.
type Invite struct {
	SmartLockMAC string            `json:"smart_lock_MAC"`
	Type         access.AccessType `json:"type"`
	Expiration   *int64            `json:"expiration,omitempty"`
	EmailLocked  string            `json:"email_locked,omitempty"`
	access.Schedule
}

// request is the signed payload accepted by Create. Type shadows the
// embedded Invite.Type so an absent or null type can be told apart from Admin.
type request struct {
	Invite
	Type        *access.AccessType `json:"type"`
	WeekdaysStr string             `json:"weekdays_str,omitempty"`
}

// Locks authenticates signed requests and resolves BLE addresses.
type Locks interface {
	Authenticate(ctx context.Context, env signature.Envelope) (*lock.Verified, error)
	GetBLE(ctx context.Context, mac string) (string, error)
}

// Grants persists authorizations.
type Grants interface {
	Grant(ctx context.Context, a *access.Authorization) error
}

// Accounts exposes the parts of a user account invites depend on.
type Accounts interface {
	HasPhoneID(ctx context.Context, userID, phoneID string) (bool, error)
	SavedInvite(ctx context.Context, userID, lockID string) (string, error)
	SetSavedInvite(ctx context.Context, userID, lockID, inviteID string) error
	ClearSavedInvite(ctx context.Context, userID, lockID string) error
}

// Logger defines the logging interface used by the Service.
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

// Events receives invite notifications. Invite ids are never passed on.
type Events interface {
	InviteCreated(mac string, t access.AccessType)
	AuthorizationGranted(mac, phoneID string, t access.AccessType)
}

type noopEvents struct{}

func (noopEvents) InviteCreated(string, access.AccessType)                {}
func (noopEvents) AuthorizationGranted(string, string, access.AccessType) {}
