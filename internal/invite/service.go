package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/doorlock-core/internal/access"
	"github.com/nerrad567/doorlock-core/internal/auth"
	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/signature"
	"github.com/nerrad567/doorlock-core/internal/store"
)

// Options configures a Service.
type Options struct {
	// EnforceExpiration rejects redemption after an invite's expiration.
	EnforceExpiration bool

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service creates and redeems invites.
type Service struct {
	store    store.Store
	locks    Locks
	grants   Grants
	accounts Accounts
	opts     Options
	logger   Logger
	events   Events
}

// NewService creates an invite service.
func NewService(st store.Store, locks Locks, grants Grants, accounts Accounts, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    st,
		locks:    locks,
		grants:   grants,
		accounts: accounts,
		opts:     opts,
		logger:   noopLogger{},
		events:   noopEvents{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetEvents sets the notification sink.
func (s *Service) SetEvents(events Events) {
	s.events = events
}

// newInviteID returns 32 hex characters.
func newInviteID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create verifies a lock-signed invite request, stores the invite and
// returns its code.
func (s *Service) Create(ctx context.Context, env signature.Envelope) (string, error) {
	verified, err := s.locks.Authenticate(ctx, env)
	if err != nil {
		return "", err
	}

	var req request
	if err := verified.Decode(&req); err != nil {
		return "", err
	}
	if req.Type == nil {
		return "", fmt.Errorf("%w: type is required", access.ErrValidation)
	}
	inv := req.Invite
	inv.Type = *req.Type
	inv.SmartLockMAC = verified.MAC
	if req.WeekdaysStr != "" {
		days, err := expandWeekdays(req.WeekdaysStr)
		if err != nil {
			return "", fmt.Errorf("%w: %w", access.ErrValidation, err)
		}
		inv.Weekdays = days
	}
	if err := inv.Schedule.Validate(inv.Type); err != nil {
		return "", err
	}

	ble, err := s.locks.GetBLE(ctx, inv.SmartLockMAC)
	if err != nil {
		return "", err
	}

	doc, err := store.Encode(inv)
	if err != nil {
		return "", err
	}
	id := newInviteID()
	path, err := store.InvitePath(id)
	if err != nil {
		return "", err
	}
	if err := s.store.Update(ctx, path, doc); err != nil {
		return "", fmt.Errorf("storing invite: %w", err)
	}

	s.logger.Info("invite created", "mac", inv.SmartLockMAC, "type", inv.Type.String())
	s.events.InviteCreated(inv.SmartLockMAC, inv.Type)
	return EncodeCode(id, inv.SmartLockMAC, ble), nil
}

// Get returns the stored invite, or nil.
func (s *Service) Get(ctx context.Context, inviteID string) (*Invite, error) {
	path, err := store.InvitePath(inviteID)
	if err != nil {
		return nil, nil //nolint:nilerr // an unaddressable id names no invite
	}
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading invite: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	var inv Invite
	if err := store.Decode(doc, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// check applies the checks shared by Redeem and SaveForLater.
func (s *Service) check(ctx context.Context, who auth.Identity, inviteID string) (*Invite, error) {
	inv, err := s.Get(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvalidInvite
	}
	if s.opts.EnforceExpiration && inv.Expiration != nil && s.opts.Now().Unix() > *inv.Expiration {
		return nil, ErrInviteExpired
	}
	if inv.EmailLocked != "" && !strings.EqualFold(inv.EmailLocked, who.Email) {
		return nil, ErrForbidden
	}
	return inv, nil
}

// Redeem consumes the invite and grants phoneID access to its lock.
//
// Checks run in this order: the invite exists (ErrInvalidInvite), has not
// expired (ErrInviteExpired), is not locked to another email (ErrForbidden),
// and phoneID belongs to who (ErrInvalidPrincipal). A failed check leaves the
// invite untouched.
func (s *Service) Redeem(ctx context.Context, who auth.Identity, inviteID, phoneID, masterKey string) (*access.Authorization, error) {
	if _, err := s.check(ctx, who, inviteID); err != nil {
		return nil, err
	}

	ok, err := s.accounts.HasPhoneID(ctx, who.UserID, phoneID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPrincipal
	}

	path, err := store.InvitePath(inviteID)
	if err != nil {
		return nil, ErrInvalidInvite
	}
	taken, err := s.store.Take(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidInvite
	}
	if err != nil {
		return nil, fmt.Errorf("consuming invite: %w", err)
	}

	var inv Invite
	if err := store.Decode(taken, &inv); err != nil {
		return nil, err
	}
	a := access.NewAuthorization(inv.SmartLockMAC, phoneID, inv.Type, inv.Schedule, masterKey)
	if err := s.grants.Grant(ctx, a); err != nil {
		if rerr := s.store.Update(ctx, path, taken); rerr != nil {
			s.logger.Error("restoring invite after failed grant", "mac", inv.SmartLockMAC, "error", rerr)
		}
		return nil, err
	}

	s.logger.Info("invite redeemed", "mac", a.SmartLockMAC, "phone_id", phoneID, "type", a.Type.String())
	s.events.AuthorizationGranted(a.SmartLockMAC, phoneID, a.Type)
	return a, nil
}

// SaveForLater stores inviteID as who's pending invite for lockID,
// replacing any earlier one.
func (s *Service) SaveForLater(ctx context.Context, who auth.Identity, lockID, inviteID string) error {
	if _, err := s.check(ctx, who, inviteID); err != nil {
		return err
	}
	return s.accounts.SetSavedInvite(ctx, who.UserID, lockID, inviteID)
}

// HasSaved reports whether who has a pending invite for lockID.
func (s *Service) HasSaved(ctx context.Context, who auth.Identity, lockID string) (bool, error) {
	id, err := s.accounts.SavedInvite(ctx, who.UserID, lockID)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

// RedeemSaved redeems who's pending invite for lockID. The pending slot is
// cleared only when redemption succeeds, so a failed attempt can be retried.
func (s *Service) RedeemSaved(ctx context.Context, who auth.Identity, lockID, phoneID, masterKey string) (*access.Authorization, error) {
	inviteID, err := s.accounts.SavedInvite(ctx, who.UserID, lockID)
	if err != nil {
		return nil, err
	}
	if inviteID == "" {
		return nil, ErrNoPendingInvite
	}

	a, err := s.Redeem(ctx, who, inviteID, phoneID, masterKey)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.ClearSavedInvite(ctx, who.UserID, lockID); err != nil {
		s.logger.Warn("clearing saved invite", "user_id", who.UserID, "lock_id", lockID, "error", err)
	}
	return a, nil
}

var _ Locks = (*lock.Registry)(nil)
