package account

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/store"
)

// UserLock is a lock as saved in a user's account.
type UserLock struct {
	ID                    string `json:"id"`
	MAC                   string `json:"MAC"`
	BLE                   string `json:"BLE,omitempty"`
	Name                  string `json:"name,omitempty"`
	Location              string `json:"location,omitempty"`
	IconID                string `json:"icon_id,omitempty"`
	ProximityLockActive   bool   `json:"proximity_lock_active"`
	ProximityUnlockActive bool   `json:"proximity_unlock_active"`
	SavedInvite           string `json:"saved_invite,omitempty"`
}

// Revoker deletes an authorization.
type Revoker interface {
	Revoke(ctx context.Context, mac, phoneID string) error
}

// Service reads and writes user account documents.
type Service struct {
	store   store.Store
	revoker Revoker
	now     func() time.Time
}

// NewService creates an account service. revoker removes the user's
// authorizations when a lock is removed from the account.
func NewService(st store.Store, revoker Revoker) *Service {
	return &Service{store: st, revoker: revoker, now: time.Now}
}

// RegisterPhoneID records phoneID as a principal of userID. Registering an
// id twice is a no-op.
func (s *Service) RegisterPhoneID(ctx context.Context, userID, phoneID string) error {
	path, err := store.UserPhonePath(userID, phoneID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPhoneID, err)
	}
	if err := s.store.Update(ctx, path, store.Document{"registered_at": s.now().Unix()}); err != nil {
		return fmt.Errorf("registering phone id: %w", err)
	}
	return nil
}

// HasPhoneID reports whether phoneID is registered to userID.
func (s *Service) HasPhoneID(ctx context.Context, userID, phoneID string) (bool, error) {
	path, err := store.UserPhonePath(userID, phoneID)
	if err != nil {
		return false, nil //nolint:nilerr // an unaddressable id cannot have been registered
	}
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return false, fmt.Errorf("reading phone id: %w", err)
	}
	return doc != nil, nil
}

// PhoneIDs returns the user's phone ids in sorted order.
func (s *Service) PhoneIDs(ctx context.Context, userID string) ([]string, error) {
	path, err := store.UserPhonesPath(userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing phone ids: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Locks returns the user's saved locks ordered by id.
func (s *Service) Locks(ctx context.Context, userID string) ([]UserLock, error) {
	path, err := store.UserLocksPath(userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing user locks: %w", err)
	}

	locks := make([]UserLock, 0, len(docs))
	for id, doc := range docs {
		var l UserLock
		if err := store.Decode(doc, &l); err != nil {
			return nil, err
		}
		if l.ID == "" {
			l.ID = id
		}
		locks = append(locks, l)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].ID < locks[j].ID })
	return locks, nil
}

// Lock returns one saved lock, or nil.
func (s *Service) Lock(ctx context.Context, userID, lockID string) (*UserLock, error) {
	path, err := store.UserLockPath(userID, lockID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLock, err)
	}
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading user lock: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	var l UserLock
	if err := store.Decode(doc, &l); err != nil {
		return nil, err
	}
	if l.ID == "" {
		l.ID = lockID
	}
	return &l, nil
}

// SaveLock upserts l. A pending invite already saved for the lock is kept
// unless l carries a new one.
func (s *Service) SaveLock(ctx context.Context, userID string, l UserLock) error {
	l.MAC = lock.NormalizeMAC(l.MAC)
	l.BLE = lock.NormalizeMAC(l.BLE)
	if l.ID == "" || l.MAC == "" {
		return fmt.Errorf("%w: id and MAC are required", ErrInvalidLock)
	}

	path, err := store.UserLockPath(userID, l.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLock, err)
	}
	doc, err := store.Encode(l)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, path, doc); err != nil {
		return fmt.Errorf("saving user lock: %w", err)
	}
	return nil
}

// RemoveLock deletes the saved lock and revokes the authorization of every
// phone id the user registered on that lock. Removing an unknown lock is a
// no-op.
func (s *Service) RemoveLock(ctx context.Context, userID, lockID string) error {
	l, err := s.Lock(ctx, userID, lockID)
	if err != nil {
		return err
	}
	if l == nil {
		return nil
	}

	if l.MAC != "" {
		phones, err := s.PhoneIDs(ctx, userID)
		if err != nil {
			return err
		}
		for _, phone := range phones {
			if err := s.revoker.Revoke(ctx, l.MAC, phone); err != nil {
				return fmt.Errorf("revoking %s on %s: %w", phone, l.MAC, err)
			}
		}
	}

	path, err := store.UserLockPath(userID, lockID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLock, err)
	}
	if err := s.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("removing user lock: %w", err)
	}
	return nil
}

// SavedInvite returns the pending invite id for (userID, lockID), or "".
func (s *Service) SavedInvite(ctx context.Context, userID, lockID string) (string, error) {
	l, err := s.Lock(ctx, userID, lockID)
	if err != nil || l == nil {
		return "", err
	}
	return l.SavedInvite, nil
}

// SetSavedInvite stores inviteID in the pending slot, replacing any earlier one.
func (s *Service) SetSavedInvite(ctx context.Context, userID, lockID, inviteID string) error {
	return s.updateSavedInvite(ctx, userID, lockID, inviteID)
}

// ClearSavedInvite empties the pending slot.
func (s *Service) ClearSavedInvite(ctx context.Context, userID, lockID string) error {
	return s.updateSavedInvite(ctx, userID, lockID, nil)
}

func (s *Service) updateSavedInvite(ctx context.Context, userID, lockID string, value any) error {
	path, err := store.UserLockPath(userID, lockID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLock, err)
	}
	if err := s.store.Update(ctx, path, store.Document{"saved_invite": value}); err != nil {
		return fmt.Errorf("updating saved invite: %w", err)
	}
	return nil
}
