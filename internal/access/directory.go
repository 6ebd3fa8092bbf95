package access

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/signature"
	"github.com/nerrad567/doorlock-core/internal/store"
)

// Authenticator verifies a lock-signed envelope.
type Authenticator interface {
	Authenticate(ctx context.Context, env signature.Envelope) (*lock.Verified, error)
}

// Directory stores authorizations and answers lock lookups.
//
// All public methods are thread-safe.
type Directory struct {
	store store.Store
	auth  Authenticator
}

// NewDirectory creates a directory over st, authenticating lock queries
// with auth.
func NewDirectory(st store.Store, auth Authenticator) *Directory {
	return &Directory{store: st, auth: auth}
}

// Lookup answers a lock's signed query {"smart_lock_MAC", "phone_id"} with
// the stored authorization, or nil if the phone holds none.
//
// Authentication errors are those of lock.Registry.Authenticate.
func (d *Directory) Lookup(ctx context.Context, env signature.Envelope) (*Authorization, error) {
	verified, err := d.auth.Authenticate(ctx, env)
	if err != nil {
		return nil, err
	}

	var query struct {
		PhoneID string `json:"phone_id"`
	}
	if err := verified.Decode(&query); err != nil {
		return nil, err
	}
	if query.PhoneID == "" {
		return nil, fmt.Errorf("%w: phone_id is required", ErrValidation)
	}

	return d.Get(ctx, verified.MAC, query.PhoneID)
}

// Get returns the authorization for (mac, phoneID), or nil.
func (d *Directory) Get(ctx context.Context, mac, phoneID string) (*Authorization, error) {
	path, err := store.AuthorizationPath(lock.NormalizeMAC(mac), phoneID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	doc, err := d.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading authorization: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	var a Authorization
	if err := store.Decode(doc, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Grant writes a, replacing any earlier grant for the same lock and phone.
func (d *Directory) Grant(ctx context.Context, a *Authorization) error {
	if err := a.Schedule.Validate(a.Type); err != nil {
		return err
	}

	path, err := store.AuthorizationPath(a.SmartLockMAC, a.PhoneID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	doc, err := store.Encode(a)
	if err != nil {
		return err
	}
	// Clear schedule fields a previous grant of another type may have left.
	for _, name := range fieldNames {
		if _, ok := doc[name]; !ok {
			doc[name] = nil
		}
	}

	if err := d.store.Update(ctx, path, doc); err != nil {
		return fmt.Errorf("writing authorization: %w", err)
	}
	return nil
}

// Revoke deletes the authorization for (mac, phoneID). Revoking a missing
// grant is not an error.
func (d *Directory) Revoke(ctx context.Context, mac, phoneID string) error {
	path, err := store.AuthorizationPath(lock.NormalizeMAC(mac), phoneID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := d.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("revoking authorization: %w", err)
	}
	return nil
}

// ListForLock returns every authorization on mac, ordered by phone id.
func (d *Directory) ListForLock(ctx context.Context, mac string) ([]*Authorization, error) {
	path, err := store.AuthorizationsPath(lock.NormalizeMAC(mac))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	docs, err := d.store.List(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing authorizations: %w", err)
	}

	out := make([]*Authorization, 0, len(docs))
	for _, doc := range docs {
		var a Authorization
		if err := store.Decode(doc, &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhoneID < out[j].PhoneID })
	return out, nil
}
