package lock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/doorlock-core/internal/signature"
	"github.com/nerrad567/doorlock-core/internal/store"
)

// Registry reads and writes lock records in the document store.
//
// It keeps no cache: certificates are read at verification time so that a
// re-registration with a new certificate takes effect on the next request.
//
// All public methods are thread-safe.
type Registry struct {
	store  store.Store
	logger Logger
	events Events
}

// NewRegistry creates a registry over st.
func NewRegistry(st store.Store) *Registry {
	return &Registry{
		store:  st,
		logger: noopLogger{},
		events: noopEvents{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetEvents sets the notification sink for registrations and check-ins.
func (r *Registry) SetEvents(events Events) {
	r.events = events
}

// Register upserts the lock record, normalising mac and ble to upper case.
// address is the network address the request came from.
//
// The certificate is stored as given. One that does not parse is logged but
// accepted; requests signed against it later fail with signature.ErrCertificate.
func (r *Registry) Register(ctx context.Context, mac, ble, certificate, address string) (*Lock, error) {
	l := &Lock{
		MAC:         NormalizeMAC(mac),
		BLE:         NormalizeMAC(ble),
		Address:     address,
		Certificate: certificate,
	}
	if l.MAC == "" || l.BLE == "" || l.Certificate == "" {
		return nil, fmt.Errorf("%w: MAC, BLE and certificate are required", ErrInvalidLock)
	}

	if _, err := signature.PublicKeyFromCertificate(certificate); err != nil {
		r.logger.Warn("lock registered with unusable certificate", "mac", l.MAC, "error", err)
	}

	path, err := store.DoorPath(l.MAC)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLock, err)
	}
	doc, err := store.Encode(l)
	if err != nil {
		return nil, err
	}
	if err := r.store.Update(ctx, path, doc); err != nil {
		return nil, fmt.Errorf("registering lock %s: %w", l.MAC, err)
	}

	r.logger.Info("lock registered", "mac", l.MAC, "address", address)
	r.events.LockRegistered(l.MAC)
	return l, nil
}

// CheckIn refreshes only the address of a registered lock.
// Returns ErrLockNotFound if the lock never registered.
func (r *Registry) CheckIn(ctx context.Context, mac, address string) error {
	mac = NormalizeMAC(mac)
	existing, err := r.Get(ctx, mac)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrLockNotFound, mac)
	}

	path, err := store.DoorPath(mac)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLock, err)
	}
	if err := r.store.Update(ctx, path, store.Document{"IP": address}); err != nil {
		return fmt.Errorf("checking in lock %s: %w", mac, err)
	}

	r.logger.Debug("lock checked in", "mac", mac, "address", address)
	r.events.LockCheckedIn(mac, address)
	return nil
}

// Get returns the lock record, or nil if the lock is not registered.
func (r *Registry) Get(ctx context.Context, mac string) (*Lock, error) {
	path, err := store.DoorPath(NormalizeMAC(mac))
	if err != nil {
		return nil, nil //nolint:nilerr // an unaddressable MAC cannot be registered
	}
	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading lock %s: %w", mac, err)
	}
	if doc == nil {
		return nil, nil
	}
	var l Lock
	if err := store.Decode(doc, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetCertificate returns the stored certificate or "" if unregistered.
func (r *Registry) GetCertificate(ctx context.Context, mac string) (string, error) {
	l, err := r.Get(ctx, mac)
	if err != nil || l == nil {
		return "", err
	}
	return l.Certificate, nil
}

// GetAddress returns the last reported address or "" if unknown.
func (r *Registry) GetAddress(ctx context.Context, mac string) (string, error) {
	l, err := r.Get(ctx, mac)
	if err != nil || l == nil {
		return "", err
	}
	return l.Address, nil
}

// GetBLE returns the BLE address or "" if unregistered.
func (r *Registry) GetBLE(ctx context.Context, mac string) (string, error) {
	l, err := r.Get(ctx, mac)
	if err != nil || l == nil {
		return "", err
	}
	return l.BLE, nil
}

// FindByBLE resolves a BLE beacon address to its lock, or nil.
func (r *Registry) FindByBLE(ctx context.Context, ble string) (*Lock, error) {
	_, doc, err := r.store.QueryFirstWhereEqual(ctx, store.CollectionDoors, "BLE", NormalizeMAC(ble))
	if err != nil {
		return nil, fmt.Errorf("finding lock by BLE: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	var l Lock
	if err := store.Decode(doc, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Status reports whether the lock is registered and whether anyone holds an
// authorization for it.
func (r *Registry) Status(ctx context.Context, mac string) (Status, error) {
	mac = NormalizeMAC(mac)
	l, err := r.Get(ctx, mac)
	if err != nil {
		return StatusUnregistered, err
	}
	if l == nil {
		return StatusUnregistered, nil
	}

	path, err := store.AuthorizationsPath(mac)
	if err != nil {
		return StatusRegistered, nil //nolint:nilerr // registered MACs are always addressable
	}
	auths, err := r.store.List(ctx, path)
	if err != nil {
		return StatusUnregistered, fmt.Errorf("listing authorizations for %s: %w", mac, err)
	}
	if len(auths) > 0 {
		return StatusAuthorized, nil
	}
	return StatusRegistered, nil
}

// Verified is a signed payload whose signature checked out against the
// certificate of the lock it names.
type Verified struct {
	MAC  string
	Data []byte
}

// Decode parses the verified payload into v.
func (v *Verified) Decode(dst any) error {
	if err := json.Unmarshal(v.Data, dst); err != nil {
		return fmt.Errorf("%w: %w", signature.ErrInvalidData, err)
	}
	return nil
}

// Authenticate verifies env against the certificate of the lock named by its
// smart_lock_MAC field.
//
// Errors, in the order they are checked:
//   - signature.ErrNotSigned: no signature
//   - signature.ErrInvalidData: data missing, not an object, or without smart_lock_MAC
//   - signature.ErrInvalidSignature wrapping ErrLockNotFound: no such lock
//   - signature.ErrCertificate: the lock's stored certificate is unusable
//   - signature.ErrInvalidSignature: verification failed
func (r *Registry) Authenticate(ctx context.Context, env signature.Envelope) (*Verified, error) {
	if env.Signature == "" {
		return nil, signature.ErrNotSigned
	}

	var head struct {
		MAC string `json:"smart_lock_MAC"`
	}
	if err := env.Decode(&head); err != nil {
		return nil, err
	}
	mac := NormalizeMAC(head.MAC)
	if mac == "" {
		return nil, fmt.Errorf("%w: smart_lock_MAC is required", signature.ErrInvalidData)
	}

	cert, err := r.GetCertificate(ctx, mac)
	if err != nil {
		return nil, err
	}
	if cert == "" {
		return nil, fmt.Errorf("%w: %w: %s", signature.ErrInvalidSignature, ErrLockNotFound, mac)
	}

	pub, err := signature.PublicKeyFromCertificate(cert)
	if err != nil {
		r.logger.Error("stored lock certificate is unusable", "mac", mac, "error", err)
		return nil, err
	}
	if !signature.Verify([]byte(env.Data), env.Signature, pub) {
		r.logger.Warn("rejected signed request", "mac", mac)
		return nil, signature.ErrInvalidSignature
	}

	return &Verified{MAC: mac, Data: []byte(env.Data)}, nil
}
