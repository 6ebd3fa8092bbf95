package invite

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/doorlock-core/internal/access"
	"github.com/nerrad567/doorlock-core/internal/account"
	"github.com/nerrad567/doorlock-core/internal/auth"
	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/signature"
	"github.com/nerrad567/doorlock-core/internal/store"
	"github.com/nerrad567/doorlock-core/internal/testutil"
)

var (
	testNow  = time.Unix(1_700_000_000, 0)
	testUser = auth.Identity{UserID: "user-1", Email: "alice@example.com"}
)

type fixture struct {
	svc      *Service
	store    *store.MemoryStore
	dir      *access.Directory
	accounts *account.Service
	lock     *testutil.LockIdentity
	events   *recordingEvents
}

type recordingEvents struct {
	mu      sync.Mutex
	created []string
	granted []string
}

func (r *recordingEvents) InviteCreated(mac string, _ access.AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, mac)
}

func (r *recordingEvents) AuthorizationGranted(mac, phoneID string, _ access.AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted = append(r.granted, mac+"/"+phoneID)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemoryStore()
	reg := lock.NewRegistry(st)
	id := testutil.NewLockIdentity(t, "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66")
	if _, err := reg.Register(t.Context(), id.MAC, id.BLE, id.CertificateBody, "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	dir := access.NewDirectory(st, reg)
	accounts := account.NewService(st, dir)
	if err := accounts.RegisterPhoneID(t.Context(), testUser.UserID, "phone-1"); err != nil {
		t.Fatal(err)
	}

	events := &recordingEvents{}
	svc := NewService(st, reg, dir, accounts, Options{
		EnforceExpiration: true,
		Now:               func() time.Time { return testNow },
	})
	svc.SetEvents(events)

	return &fixture{svc: svc, store: st, dir: dir, accounts: accounts, lock: id, events: events}
}

// storeInvite writes an invite directly, bypassing Create.
func (f *fixture) storeInvite(t *testing.T, id string, inv Invite) {
	t.Helper()
	doc, err := store.Encode(inv)
	if err != nil {
		t.Fatal(err)
	}
	path, _ := store.InvitePath(id)
	if err := f.store.Update(t.Context(), path, doc); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) inviteExists(t *testing.T, id string) bool {
	t.Helper()
	inv, err := f.svc.Get(t.Context(), id)
	if err != nil {
		t.Fatal(err)
	}
	return inv != nil
}

func i64(v int64) *int64 { return &v }

func TestService_Create(t *testing.T) {
	exp := testNow.Unix() + 3600

	tests := []struct {
		name    string
		payload map[string]any
		want    Invite
	}{
		{
			name:    "admin",
			payload: map[string]any{"smart_lock_MAC": "aa:bb:cc:dd:ee:ff", "type": 0, "expiration": exp},
			want:    Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Admin, Expiration: i64(exp)},
		},
		{
			name: "tenant",
			payload: map[string]any{"smart_lock_MAC": "AA:BB:CC:DD:EE:FF", "type": 2, "expiration": exp,
				"valid_from": 10, "valid_until": 20},
			want: Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Tenant, Expiration: i64(exp),
				Schedule: access.Schedule{ValidFrom: i64(10), ValidUntil: i64(20)}},
		},
		{
			name: "periodic user with weekdays string",
			payload: map[string]any{"smart_lock_MAC": "AA:BB:CC:DD:EE:FF", "type": 3, "expiration": exp,
				"valid_from": 10, "valid_until": 20, "weekdays_str": "234"},
			want: Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.PeriodicUser, Expiration: i64(exp),
				Schedule: access.Schedule{ValidFrom: i64(10), ValidUntil: i64(20), Weekdays: []int{2, 3, 4}}},
		},
		{
			name: "one time user email locked",
			payload: map[string]any{"smart_lock_MAC": "AA:BB:CC:DD:EE:FF", "type": 4, "expiration": exp,
				"one_day": 99, "email_locked": "bob@example.com"},
			want: Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.OneTimeUser, Expiration: i64(exp),
				EmailLocked: "bob@example.com", Schedule: access.Schedule{OneDay: i64(99)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			code, err := f.svc.Create(t.Context(), f.lock.Seal(t, tt.payload))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			id, mac, ble, err := ParseCode(code)
			if err != nil {
				t.Fatalf("ParseCode() error = %v", err)
			}
			if len(id) != 32 || mac != f.lock.MAC || ble != f.lock.BLE {
				t.Errorf("ParseCode() = (%q, %q, %q)", id, mac, ble)
			}

			path, _ := store.InvitePath(id)
			doc, err := f.store.Get(t.Context(), path)
			if err != nil || doc == nil {
				t.Fatalf("stored invite = (%v, %v)", doc, err)
			}
			if _, ok := doc["weekdays_str"]; ok {
				t.Error("stored invite still carries weekdays_str")
			}

			got, _ := f.svc.Get(t.Context(), id)
			if got.SmartLockMAC != tt.want.SmartLockMAC || got.Type != tt.want.Type ||
				got.EmailLocked != tt.want.EmailLocked || *got.Expiration != *tt.want.Expiration ||
				!slices.Equal(got.Weekdays, tt.want.Weekdays) {
				t.Errorf("stored invite = %+v, want %+v", got, tt.want)
			}
			if len(f.events.created) != 1 || f.events.created[0] != f.lock.MAC {
				t.Errorf("InviteCreated events = %v", f.events.created)
			}
		})
	}
}

func TestService_CreateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	stranger := testutil.NewLockIdentity(t, "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66")

	tests := []struct {
		name string
		env  signature.Envelope
		want error
	}{
		{
			name: "not signed",
			env:  signature.Envelope{Data: `{"smart_lock_MAC":"AA:BB:CC:DD:EE:FF","type":0}`},
			want: signature.ErrNotSigned,
		},
		{
			name: "wrong key",
			env:  stranger.Seal(t, map[string]any{"smart_lock_MAC": "AA:BB:CC:DD:EE:FF", "type": 0}),
			want: signature.ErrInvalidSignature,
		},
		{
			name: "unknown lock",
			env:  f.lock.Seal(t, map[string]any{"smart_lock_MAC": "00:00:00:00:00:00", "type": 0}),
			want: signature.ErrInvalidSignature,
		},
		{
			name: "tenant without window",
			env:  f.lock.Seal(t, map[string]any{"smart_lock_MAC": f.lock.MAC, "type": 2}),
			want: access.ErrValidation,
		},
		{
			name: "admin with one_day",
			env:  f.lock.Seal(t, map[string]any{"smart_lock_MAC": f.lock.MAC, "type": 0, "one_day": 5}),
			want: access.ErrValidation,
		},
		{
			name: "bad weekdays string",
			env: f.lock.Seal(t, map[string]any{"smart_lock_MAC": f.lock.MAC, "type": 3,
				"valid_from": 1, "valid_until": 2, "weekdays_str": "2x"}),
			want: access.ErrValidation,
		},
		{
			name: "unknown type",
			env:  f.lock.Seal(t, map[string]any{"smart_lock_MAC": f.lock.MAC, "type": 9}),
			want: access.ErrUnknownType,
		},
		{
			name: "missing type",
			env:  f.lock.Seal(t, map[string]any{"smart_lock_MAC": f.lock.MAC}),
			want: access.ErrValidation,
		},
		{
			name: "null type",
			env:  f.lock.Seal(t, map[string]any{"smart_lock_MAC": f.lock.MAC, "type": nil}),
			want: access.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, tt.env); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	// Only the door and the phone registration remain.
	if n := f.store.Len(); n != 2 {
		t.Errorf("store holds %d documents after failed creates, want 2", n)
	}
}

func TestService_Redeem(t *testing.T) {
	tests := []struct {
		name   string
		invite Invite
		want   access.Authorization
	}{
		{
			name:   "owner",
			invite: Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Owner},
			want:   access.Authorization{SmartLockMAC: "AA:BB:CC:DD:EE:FF", PhoneID: "phone-1", Type: access.Owner},
		},
		{
			name: "periodic user",
			invite: Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.PeriodicUser,
				Schedule: access.Schedule{ValidFrom: i64(1), ValidUntil: i64(2), Weekdays: []int{2, 3, 5}}},
			want: access.Authorization{SmartLockMAC: "AA:BB:CC:DD:EE:FF", PhoneID: "phone-1", Type: access.PeriodicUser,
				Schedule: access.Schedule{ValidFrom: i64(1), ValidUntil: i64(2), Weekdays: []int{2, 3, 5}}},
		},
		{
			name:   "email locked to caller",
			invite: Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Admin, EmailLocked: "Alice@Example.com"},
			want:   access.Authorization{SmartLockMAC: "AA:BB:CC:DD:EE:FF", PhoneID: "phone-1", Type: access.Admin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := t.Context()
			f.storeInvite(t, "inv-1", tt.invite)

			a, err := f.svc.Redeem(ctx, testUser, "inv-1", "phone-1", "key-blob")
			if err != nil {
				t.Fatalf("Redeem() error = %v", err)
			}
			if a.MasterKeyEncryptedLock != "key-blob" || a.Type != tt.want.Type {
				t.Errorf("Redeem() = %+v", a)
			}

			stored, err := f.dir.Get(ctx, tt.want.SmartLockMAC, "phone-1")
			if err != nil || stored == nil {
				t.Fatalf("Get() = (%v, %v)", stored, err)
			}
			if stored.Type != tt.want.Type || !slices.Equal(stored.Weekdays, tt.want.Weekdays) {
				t.Errorf("stored authorization = %+v, want %+v", stored, tt.want)
			}
			if f.inviteExists(t, "inv-1") {
				t.Error("invite still present after redemption")
			}
			if len(f.events.granted) != 1 {
				t.Errorf("AuthorizationGranted events = %v", f.events.granted)
			}
		})
	}
}

func TestService_RedeemFailuresLeaveInvite(t *testing.T) {
	tests := []struct {
		name     string
		invite   Invite
		inviteID string
		phoneID  string
		want     error
	}{
		{
			name:     "unknown invite",
			invite:   Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Admin},
			inviteID: "missing",
			phoneID:  "phone-1",
			want:     ErrInvalidInvite,
		},
		{
			name:     "expired",
			invite:   Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Admin, Expiration: i64(testNow.Unix() - 1)},
			inviteID: "inv-1",
			phoneID:  "phone-1",
			want:     ErrInviteExpired,
		},
		{
			name:     "email locked to someone else",
			invite:   Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Admin, EmailLocked: "bob@example.com"},
			inviteID: "inv-1",
			phoneID:  "phone-1",
			want:     ErrForbidden,
		},
		{
			name:     "unregistered phone",
			invite:   Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Admin},
			inviteID: "inv-1",
			phoneID:  "phone-9",
			want:     ErrInvalidPrincipal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.storeInvite(t, "inv-1", tt.invite)

			_, err := f.svc.Redeem(t.Context(), testUser, tt.inviteID, tt.phoneID, "k")
			if !errors.Is(err, tt.want) {
				t.Fatalf("Redeem() error = %v, want %v", err, tt.want)
			}
			if !f.inviteExists(t, "inv-1") {
				t.Error("failed redemption consumed the invite")
			}
		})
	}
}

func TestService_RedeemExpirationNotEnforced(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.EnforceExpiration = false
	f.storeInvite(t, "inv-1", Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Admin, Expiration: i64(1)})

	if _, err := f.svc.Redeem(t.Context(), testUser, "inv-1", "phone-1", "k"); err != nil {
		t.Errorf("Redeem() error = %v, want nil", err)
	}
}

func TestService_ConcurrentRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.storeInvite(t, "inv-1", Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Owner})

	const callers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		invalid   atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Redeem(ctx, testUser, "inv-1", "phone-1", "k")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrInvalidInvite):
				invalid.Add(1)
			default:
				t.Errorf("Redeem() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("successful redemptions = %d, want 1", successes.Load())
	}
	if invalid.Load() != callers-1 {
		t.Errorf("ErrInvalidInvite count = %d, want %d", invalid.Load(), callers-1)
	}
}

func TestService_SaveForLater(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.storeInvite(t, "inv-1", Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Owner})
	f.storeInvite(t, "inv-locked", Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Owner, EmailLocked: "bob@example.com"})

	if err := f.svc.SaveForLater(ctx, testUser, "lock-1", "missing"); !errors.Is(err, ErrInvalidInvite) {
		t.Errorf("SaveForLater(missing) error = %v, want ErrInvalidInvite", err)
	}
	if err := f.svc.SaveForLater(ctx, testUser, "lock-1", "inv-locked"); !errors.Is(err, ErrForbidden) {
		t.Errorf("SaveForLater(locked) error = %v, want ErrForbidden", err)
	}
	if has, _ := f.svc.HasSaved(ctx, testUser, "lock-1"); has {
		t.Error("HasSaved() = true before a successful save")
	}

	if err := f.svc.SaveForLater(ctx, testUser, "lock-1", "inv-1"); err != nil {
		t.Fatalf("SaveForLater() error = %v", err)
	}
	saved, err := f.accounts.SavedInvite(ctx, testUser.UserID, "lock-1")
	if err != nil || saved != "inv-1" {
		t.Errorf("SavedInvite() = (%q, %v), want inv-1", saved, err)
	}
	if has, _ := f.svc.HasSaved(ctx, testUser, "lock-1"); !has {
		t.Error("HasSaved() = false after save")
	}
}

func TestService_RedeemSaved(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.svc.RedeemSaved(ctx, testUser, "lock-1", "phone-1", "k"); !errors.Is(err, ErrNoPendingInvite) {
		t.Fatalf("RedeemSaved() with empty slot error = %v, want ErrNoPendingInvite", err)
	}

	f.storeInvite(t, "inv-1", Invite{SmartLockMAC: "AA:BB:CC:DD:EE:FF", Type: access.Owner})
	if err := f.svc.SaveForLater(ctx, testUser, "lock-1", "inv-1"); err != nil {
		t.Fatal(err)
	}

	// A failed redemption keeps the slot so the user can retry.
	if _, err := f.svc.RedeemSaved(ctx, testUser, "lock-1", "phone-9", "k"); !errors.Is(err, ErrInvalidPrincipal) {
		t.Fatalf("RedeemSaved() error = %v, want ErrInvalidPrincipal", err)
	}
	if has, _ := f.svc.HasSaved(ctx, testUser, "lock-1"); !has {
		t.Fatal("slot cleared after failed redemption")
	}

	a, err := f.svc.RedeemSaved(ctx, testUser, "lock-1", "phone-1", "k")
	if err != nil {
		t.Fatalf("RedeemSaved() error = %v", err)
	}
	if a.PhoneID != "phone-1" {
		t.Errorf("RedeemSaved() = %+v", a)
	}
	if has, _ := f.svc.HasSaved(ctx, testUser, "lock-1"); has {
		t.Error("slot still set after successful redemption")
	}
}

// failingBLE authenticates through the real registry but cannot read the BLE address.
type failingBLE struct {
	*lock.Registry
}

var errBLEUnavailable = errors.New("ble lookup unavailable")

func (failingBLE) GetBLE(context.Context, string) (string, error) {
	return "", errBLEUnavailable
}

func TestService_CreateBLEFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, failingBLE{lock.NewRegistry(f.store)}, f.dir, f.accounts, Options{})

	_, err := svc.Create(t.Context(), f.lock.Seal(t, map[string]any{"smart_lock_MAC": f.lock.MAC, "type": 0}))
	if !errors.Is(err, errBLEUnavailable) {
		t.Fatalf("Create() error = %v, want %v", err, errBLEUnavailable)
	}
	if n := f.store.Len(); n != 2 {
		t.Errorf("store holds %d documents after failed create, want 2", n)
	}
}
