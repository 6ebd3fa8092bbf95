package lock

import (
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/doorlock-core/internal/signature"
	"github.com/nerrad567/doorlock-core/internal/store"
	"github.com/nerrad567/doorlock-core/internal/testutil"
)

type recordedEvents struct {
	mu         sync.Mutex
	registered []string
	checkedIn  []string
}

func (e *recordedEvents) LockRegistered(mac string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, mac)
}

func (e *recordedEvents) LockCheckedIn(mac, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkedIn = append(e.checkedIn, mac)
}

func newTestRegistry(t *testing.T) (*Registry, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewRegistry(st), st
}

func TestRegister_NormalizesMAC(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := t.Context()
	events := &recordedEvents{}
	reg.SetEvents(events)

	l, err := reg.Register(ctx, "aa:bb:cc:dd:ee:ff", "11:22:33:aa:bb:cc", "CERTBODY", "10.0.0.5")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if l.MAC != "AA:BB:CC:DD:EE:FF" || l.BLE != "11:22:33:AA:BB:CC" {
		t.Errorf("Register() = %+v, want upper-case addresses", l)
	}

	cert, err := reg.GetCertificate(ctx, "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if cert != "CERTBODY" {
		t.Errorf("GetCertificate() = %q, want CERTBODY", cert)
	}

	// Lower-case lookups resolve to the same record.
	ble, _ := reg.GetBLE(ctx, "aa:bb:cc:dd:ee:ff")
	if ble != "11:22:33:AA:BB:CC" {
		t.Errorf("GetBLE() = %q", ble)
	}
	addr, _ := reg.GetAddress(ctx, "aa:bb:cc:dd:ee:ff")
	if addr != "10.0.0.5" {
		t.Errorf("GetAddress() = %q", addr)
	}

	if len(events.registered) != 1 || events.registered[0] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("registered events = %v", events.registered)
	}
}

func TestRegister_Validation(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tests := []struct {
		name           string
		mac, ble, cert string
	}{
		{name: "missing MAC", ble: "B", cert: "C"},
		{name: "missing BLE", mac: "M", cert: "C"},
		{name: "missing certificate", mac: "M", ble: "B"},
		{name: "MAC with slash", mac: "AA/BB", ble: "B", cert: "C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Register(t.Context(), tt.mac, tt.ble, tt.cert, "10.0.0.1")
			if !errors.Is(err, ErrInvalidLock) {
				t.Errorf("Register() error = %v, want ErrInvalidLock", err)
			}
		})
	}
}

func TestRegister_Upsert(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := t.Context()

	if _, err := reg.Register(ctx, "AA", "B1", "CERT1", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Register(ctx, "aa", "B2", "CERT2", "10.0.0.2"); err != nil {
		t.Fatal(err)
	}

	l, err := reg.Get(ctx, "AA")
	if err != nil {
		t.Fatal(err)
	}
	if l.Certificate != "CERT2" || l.BLE != "B2" || l.Address != "10.0.0.2" {
		t.Errorf("Get() = %+v, want second registration", l)
	}
}

func TestUnknownLockGetters(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := t.Context()

	for name, fn := range map[string]func() (string, error){
		"certificate": func() (string, error) { return reg.GetCertificate(ctx, "00:00") },
		"address":     func() (string, error) { return reg.GetAddress(ctx, "00:00") },
		"ble":         func() (string, error) { return reg.GetBLE(ctx, "00:00") },
	} {
		got, err := fn()
		if err != nil || got != "" {
			t.Errorf("%s = (%q, %v), want empty, nil", name, got, err)
		}
	}
}

func TestCheckIn(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := t.Context()
	events := &recordedEvents{}
	reg.SetEvents(events)

	if err := reg.CheckIn(ctx, "AA", "10.0.0.9"); !errors.Is(err, ErrLockNotFound) {
		t.Fatalf("CheckIn() unregistered error = %v, want ErrLockNotFound", err)
	}

	if _, err := reg.Register(ctx, "AA", "BB", "CERT", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.CheckIn(ctx, "aa", "10.0.0.9:4000"); err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}

	l, _ := reg.Get(ctx, "AA")
	if l.Address != "10.0.0.9:4000" {
		t.Errorf("Address = %q, want 10.0.0.9:4000", l.Address)
	}
	if l.Certificate != "CERT" || l.BLE != "BB" {
		t.Errorf("CheckIn changed other fields: %+v", l)
	}
	if len(events.checkedIn) != 1 {
		t.Errorf("checked-in events = %v", events.checkedIn)
	}
}

func TestFindByBLE(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := t.Context()

	if _, err := reg.Register(ctx, "AA", "be:ac:01", "CERT", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}

	l, err := reg.FindByBLE(ctx, "BE:AC:01")
	if err != nil {
		t.Fatalf("FindByBLE() error = %v", err)
	}
	if l == nil || l.MAC != "AA" {
		t.Errorf("FindByBLE() = %+v, want lock AA", l)
	}

	l, err = reg.FindByBLE(ctx, "missing")
	if err != nil || l != nil {
		t.Errorf("FindByBLE(missing) = (%+v, %v), want nil, nil", l, err)
	}
}

func TestStatus(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := t.Context()

	assertStatus := func(want Status) {
		t.Helper()
		got, err := reg.Status(ctx, "aa")
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if got != want {
			t.Errorf("Status() = %d, want %d", got, want)
		}
	}

	assertStatus(StatusUnregistered)

	if _, err := reg.Register(ctx, "AA", "BB", "CERT", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	assertStatus(StatusRegistered)

	if err := st.Update(ctx, "authorizations/AA/phone-1", store.Document{"type": 1}); err != nil {
		t.Fatal(err)
	}
	assertStatus(StatusAuthorized)
}

func TestAuthenticate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := t.Context()

	lock := testutil.NewLockIdentity(t, "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66")
	impostor := testutil.NewLockIdentity(t, "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66")
	broken := testutil.NewLockIdentity(t, "00:00:00:00:00:01", "00:01")

	if _, err := reg.Register(ctx, lock.MAC, lock.BLE, lock.CertificateBody, "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Register(ctx, broken.MAC, broken.BLE, "bm90LWEtY2VydA==", "10.0.0.2"); err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"smart_lock_MAC": "aa:bb:cc:dd:ee:ff", "phone_id": "p1"}
	good := lock.Seal(t, payload)

	tests := []struct {
		name    string
		env     signature.Envelope
		wantErr error
	}{
		{name: "valid", env: good},
		{name: "not signed", env: signature.Envelope{Data: good.Data}, wantErr: signature.ErrNotSigned},
		{name: "empty data", env: signature.Envelope{Signature: good.Signature}, wantErr: signature.ErrInvalidData},
		{name: "missing MAC", env: lock.Seal(t, map[string]any{"phone_id": "p1"}), wantErr: signature.ErrInvalidData},
		{name: "unknown lock", env: lock.Seal(t, map[string]any{"smart_lock_MAC": "FF:FF"}), wantErr: ErrLockNotFound},
		{name: "corrupt certificate", env: broken.Seal(t, map[string]any{"smart_lock_MAC": broken.MAC}), wantErr: signature.ErrCertificate},
		{name: "wrong key", env: impostor.Seal(t, payload), wantErr: signature.ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := reg.Authenticate(ctx, tt.env)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if v.MAC != lock.MAC {
				t.Errorf("MAC = %q, want %q", v.MAC, lock.MAC)
			}
			var got struct {
				PhoneID string `json:"phone_id"`
			}
			if err := v.Decode(&got); err != nil || got.PhoneID != "p1" {
				t.Errorf("Decode() = (%+v, %v)", got, err)
			}
		})
	}

	// Unknown locks are an authentication failure, not a missing resource.
	_, err := reg.Authenticate(ctx, lock.Seal(t, map[string]any{"smart_lock_MAC": "FF:FF"}))
	if !errors.Is(err, signature.ErrInvalidSignature) {
		t.Errorf("unknown lock error = %v, want ErrInvalidSignature", err)
	}
}

func TestAuthenticate_CertificateRotation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := t.Context()

	first := testutil.NewLockIdentity(t, "AA", "BB")
	second := testutil.NewLockIdentity(t, "AA", "BB")

	if _, err := reg.Register(ctx, "AA", "BB", first.CertificateBody, "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Authenticate(ctx, first.Seal(t, map[string]any{"smart_lock_MAC": "AA"})); err != nil {
		t.Fatalf("first key rejected: %v", err)
	}

	if _, err := reg.Register(ctx, "AA", "BB", second.CertificateBody, "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Authenticate(ctx, first.Seal(t, map[string]any{"smart_lock_MAC": "AA"})); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Errorf("old key after rotation error = %v, want ErrInvalidSignature", err)
	}
	if _, err := reg.Authenticate(ctx, second.Seal(t, map[string]any{"smart_lock_MAC": "AA"})); err != nil {
		t.Errorf("new key rejected: %v", err)
	}
}
