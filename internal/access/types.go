package access

import (
	"fmt"
	"slices"
	"strings"
)

// AccessType is the closed set of grant kinds.
type AccessType int

// Access types. Values are part of the wire format.
const (
	Admin        AccessType = 0
	Owner        AccessType = 1
	Tenant       AccessType = 2
	PeriodicUser AccessType = 3
	OneTimeUser  AccessType = 4
)

// field identifies a schedule field for the applicability table.
type field int

const (
	fieldValidFrom field = iota
	fieldValidUntil
	fieldWeekdays
	fieldOneDay
)

var fieldNames = map[field]string{
	fieldValidFrom:  "valid_from",
	fieldValidUntil: "valid_until",
	fieldWeekdays:   "weekdays",
	fieldOneDay:     "one_day",
}

// applicable lists the schedule fields each type carries. A type absent from
// this map is not a valid AccessType.
var applicable = map[AccessType][]field{
	Admin:        nil,
	Owner:        nil,
	Tenant:       {fieldValidFrom, fieldValidUntil},
	PeriodicUser: {fieldValidFrom, fieldValidUntil, fieldWeekdays},
	OneTimeUser:  {fieldOneDay},
}

// Valid reports whether t is one of the defined access types.
func (t AccessType) Valid() bool {
	_, ok := applicable[t]
	return ok
}

// String returns the type name.
func (t AccessType) String() string {
	switch t {
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	case Tenant:
		return "tenant"
	case PeriodicUser:
		return "periodic_user"
	case OneTimeUser:
		return "one_time_user"
	default:
		return fmt.Sprintf("AccessType(%d)", int(t))
	}
}

func (t AccessType) allows(f field) bool {
	return slices.Contains(applicable[t], f)
}

// Schedule holds the type-conditional fields of an invite or grant.
// Times are epoch seconds; weekdays are 0-6.
type Schedule struct {
	ValidFrom  *int64 `json:"valid_from,omitempty"`
	ValidUntil *int64 `json:"valid_until,omitempty"`
	Weekdays   []int  `json:"weekdays,omitempty"`
	OneDay     *int64 `json:"one_day,omitempty"`
}

func (s Schedule) present() map[field]bool {
	return map[field]bool{
		fieldValidFrom:  s.ValidFrom != nil,
		fieldValidUntil: s.ValidUntil != nil,
		fieldWeekdays:   len(s.Weekdays) > 0,
		fieldOneDay:     s.OneDay != nil,
	}
}

// Validate checks the schedule against the type's field table: every
// applicable field must be present and no other field may be.
func (s Schedule) Validate(t AccessType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}

	for f, has := range s.present() {
		switch {
		case has && !t.allows(f):
			return fmt.Errorf("%w: %s does not apply to %s", ErrValidation, fieldNames[f], t)
		case !has && t.allows(f):
			return fmt.Errorf("%w: %s requires %s", ErrValidation, t, fieldNames[f])
		}
	}

	seen := make(map[int]bool, len(s.Weekdays))
	for _, d := range s.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range 0-6", ErrValidation, d)
		}
		if seen[d] {
			return fmt.Errorf("%w: weekday %d repeated", ErrValidation, d)
		}
		seen[d] = true
	}
	if s.ValidFrom != nil && s.ValidUntil != nil && *s.ValidUntil < *s.ValidFrom {
		return fmt.Errorf("%w: valid_until is before valid_from", ErrValidation)
	}
	return nil
}

// For returns only the fields applicable to t, dropping anything else.
func (s Schedule) For(t AccessType) Schedule {
	var out Schedule
	if t.allows(fieldValidFrom) {
		out.ValidFrom = s.ValidFrom
	}
	if t.allows(fieldValidUntil) {
		out.ValidUntil = s.ValidUntil
	}
	if t.allows(fieldWeekdays) {
		out.Weekdays = slices.Clone(s.Weekdays)
	}
	if t.allows(fieldOneDay) {
		out.OneDay = s.OneDay
	}
	return out
}

// Authorization is a durable grant for one principal (phone) on one lock.
type Authorization struct {
	SmartLockMAC           string     `json:"smart_lock_MAC"`
	PhoneID                string     `json:"phone_id"`
	Type                   AccessType `json:"type"`
	MasterKeyEncryptedLock string     `json:"master_key_encrypted_lock"`
	Schedule
}

// NewAuthorization builds a grant of type t, copying only the schedule
// fields t carries. mac is upper-cased.
func NewAuthorization(mac, phoneID string, t AccessType, schedule Schedule, masterKey string) *Authorization {
	return &Authorization{
		SmartLockMAC:           strings.ToUpper(strings.TrimSpace(mac)),
		PhoneID:                phoneID,
		Type:                   t,
		MasterKeyEncryptedLock: masterKey,
		Schedule:               schedule.For(t),
	}
}
