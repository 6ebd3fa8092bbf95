package invite

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
)

// EncodeCode builds the redeemable code for an invite.
func EncodeCode(inviteID, mac, ble string) string {
	return base64.StdEncoding.EncodeToString([]byte(inviteID + " " + mac + " " + ble))
}

// ParseCode is the inverse of EncodeCode. mac and ble are empty when the
// code carries only an id.
func ParseCode(code string) (inviteID, mac, ble string, err error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(code))
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %w", ErrInvalidCode, err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return "", "", "", fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	inviteID = fields[0]
	if len(fields) > 1 {
		mac = fields[1]
	}
	if len(fields) > 2 {
		ble = fields[2]
	}
	return inviteID, mac, ble, nil
}

// expandWeekdays turns a digit string such as "342" into the sorted set
// [2 3 4]. Repeated digits collapse.
func expandWeekdays(s string) ([]int, error) {
	days := make([]int, 0, len(s))
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("weekdays_str %q: not a digit string", s)
		}
		days = append(days, int(r-'0'))
	}
	slices.Sort(days)
	return slices.Compact(days), nil
}
