package store

import (
	"fmt"
	"strings"
)

// Top-level collections.
const (
	CollectionDoors          = "doors"
	CollectionInvites        = "invites"
	CollectionAuthorizations = "authorizations"
	CollectionUsers          = "users"
)

// Join builds a path from segments. Segments must be non-empty and must not
// contain "/".
func Join(segments ...string) (string, error) {
	for _, s := range segments {
		if s == "" || strings.Contains(s, "/") || s == "." || s == ".." {
			return "", fmt.Errorf("%w: segment %q", ErrInvalidPath, s)
		}
	}
	if len(segments) == 0 {
		return "", ErrInvalidPath
	}
	return strings.Join(segments, "/"), nil
}

// DoorPath is the lock record path: doors/{mac}.
func DoorPath(mac string) (string, error) {
	return Join(CollectionDoors, mac)
}

// InvitePath is the invite path: invites/{id}.
func InvitePath(id string) (string, error) {
	return Join(CollectionInvites, id)
}

// AuthorizationsPath is the collection of a lock's authorizations.
func AuthorizationsPath(mac string) (string, error) {
	return Join(CollectionAuthorizations, mac)
}

// AuthorizationPath is authorizations/{mac}/{phoneId}.
func AuthorizationPath(mac, phoneID string) (string, error) {
	return Join(CollectionAuthorizations, mac, phoneID)
}

// UserPath is users/{uid}.
func UserPath(userID string) (string, error) {
	return Join(CollectionUsers, userID)
}

// UserPhonesPath is the collection of a user's registered phone ids.
func UserPhonesPath(userID string) (string, error) {
	return Join(CollectionUsers, userID, "phones")
}

// UserPhonePath is users/{uid}/phones/{phoneId}.
func UserPhonePath(userID, phoneID string) (string, error) {
	return Join(CollectionUsers, userID, "phones", phoneID)
}

// UserLocksPath is the collection of a user's saved locks.
func UserLocksPath(userID string) (string, error) {
	return Join(CollectionUsers, userID, "locks")
}

// UserLockPath is users/{uid}/locks/{lockId}.
func UserLockPath(userID, lockID string) (string, error) {
	return Join(CollectionUsers, userID, "locks", lockID)
}

// validatePath checks a path built elsewhere and returns its parent.
func validatePath(path string) (parent string, err error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	segments := strings.Split(path, "/")
	if _, err := Join(segments...); err != nil {
		return "", err
	}
	return parentOf(path), nil
}

// parentOf returns path without its last segment ("" for top-level keys).
func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// keyOf returns the last segment of path.
func keyOf(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}
