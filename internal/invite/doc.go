// Package invite implements signed, single-use invitations to a lock.
//
// A lock signs an invite request with its private key; Create verifies it
// against the certificate on file and stores the invite under a fresh random
// id. A second user redeems the invite code for one of their registered
// phone ids, which atomically consumes the invite and writes a typed
// Authorization.
//
// Invite codes are base64("{id} {MAC} {BLE}") so that a client can resolve
// the target lock and its BLE beacon without another request.
//
// Thread Safety:
//
// Service is safe for concurrent use. Two concurrent redemptions of the same
// invite produce at most one Authorization: the invite is consumed with
// store.Store.Take, and the loser observes ErrInvalidInvite.
package invite
