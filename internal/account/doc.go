// Package account manages what a user owns: the phone ids (principals) they
// registered, the locks saved to their account, and the pending invite slot
// kept per lock.
//
// Documents live under users/{uid}:
//
//	users/{uid}/phones/{phone_id}   one document per registered phone
//	users/{uid}/locks/{lock_id}     a saved lock, with its saved_invite slot
//
// Removing a lock from an account also revokes the authorizations held by
// every phone the user registered.
package account
