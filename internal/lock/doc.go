// Package lock maintains the registry of physical smart locks: their MAC and
// BLE addresses, the network address they last reported, and the certificate
// whose key authenticates their signed requests.
//
// MAC and BLE addresses are normalised to upper case on every entry point, so
// lookups are case-insensitive end to end.
//
// Usage:
//
//	reg := lock.NewRegistry(st)
//	reg.SetLogger(log)
//	if _, err := reg.Register(ctx, mac, ble, certBody, remoteIP); err != nil { ... }
//
//	verified, err := reg.Authenticate(ctx, envelope)
package lock
