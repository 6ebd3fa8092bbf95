// Package relay keeps live TCP connections to lock devices and forwards
// opaque command payloads over them.
//
// Connections are pooled per (user id, lock MAC). A command writes the
// payload, waits for a single response read with a fixed deadline, and
// returns the bytes unchanged. Any I/O failure, timeout or empty read evicts
// the connection; the next command for the same key dials afresh. Nothing is
// retried here.
//
// Thread Safety:
//
// Pool is safe for concurrent use. The map of connections is guarded by one
// mutex that is never held during network I/O; each pooled connection has
// its own mutex, so commands for the same key are serialized while commands
// for different keys proceed in parallel.
package relay
