// Package api implements the HTTP API of the doorlock service.
//
// This package provides:
//   - Lock endpoints: registration, check-in, certificate and status lookup
//   - Signed lock requests: invite creation and authorization lookup
//   - User endpoints: phone ids, invites, the per-user lock list
//   - Relay endpoints: forwarding opaque commands to a lock's live socket
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Response Format
//
// Every response is a JSON object with a boolean "success". Failures carry
// an application code and message and are sent with HTTP 200, which is what
// deployed lock firmware and mobile clients expect:
//
//	{"success": false, "code": 403, "msg": "Invalid Id Token"}
//
// # Identity
//
// User endpoints take an identity token as "id_token" in the JSON body or
// query string, or as an "Authorization: Bearer" header. Lock endpoints
// carrying a signed envelope are authenticated against the certificate the
// lock registered with.
package api
