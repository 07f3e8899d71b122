// Package session owns the authenticated session and its renewal.
//
// # Token store
//
// [TokenStore] keeps the access token, refresh token, token type and user document in
// memory and writes every change through to a [DurableStore] (SQLite in production,
// see repositories.CredentialRepository). Reads never touch the network or the disk.
//
// # Renewal
//
// [Coordinator] serializes renewals with golang.org/x/sync/singleflight. The transport
// calls [Coordinator.Renew] with the token its request was sent with when the backend
// answers TOKEN_EXPIRED:
//   - no renewal running: this caller starts one
//   - renewal running: the caller waits for it and gets the same result
//   - renewal already finished: the current token is returned without a new call
//
// A failed renewal clears the session exactly once and runs the hooks registered with
// [Coordinator.OnForcedLogout]. Every waiter gets an error matching
// [shared.ErrRefreshFailed].
package session
