// Package repositories implements persistence for the client's local state.
//
// Key Implementations:
//   - [CredentialRepository] : durable session storage in SQLite (four keyed rows in the
//     credentials table, written and deleted in one transaction)
//   - [CheckoutContextRepository] : session-scoped checkout context in SQLite, one row per
//     browsing session, expired after an idle ttl
//   - [RedisCheckoutStore] : the same contract on redis, one JSON blob per browsing session
//     with a sliding expiry
//
// Credential data survives restarts until logout. Checkout contexts live only as long as the
// browsing session that created them.
package repositories
