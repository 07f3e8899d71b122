// Package cart keeps a local copy of the server's cart.
//
// The server is authoritative. [Store] never edits its cache optimistically: every
// mutation goes to the backend first and the returned document replaces the cache.
// Registered line-count listeners fire after the cache changes size, and the cache is
// dropped with [Store.Reset] when the session is force-logged-out.
package cart
