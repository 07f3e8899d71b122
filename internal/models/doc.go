// Package models defines the domain entities shared by the session and checkout layers.
//
// The package contains three groups of types:
//
// 1. Session state owned by the token store
//   - [Session] : access/refresh token pair, token type prefix and the user JSON
//   - [TokenPair] : renewed tokens returned by the refresh endpoint
//
// 2. Server-authoritative cart state
//   - [Cart] : cart lines, line count and total price as last confirmed by the backend
//   - [CartLine] : one purchasable product in the cart
//   - [CartLineRequest] : the minimal shape needed to re-add a line (snapshot/restore)
//   - [Price] : an amount in cents that travels as a JSON decimal
//
// 3. Checkout workflow state
//   - [CheckoutContext] : origin, direct-purchase target, payment choice and cart snapshot
//   - [CheckoutOrigin] : whether checkout started from the cart or a "buy now" action
//   - [CheckoutState] : the orchestrator's workflow states and their legal transitions
package models
