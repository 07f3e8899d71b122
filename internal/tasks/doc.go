// Package tasks orchestrates checkout against the storefront cart with real-time progress reporting.
//
// # Workflow
//
// An [Orchestrator] moves one attempt through the states of [models.CheckoutState]:
//
//	IDLE → ENSURE_CONTEXT → [CAPTURE_SNAPSHOT] → PREPARE_CART → SELECT_PAYMENT → PROCESSING → CONFIRMED | FAILED
//
//  1. [Orchestrator.BeginFromCart] : buy everything in the cart
//  2. [Orchestrator.BeginDirect] : buy one song or album now
//     - The cart is captured once per attempt
//     - The cart is emptied and only the target is added
//     - After the purchase (or its failure) the captured lines are added back one at a time
//  3. [Orchestrator.SelectPayment] : record the payment method (paid attempts only)
//  4. [Orchestrator.Finalize] : purchase the cart
//
// [Orchestrator.Run] chains these steps and asks a [PaymentSelector] for the method.
// Free attempts skip payment selection entirely.
//
// # Checkout Context
//
// The [ContextStore] keeps the attempt's metadata in memory and in a [SessionStore]
// scoped to the browsing session, so an attempt survives a restart of the CLI.
//
// # Progress Reporting
//
// Every state change and restore step is sent as a [ProgressUpdate].
// Updates use select with default to prevent blocking.
package tasks
