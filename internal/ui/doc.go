// Package ui implements an interactive cart and checkout screen using bubbletea's Elm architecture.
//
// The TUI walks through four views:
//  1. [CartView] : Browse the server cart, remove lines, refresh
//  2. [PaymentView] : Enter the payment method for the purchase
//  3. [CheckoutView] : Follow the orchestrator's progress updates
//  4. [ResultView] : Show the receipt or the reason the purchase failed
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through the orchestrator's channel, so the screen never blocks the checkout.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, d, r, q) with contextual help displayed via charmbracelet/bubbles/help.
//
// The package also exposes the lipgloss [Palette] used for plain CLI output.
package ui
