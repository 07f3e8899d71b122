package models

import (
	"fmt"
	"slices"
	"time"
)

// CheckoutOrigin records where a checkout was started.
type CheckoutOrigin string

const (
	OriginCart   CheckoutOrigin = "CART"
	OriginDirect CheckoutOrigin = "DIRECT"
)

// CheckoutState is a step of the checkout workflow.
type CheckoutState string

const (
	StateIdle            CheckoutState = "IDLE"
	StateEnsureContext   CheckoutState = "ENSURE_CONTEXT"
	StateCaptureSnapshot CheckoutState = "CAPTURE_SNAPSHOT"
	StatePrepareCart     CheckoutState = "PREPARE_CART"
	StateSelectPayment   CheckoutState = "SELECT_PAYMENT"
	StateProcessing      CheckoutState = "PROCESSING"
	StateConfirmed       CheckoutState = "CONFIRMED"
	StateFailed          CheckoutState = "FAILED"
)

var transitions = map[CheckoutState][]CheckoutState{
	StateIdle:            {StateEnsureContext},
	StateEnsureContext:   {StateCaptureSnapshot, StatePrepareCart, StateFailed},
	StateCaptureSnapshot: {StatePrepareCart, StateFailed},
	StatePrepareCart:     {StateSelectPayment, StateProcessing, StateEnsureContext, StateFailed},
	StateSelectPayment:   {StateSelectPayment, StateProcessing, StateEnsureContext, StateFailed},
	StateProcessing:      {StateConfirmed, StateFailed},
	StateConfirmed:       {StateIdle, StateEnsureContext},
	StateFailed:          {StateEnsureContext, StateProcessing, StateIdle},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	return slices.Contains(transitions[s], next)
}

// IsTerminal reports whether the attempt has an outcome.
func (s CheckoutState) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

func (s CheckoutState) String() string {
	return string(s)
}

// CheckoutContext is the persisted metadata of an in-progress checkout.
//
// TargetType and TargetID are set iff Origin is [OriginDirect].
// CartSnapshot is written once per attempt, guarded by SnapshotCaptured so an empty snapshot still counts as captured.
// CartStaged is true once a direct attempt has touched the server cart, until the snapshot is put back.
// Prepared is true while the cart is known to be in its purchasable shape; any failure clears it.
type CheckoutContext struct {
	AttemptID          string            `json:"attemptId"`
	Origin             CheckoutOrigin    `json:"origin"`
	TargetType         ProductType       `json:"targetContentType,omitempty"`
	TargetID           int               `json:"targetContentId,omitempty"`
	IsFree             bool              `json:"isFree"`
	PaymentMethodID    *int              `json:"paymentMethodId,omitempty"`
	PaymentMethodSaved bool              `json:"paymentMethodIsSaved"`
	SnapshotCaptured   bool              `json:"snapshotCaptured"`
	CartSnapshot       []CartLineRequest `json:"cartSnapshot,omitempty"`
	CartStaged         bool              `json:"cartStaged"`
	Prepared           bool              `json:"prepared"`
	Status             CheckoutState     `json:"status,omitempty"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// HasTarget reports whether a direct-purchase target is recorded.
func (c CheckoutContext) HasTarget() bool {
	return c.TargetType.Valid() && c.TargetID > 0
}

// Target returns the direct-purchase product as a line request.
func (c CheckoutContext) Target() CartLineRequest {
	return CartLineRequest{ProductType: c.TargetType, ProductID: c.TargetID}
}

// Validate enforces the origin/target invariant.
func (c CheckoutContext) Validate() error {
	switch c.Origin {
	case OriginCart:
		if c.TargetType != "" || c.TargetID != 0 {
			return fmt.Errorf("cart checkout must not carry a target")
		}
	case OriginDirect:
		if !c.HasTarget() {
			return fmt.Errorf("direct checkout requires a target product")
		}
	default:
		return fmt.Errorf("unknown checkout origin %q", c.Origin)
	}
	return nil
}

// Clone returns a deep copy.
func (c CheckoutContext) Clone() CheckoutContext {
	cp := c
	if c.PaymentMethodID != nil {
		id := *c.PaymentMethodID
		cp.PaymentMethodID = &id
	}
	if c.CartSnapshot != nil {
		cp.CartSnapshot = append([]CartLineRequest{}, c.CartSnapshot...)
	}
	return cp
}
