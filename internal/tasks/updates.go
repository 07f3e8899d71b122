package tasks

import (
	"fmt"

	"github.com/desertthunder/tuneshop/internal/models"
)

// ProgressUpdate represents a progress event during a checkout.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	State     models.CheckoutState // Workflow state the update belongs to
	AttemptID string               // Checkout attempt
	Step      int                  // Current step number within the state, when counted
	Total     int                  // Total steps in this state
	Message   string               // Human-readable message for display
	Data      any                  // Optional state-specific data
}

func stateMessage(s models.CheckoutState) string {
	switch s {
	case models.StateIdle:
		return "Checkout reset"
	case models.StateEnsureContext:
		return "Starting checkout..."
	case models.StateCaptureSnapshot:
		return "Saving a copy of your cart..."
	case models.StatePrepareCart:
		return "Preparing cart..."
	case models.StateSelectPayment:
		return "Waiting for a payment method"
	case models.StateProcessing:
		return "Processing purchase..."
	case models.StateConfirmed:
		return "Purchase confirmed"
	case models.StateFailed:
		return "Checkout failed"
	default:
		return string(s)
	}
}

func stateUpdate(s models.CheckoutState, attemptID string) ProgressUpdate {
	return ProgressUpdate{
		State:     s,
		AttemptID: attemptID,
		Message:   stateMessage(s),
	}
}

func restoreUpdate(s models.CheckoutState, attemptID string, step, total int, line models.CartLineRequest) ProgressUpdate {
	return ProgressUpdate{
		State:     s,
		AttemptID: attemptID,
		Step:      step,
		Total:     total,
		Message:   fmt.Sprintf("Restoring cart (%d/%d): %s %d", step, total, line.ProductType, line.ProductID),
		Data:      line,
	}
}

func restoreDoneUpdate(s models.CheckoutState, attemptID string, report RestoreReport) ProgressUpdate {
	msg := fmt.Sprintf("Cart restored (%d/%d lines)", report.Restored, report.Requested)
	if !report.Complete() {
		msg = fmt.Sprintf("Cart partially restored (%d/%d lines)", report.Restored, report.Requested)
	}
	return ProgressUpdate{
		State:     s,
		AttemptID: attemptID,
		Step:      report.Restored,
		Total:     report.Requested,
		Message:   msg,
		Data:      report,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
