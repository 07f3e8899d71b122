package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tuneshop/internal/models"
)

// RestoreFailure is one snapshot line that could not be re-added.
type RestoreFailure struct {
	Line models.CartLineRequest
	Err  error
}

// RestoreReport describes how a cart snapshot was put back.
type RestoreReport struct {
	Requested int
	Restored  int
	ClearErr  error
	Failed    []RestoreFailure
}

// Complete reports whether every line came back and the cart was emptied first.
func (r RestoreReport) Complete() bool {
	return r.ClearErr == nil && len(r.Failed) == 0
}

// Err joins every step error, or returns nil.
func (r RestoreReport) Err() error {
	errs := make([]error, 0, len(r.Failed)+1)
	if r.ClearErr != nil {
		errs = append(errs, fmt.Errorf("clear: %w", r.ClearErr))
	}
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("re-add %s %d: %w", f.Line.ProductType, f.Line.ProductID, f.Err))
	}
	return errors.Join(errs...)
}

// restore empties the cart and re-adds the snapshot one line at a time.
//
// Step failures are recorded and logged; the remaining lines are still attempted.
// It runs to completion even if ctx is cancelled.
func (o *Orchestrator) restore(ctx context.Context, attemptID string, snapshot []models.CartLineRequest) RestoreReport {
	ctx = context.WithoutCancel(ctx)
	state := o.State()
	report := RestoreReport{Requested: len(snapshot)}

	if err := o.cart.Clear(ctx); err != nil {
		report.ClearErr = err
		o.logger.Warn("could not empty cart before restoring", "attempt", attemptID, "error", err)
	}

	for i, line := range snapshot {
		sendProgress(o.progress, restoreUpdate(state, attemptID, i+1, len(snapshot), line))

		if _, err := o.cart.AddLine(ctx, line.ProductType, line.ProductID); err != nil {
			report.Failed = append(report.Failed, RestoreFailure{Line: line, Err: err})
			o.logger.Warn("could not restore cart line",
				"attempt", attemptID, "type", line.ProductType, "id", line.ProductID, "error", err)
			continue
		}
		report.Restored++
	}

	if err := report.Err(); err != nil {
		o.logger.Warn("cart restored partially",
			"attempt", attemptID, "restored", report.Restored, "requested", report.Requested, "error", err)
	} else {
		o.logger.Info("cart restored", "attempt", attemptID, "lines", report.Restored)
	}
	sendProgress(o.progress, restoreDoneUpdate(state, attemptID, report))
	return report
}
