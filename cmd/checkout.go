package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tuneshop/internal/formatter"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/tasks"
	"github.com/urfave/cli/v3"
)

// paymentSelector returns a fixed choice when --method was given, otherwise the interactive prompt.
func (r *Runner) paymentSelector(cmd *cli.Command) (tasks.PaymentSelector, error) {
	if !cmd.IsSet("method") {
		return r.selector, nil
	}

	id := int(cmd.Int("method"))
	if id <= 0 {
		return nil, fmt.Errorf("%w: --method must be a positive integer", shared.ErrInvalidArgument)
	}
	saved := cmd.Bool("save")
	return tasks.PaymentSelectorFunc(func(context.Context, models.CheckoutContext, *models.Cart) (tasks.PaymentChoice, error) {
		return tasks.PaymentChoice{MethodID: id, Saved: saved}, nil
	}), nil
}

// CheckoutStart begins an attempt and prepares the cart.
//
// With <type> <id> the product is bought on its own and the current cart is set aside.
func (r *Runner) CheckoutStart(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	var err error
	if cmd.StringArg("type") != "" {
		pt, id, perr := parseProduct(cmd)
		if perr != nil {
			return perr
		}
		_, err = r.checkout.BeginDirect(ctx, pt, id, cmd.Bool("free"))
	} else {
		_, err = r.checkout.BeginFromCart(ctx)
	}
	if err != nil {
		return err
	}

	stop := r.watchProgress(ctx)
	prepared, err := r.checkout.Prepare(ctx)
	stop()
	if err != nil {
		return err
	}

	c, _ := r.checkout.Context()
	r.writePlain("\n%d items · total %s\n", prepared.LineCount, styles.Price("$"+prepared.Total.String()))
	if c.IsFree {
		return r.writePlain("Free purchase. Run 'tuneshop checkout finalize' to complete it.\n")
	}
	return r.writePlain("Run 'tuneshop checkout pay --method <id>' and then 'tuneshop checkout finalize'.\n")
}

// CheckoutPay records the payment method for the attempt in progress.
func (r *Runner) CheckoutPay(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}
	if !cmd.IsSet("method") {
		return fmt.Errorf("%w: --method", shared.ErrMissingArgument)
	}

	if err := r.checkout.SelectPayment(ctx, int(cmd.Int("method")), cmd.Bool("save")); err != nil {
		return err
	}
	return r.writePlain("✓ Payment method %d selected\n", cmd.Int("method"))
}

// CheckoutFinalize purchases the prepared cart.
func (r *Runner) CheckoutFinalize(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	stop := r.watchProgress(ctx)
	receipt, err := r.checkout.Finalize(ctx)
	stop()
	return r.writeOutcome(receipt, err)
}

// CheckoutRun drives the attempt in progress, or a new cart checkout, to a receipt.
func (r *Runner) CheckoutRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	selector, err := r.paymentSelector(cmd)
	if err != nil {
		return err
	}

	stop := r.watchProgress(ctx)
	receipt, err := r.checkout.Run(ctx, selector)
	stop()
	return r.writeOutcome(receipt, err)
}

// CheckoutBuy purchases a single product immediately, then puts the previous cart back.
func (r *Runner) CheckoutBuy(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	pt, id, err := parseProduct(cmd)
	if err != nil {
		return err
	}
	free := cmd.Bool("free")
	if free && cmd.IsSet("method") {
		return fmt.Errorf("%w: --method cannot be used with --free", shared.ErrPaymentNotRequired)
	}

	selector, err := r.paymentSelector(cmd)
	if err != nil {
		return err
	}

	if _, err := r.checkout.BeginDirect(ctx, pt, id, free); err != nil {
		return err
	}

	stop := r.watchProgress(ctx)
	receipt, err := r.checkout.Run(ctx, selector)
	stop()
	return r.writeOutcome(receipt, err)
}

// CheckoutStatus shows the attempt in progress for this browsing session.
func (r *Runner) CheckoutStatus(ctx context.Context, cmd *cli.Command) error {
	c, ok := r.checkout.Context()
	if cmd.Bool("json") {
		if !ok {
			return r.writeJSON(map[string]any{"state": r.checkout.State()}, true)
		}
		return r.writeJSON(c, true)
	}

	if !ok {
		return r.writePlain("No checkout in progress.\n")
	}

	r.writePlainHeader("Checkout " + c.AttemptID)
	r.writePlain("State:   %s\n", r.checkout.State())
	r.writePlain("Origin:  %s\n", c.Origin)
	if c.HasTarget() {
		r.writePlain("Product: %s #%d\n", formatter.ProductLabel(c.TargetType), c.TargetID)
	}
	switch {
	case c.IsFree:
		r.writePlain("Payment: not required\n")
	case c.PaymentMethodID != nil:
		r.writePlain("Payment: method %d\n", *c.PaymentMethodID)
	default:
		r.writePlain("Payment: not selected\n")
	}
	if c.SnapshotCaptured {
		r.writePlain("Saved cart: %d lines\n", len(c.CartSnapshot))
	}
	return nil
}

// CheckoutAbandon drops the attempt in progress and restores the cart a direct purchase set aside.
func (r *Runner) CheckoutAbandon(ctx context.Context, cmd *cli.Command) error {
	if _, ok := r.checkout.Context(); !ok {
		return r.writePlain("No checkout in progress.\n")
	}

	stop := r.watchProgress(ctx)
	report, err := r.checkout.Abandon(ctx)
	stop()
	if err != nil {
		return err
	}

	r.writePlain("✓ Checkout abandoned\n")
	if report != nil {
		r.writeRestore(report)
	}
	return nil
}

func (r *Runner) writeOutcome(receipt *tasks.Receipt, err error) error {
	if err != nil {
		var ferr *tasks.FinalizeError
		if errors.As(err, &ferr) && ferr.Restore != nil {
			r.writeRestore(ferr.Restore)
		}
		return err
	}

	data, err := formatter.ExportReceiptToText(receipt)
	if err != nil {
		return err
	}
	r.writePlain("\n%s\n", styles.OK("✓ Purchase confirmed"))
	_, err = r.output.Write(data)
	return err
}

func (r *Runner) writeRestore(report *tasks.RestoreReport) {
	if report.Complete() {
		r.writePlain("Cart restored (%d/%d lines)\n", report.Restored, report.Requested)
		return
	}

	r.writePlain("%s\n", styles.Warn(fmt.Sprintf("Cart partially restored (%d/%d lines)", report.Restored, report.Requested)))
	for _, f := range report.Failed {
		r.writePlain("  - %s #%d: %s\n", formatter.ProductLabel(f.Line.ProductType), f.Line.ProductID, shared.UserMessage(f.Err))
	}
}
