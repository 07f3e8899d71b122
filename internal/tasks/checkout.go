package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
)

const genericFinalizeMessage = "The purchase could not be completed."

// CartStore is the subset of cart.Store the orchestrator drives.
type CartStore interface {
	Fetch(ctx context.Context) (*models.Cart, error)
	AddLine(ctx context.Context, pt models.ProductType, productID int) (*models.Cart, error)
	Clear(ctx context.Context) error
}

// Finalizer completes the purchase of the whole cart. A nil paymentMethodID means a free checkout.
type Finalizer interface {
	Checkout(ctx context.Context, paymentMethodID *int) (*models.Cart, error)
}

// PaymentChoice is the outcome of payment method selection.
type PaymentChoice struct {
	MethodID int
	Saved    bool
}

// PaymentSelector asks the user for a payment method.
type PaymentSelector interface {
	SelectPayment(ctx context.Context, checkout models.CheckoutContext, cart *models.Cart) (PaymentChoice, error)
}

// PaymentSelectorFunc adapts a function to [PaymentSelector].
type PaymentSelectorFunc func(ctx context.Context, checkout models.CheckoutContext, cart *models.Cart) (PaymentChoice, error)

func (f PaymentSelectorFunc) SelectPayment(ctx context.Context, checkout models.CheckoutContext, cart *models.Cart) (PaymentChoice, error) {
	return f(ctx, checkout, cart)
}

// Receipt describes a confirmed purchase.
type Receipt struct {
	AttemptID       string
	Origin          models.CheckoutOrigin
	PaymentMethodID *int
	Purchased       *models.Cart
	// Restore is set for direct purchases, whose previous cart is put back afterwards.
	Restore *RestoreReport
}

// FinalizeError is returned when the backend rejects the purchase.
//
// It matches both [shared.ErrFinalizeFailed] and the underlying cause.
type FinalizeError struct {
	// Message is the backend's explanation when it sent one, otherwise a generic text.
	Message string
	Err     error
	Restore *RestoreReport
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("%s: %v", shared.ErrFinalizeFailed, e.Err)
}

func (e *FinalizeError) Unwrap() []error {
	return []error{shared.ErrFinalizeFailed, e.Err}
}

// UserMessage returns the text to show the user.
func (e *FinalizeError) UserMessage() string {
	if e.Message == "" {
		return genericFinalizeMessage
	}
	return e.Message
}

// Orchestrator runs the checkout workflow.
//
// Operations are serialized: a second call waits until the first returns.
type Orchestrator struct {
	contexts  *ContextStore
	cart      CartStore
	finalizer Finalizer
	logger    *log.Logger
	progress  chan<- ProgressUpdate

	mu sync.Mutex

	stateMu sync.RWMutex
	state   models.CheckoutState
}

// OrchestratorOpts configures an [Orchestrator].
type OrchestratorOpts struct {
	Contexts  *ContextStore
	Cart      CartStore
	Finalizer Finalizer
	Logger    *log.Logger
	// Progress receives an update for every state change. Sends never block.
	Progress chan<- ProgressUpdate
}

// NewOrchestrator creates an orchestrator in the state of the store's current context, or IDLE.
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	contexts := opts.Contexts
	if contexts == nil {
		contexts = NewContextStore(nil)
	}

	o := &Orchestrator{
		contexts:  contexts,
		cart:      opts.Cart,
		finalizer: opts.Finalizer,
		logger:    logger,
		progress:  opts.Progress,
		state:     models.StateIdle,
	}
	o.syncState()
	return o
}

// Resume reloads the persisted context, e.g. after a restart.
//
// An attempt that was interrupted mid-step resumes as FAILED so it can be retried.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.contexts.Load(ctx); err != nil {
		return err
	}
	o.syncState()
	return nil
}

func (o *Orchestrator) syncState() {
	c, ok := o.contexts.Context()
	state := models.StateIdle
	if ok && c.Status != "" {
		state = c.Status
	}

	switch state {
	case models.StateEnsureContext, models.StateCaptureSnapshot, models.StatePrepareCart, models.StateProcessing:
		if !(state == models.StatePrepareCart && c.IsFree) {
			state = models.StateFailed
		}
	}
	o.setState(state)
}

// State returns the current workflow state. Safe to call while an operation runs.
func (o *Orchestrator) State() models.CheckoutState {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s models.CheckoutState) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.state = s
}

// Context returns the current checkout context.
func (o *Orchestrator) Context() (models.CheckoutContext, bool) {
	return o.contexts.Context()
}

// BeginFromCart starts a new attempt that buys the current cart.
func (o *Orchestrator) BeginFromCart(ctx context.Context) (models.CheckoutContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.begin(ctx, models.CheckoutContext{Origin: models.OriginCart})
}

// BeginDirect starts a new attempt that buys a single product on its own.
func (o *Orchestrator) BeginDirect(ctx context.Context, pt models.ProductType, productID int, isFree bool) (models.CheckoutContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	c := models.CheckoutContext{
		Origin:     models.OriginDirect,
		TargetType: pt,
		TargetID:   productID,
		IsFree:     isFree,
	}
	if err := c.Validate(); err != nil {
		return models.CheckoutContext{}, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	return o.begin(ctx, c)
}

func (o *Orchestrator) begin(ctx context.Context, c models.CheckoutContext) (models.CheckoutContext, error) {
	if _, err := o.abandon(ctx); err != nil {
		o.logger.Warn("could not release previous checkout", "error", err)
	}

	c.AttemptID = shared.GenerateID()
	c.Status = models.StateIdle
	if err := o.contexts.SetContext(ctx, c); err != nil {
		if !errors.Is(err, shared.ErrNotPersisted) {
			return models.CheckoutContext{}, err
		}
		o.logger.Warn("checkout context not persisted", "attempt", c.AttemptID, "error", err)
	}

	o.setState(models.StateIdle)
	o.logger.Info("checkout started", "attempt", c.AttemptID, "origin", c.Origin)
	sendProgress(o.progress, stateUpdate(models.StateIdle, c.AttemptID))

	current, _ := o.contexts.Context()
	return current, nil
}

// Prepare brings the server cart into the shape to be purchased.
//
// Without a context a cart checkout is assumed. Cart checkouts require a non-empty cart.
// Direct checkouts capture the cart once per attempt, empty it and add only the target.
func (o *Orchestrator) Prepare(ctx context.Context) (*models.Cart, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prepare(ctx)
}

func (o *Orchestrator) prepare(ctx context.Context) (*models.Cart, error) {
	if err := o.transition(ctx, models.StateEnsureContext); err != nil {
		return nil, err
	}

	c, ok := o.contexts.Context()
	if !ok {
		c = models.CheckoutContext{
			AttemptID: shared.GenerateID(),
			Origin:    models.OriginCart,
			Status:    models.StateEnsureContext,
		}
		if err := o.save(ctx, c); err != nil {
			return nil, o.fail(ctx, err)
		}
		o.logger.Debug("no checkout context, assuming cart checkout", "attempt", c.AttemptID)
	}

	if c.Origin == models.OriginDirect {
		return o.prepareDirect(ctx, c)
	}
	return o.prepareCart(ctx, c)
}

func (o *Orchestrator) prepareCart(ctx context.Context, c models.CheckoutContext) (*models.Cart, error) {
	if err := o.transition(ctx, models.StatePrepareCart); err != nil {
		return nil, err
	}

	cart, err := o.cart.Fetch(ctx)
	if err != nil {
		return nil, o.fail(ctx, err)
	}
	if cart.IsEmpty() {
		return nil, o.fail(ctx, shared.ErrEmptyCart)
	}
	return cart, o.ready(ctx, c)
}

func (o *Orchestrator) prepareDirect(ctx context.Context, c models.CheckoutContext) (*models.Cart, error) {
	if !c.HasTarget() {
		return nil, o.fail(ctx, fmt.Errorf("%w: no target product", shared.ErrPreparationFailed))
	}
	target := c.Target()

	var current *models.Cart
	if !c.SnapshotCaptured {
		if err := o.transition(ctx, models.StateCaptureSnapshot); err != nil {
			return nil, err
		}

		cart, err := o.cart.Fetch(ctx)
		if err != nil {
			return nil, o.fail(ctx, fmt.Errorf("%w: %w", shared.ErrPreparationFailed, err))
		}

		snapshot := cart.Requests()
		c, err = o.update(ctx, func(next *models.CheckoutContext) {
			next.SnapshotCaptured = true
			next.CartSnapshot = snapshot
		})
		if err != nil {
			return nil, o.fail(ctx, err)
		}
		o.logger.Debug("cart snapshot captured", "attempt", c.AttemptID, "lines", len(snapshot))
		current = cart
	}

	if err := o.transition(ctx, models.StatePrepareCart); err != nil {
		return nil, err
	}

	if current == nil {
		cart, err := o.cart.Fetch(ctx)
		if err != nil {
			return nil, o.fail(ctx, fmt.Errorf("%w: %w", shared.ErrPreparationFailed, err))
		}
		current = cart
	}

	if c.CartStaged && len(current.Lines) == 1 && current.Has(target.ProductType, target.ProductID) {
		return current, o.ready(ctx, c)
	}

	c, err := o.update(ctx, func(next *models.CheckoutContext) { next.CartStaged = true })
	if err != nil {
		return nil, o.fail(ctx, err)
	}

	if !current.IsEmpty() {
		if err := o.cart.Clear(ctx); err != nil {
			o.logger.Warn("could not empty cart before direct purchase", "attempt", c.AttemptID, "error", err)
		}
	}

	added, err := o.cart.AddLine(ctx, target.ProductType, target.ProductID)
	if err != nil {
		return nil, o.fail(ctx, fmt.Errorf("%w: %w", shared.ErrPreparationFailed, err))
	}
	if !added.Has(target.ProductType, target.ProductID) {
		return nil, o.fail(ctx, fmt.Errorf("%w: %s %d missing from cart", shared.ErrPreparationFailed, target.ProductType, target.ProductID))
	}
	return added, o.ready(ctx, c)
}

// ready marks the attempt prepared and moves it to payment selection. Free attempts stay put, ready to process.
func (o *Orchestrator) ready(ctx context.Context, c models.CheckoutContext) error {
	if _, err := o.update(ctx, func(next *models.CheckoutContext) {
		next.Prepared = true
		if c.IsFree {
			next.PaymentMethodID = nil
		}
	}); err != nil {
		return err
	}
	if c.IsFree {
		return nil
	}
	return o.transition(ctx, models.StateSelectPayment)
}

// SelectPayment records the payment method. Nothing is sent to the backend.
func (o *Orchestrator) SelectPayment(ctx context.Context, methodID int, saved bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selectPayment(ctx, methodID, saved)
}

func (o *Orchestrator) selectPayment(ctx context.Context, methodID int, saved bool) error {
	c, ok := o.contexts.Context()
	if !ok {
		return shared.ErrNoCheckout
	}
	if c.IsFree {
		return shared.ErrPaymentNotRequired
	}
	if methodID <= 0 {
		return fmt.Errorf("%w: payment method id %d", shared.ErrInvalidArgument, methodID)
	}

	state := o.State()
	if state != models.StateSelectPayment && state != models.StateFailed {
		return fmt.Errorf("%w: cannot select payment while %s", shared.ErrInvalidTransition, state)
	}

	if _, err := o.update(ctx, func(next *models.CheckoutContext) {
		next.PaymentMethodID = &methodID
		next.PaymentMethodSaved = saved
	}); err != nil {
		return err
	}

	// A failed attempt keeps its state; finalize prepares it again.
	if state == models.StateFailed {
		return nil
	}
	return o.transition(ctx, models.StateSelectPayment)
}

// Finalize purchases the prepared cart.
//
// A paid attempt without a payment method fails with [shared.ErrPaymentMethodMissing]
// before anything is sent. A failed attempt, or a direct one whose cart was restored,
// is prepared again first.
func (o *Orchestrator) Finalize(ctx context.Context) (*Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finalize(ctx)
}

func (o *Orchestrator) finalize(ctx context.Context) (*Receipt, error) {
	c, ok := o.contexts.Context()
	if !ok {
		return nil, shared.ErrNoCheckout
	}
	if !c.IsFree && c.PaymentMethodID == nil {
		return nil, shared.ErrPaymentMethodMissing
	}

	state := o.State()
	prepared := c.Prepared && (state == models.StateSelectPayment || (state == models.StatePrepareCart && c.IsFree))
	if !prepared || (c.Origin == models.OriginDirect && !c.CartStaged) {
		if _, err := o.prepare(ctx); err != nil {
			return nil, err
		}
		c, _ = o.contexts.Context()
	}

	return o.process(ctx, c)
}

func (o *Orchestrator) process(ctx context.Context, c models.CheckoutContext) (*Receipt, error) {
	if err := o.transition(ctx, models.StateProcessing); err != nil {
		return nil, err
	}

	var method *int
	if !c.IsFree {
		method = c.PaymentMethodID
	}

	purchased, err := o.finalizer.Checkout(ctx, method)
	if err != nil {
		return nil, o.failFinalize(ctx, c, err)
	}

	if err := o.transition(ctx, models.StateConfirmed); err != nil {
		return nil, err
	}

	receipt := &Receipt{
		AttemptID:       c.AttemptID,
		Origin:          c.Origin,
		PaymentMethodID: method,
		Purchased:       purchased,
	}

	if c.Origin == models.OriginDirect {
		report := o.restore(ctx, c.AttemptID, c.CartSnapshot)
		receipt.Restore = &report
	} else if err := o.cart.Clear(ctx); err != nil {
		o.logger.Warn("could not empty cart after purchase", "attempt", c.AttemptID, "error", err)
	}

	if err := o.contexts.Clear(ctx); err != nil {
		o.logger.Warn("could not clear checkout context", "attempt", c.AttemptID, "error", err)
	}

	o.logger.Info("purchase confirmed", "attempt", c.AttemptID, "origin", c.Origin)
	return receipt, nil
}

func (o *Orchestrator) failFinalize(ctx context.Context, c models.CheckoutContext, cause error) error {
	o.setFailed(ctx)
	o.logger.Warn("purchase failed", "attempt", c.AttemptID, "error", cause)

	// The session is gone; the staged cart is restored on the next abandon or retry.
	if errors.Is(cause, shared.ErrRefreshFailed) {
		return cause
	}

	var report *RestoreReport
	if c.Origin == models.OriginDirect {
		r := o.restore(ctx, c.AttemptID, c.CartSnapshot)
		report = &r
		if _, err := o.update(ctx, func(next *models.CheckoutContext) { next.CartStaged = false }); err != nil {
			o.logger.Warn("could not record cart restore", "attempt", c.AttemptID, "error", err)
		}
	}

	ferr := &FinalizeError{Message: genericFinalizeMessage, Err: cause, Restore: report}
	var m interface{ UserMessage() string }
	if errors.As(cause, &m) && m.UserMessage() != "" {
		ferr.Message = m.UserMessage()
	}
	return ferr
}

// Run drives an attempt from preparation to a receipt.
//
// selector is consulted for paid attempts only.
func (o *Orchestrator) Run(ctx context.Context, selector PaymentSelector) (*Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cart, err := o.prepare(ctx)
	if err != nil {
		return nil, err
	}

	c, _ := o.contexts.Context()
	if !c.IsFree {
		if selector == nil {
			return nil, shared.ErrPaymentMethodMissing
		}
		choice, err := selector.SelectPayment(ctx, c, cart)
		if err != nil {
			return nil, err
		}
		if err := o.selectPayment(ctx, choice.MethodID, choice.Saved); err != nil {
			return nil, err
		}
	}

	return o.finalize(ctx)
}

// Abandon drops the current attempt. A direct attempt that replaced the cart puts the snapshot back.
func (o *Orchestrator) Abandon(ctx context.Context) (*RestoreReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	report, err := o.abandon(ctx)
	if clearErr := o.contexts.Clear(ctx); clearErr != nil {
		o.logger.Warn("could not clear checkout context", "error", clearErr)
	}
	o.setState(models.StateIdle)
	return report, err
}

func (o *Orchestrator) abandon(ctx context.Context) (*RestoreReport, error) {
	c, ok := o.contexts.Context()
	if !ok {
		return nil, nil
	}

	o.logger.Info("checkout abandoned", "attempt", c.AttemptID, "origin", c.Origin)
	if c.Origin != models.OriginDirect || !c.SnapshotCaptured || !c.CartStaged {
		return nil, nil
	}

	report := o.restore(ctx, c.AttemptID, c.CartSnapshot)
	return &report, nil
}

// transition moves to next, recording it on the context when there is one.
func (o *Orchestrator) transition(ctx context.Context, next models.CheckoutState) error {
	current := o.State()
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, current, next)
	}
	o.enter(ctx, next)
	return nil
}

func (o *Orchestrator) enter(ctx context.Context, next models.CheckoutState) {
	o.setState(next)

	attemptID := ""
	if _, ok := o.contexts.Context(); ok {
		c, err := o.update(ctx, func(c *models.CheckoutContext) {
			c.Status = next
			if next == models.StateFailed || next == models.StateEnsureContext {
				c.Prepared = false
			}
		})
		if err != nil {
			o.logger.Warn("could not record checkout state", "state", next, "error", err)
		}
		attemptID = c.AttemptID
	}

	o.logger.Debug("checkout state", "state", next, "attempt", attemptID)
	sendProgress(o.progress, stateUpdate(next, attemptID))
}

func (o *Orchestrator) setFailed(ctx context.Context) {
	if o.State() == models.StateFailed {
		return
	}
	o.enter(ctx, models.StateFailed)
}

// fail records the attempt as FAILED and returns err.
func (o *Orchestrator) fail(ctx context.Context, err error) error {
	attemptID := ""
	if c, ok := o.contexts.Context(); ok {
		attemptID = c.AttemptID
	}
	o.setFailed(ctx)
	o.logger.Warn("checkout step failed", "attempt", attemptID, "error", err)
	return err
}

func (o *Orchestrator) save(ctx context.Context, c models.CheckoutContext) error {
	err := o.contexts.SetContext(ctx, c)
	if errors.Is(err, shared.ErrNotPersisted) {
		o.logger.Warn("checkout context not persisted", "attempt", c.AttemptID, "error", err)
		return nil
	}
	return err
}

// update applies fn and returns the resulting context. Persistence failures are logged only.
func (o *Orchestrator) update(ctx context.Context, fn func(c *models.CheckoutContext)) (models.CheckoutContext, error) {
	err := o.contexts.UpdateContext(ctx, fn)
	if errors.Is(err, shared.ErrNotPersisted) {
		o.logger.Warn("checkout context not persisted", "error", err)
		err = nil
	}
	c, _ := o.contexts.Context()
	return c, err
}
