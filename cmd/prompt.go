package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/tasks"
)

func validateMethodID(s string) error {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return fmt.Errorf("enter a positive payment method id")
	}
	return nil
}

// promptPayment asks for a payment method id and whether to keep it on file.
func promptPayment(ctx context.Context, checkout models.CheckoutContext, cart *models.Cart) (tasks.PaymentChoice, error) {
	var raw string
	var save bool

	title := "Payment method"
	if cart != nil {
		title = fmt.Sprintf("Payment method for %d items ($%s)", cart.LineCount, cart.Total)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder("payment method id").
				Validate(validateMethodID).
				Value(&raw),
			huh.NewConfirm().
				Title("Save this payment method?").
				Value(&save),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return tasks.PaymentChoice{}, fmt.Errorf("prompt failed: %w", err)
	}

	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return tasks.PaymentChoice{}, fmt.Errorf("%w: payment method %q", shared.ErrInvalidInput, raw)
	}
	return tasks.PaymentChoice{MethodID: id, Saved: save}, nil
}

// promptPassword asks for the account password without echoing it.
func promptPassword(ctx context.Context, email string) (string, error) {
	var password string

	input := huh.NewInput().
		Title("Password for " + email).
		EchoMode(huh.EchoModePassword).
		Value(&password)

	form := huh.NewForm(huh.NewGroup(input))
	if err := form.RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	if password == "" {
		return "", fmt.Errorf("%w: password", shared.ErrMissingArgument)
	}
	return password, nil
}
