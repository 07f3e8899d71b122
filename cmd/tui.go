package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive cart and checkout screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	// Logs would interfere with TUI rendering
	logFile, err := shared.LogToFile(r.logger, cmd.String("log-file"))
	if err != nil {
		return err
	}
	defer logFile.Close()

	model := ui.NewModel(ctx, r.cart, r.checkout, r.progress)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
