package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/cart"
	"github.com/desertthunder/tuneshop/internal/services"
	"github.com/desertthunder/tuneshop/internal/session"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/tasks"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 64

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	api         *services.APIService
	auth        *services.AuthService
	tokens      *session.TokenStore
	coordinator *session.Coordinator
	carts       *services.CartService
	cart        *cart.Store
	checkout    *tasks.Orchestrator
	progress    chan tasks.ProgressUpdate
	selector    tasks.PaymentSelector
	google      services.OAuthService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// Credentials persists the session across runs; nil keeps it in memory only.
	Credentials session.DurableStore
	// Checkouts holds the checkout context for the browsing session; nil keeps it in memory only.
	Checkouts tasks.SessionStore
	// Selector picks a payment method when none was given on the command line.
	Selector tasks.PaymentSelector
	// Google overrides the provider built from [shared.GoogleConfig].
	Google services.OAuthService
}

// NewRunner creates a new Runner and wires the session and checkout layers together.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Selector == nil {
		opts.Selector = tasks.PaymentSelectorFunc(promptPayment)
	}

	tokens := session.NewTokenStore(opts.Credentials, opts.Logger)
	api := services.NewAPIService(services.APIOptions{
		BaseURL:    opts.Config.API.BaseURL,
		HTTPClient: opts.HTTPClient,
		Tokens:     tokens,
		RateLimit:  opts.Config.API.RateLimit,
		Logger:     opts.Logger,
	})
	auth := services.NewAuthService(api, opts.Logger)

	coordinator := session.NewCoordinator(session.CoordinatorOpts{
		Tokens:    tokens,
		Refresher: auth,
		Timeout:   opts.Config.Auth.RefreshTimeout.Duration,
		Logger:    opts.Logger,
	})
	api.UseRenewer(coordinator)

	carts := services.NewCartService(api)
	store := cart.NewStore(carts, opts.Logger)
	coordinator.OnForcedLogout(func(ctx context.Context) {
		store.Reset()
	})

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	checkout := tasks.NewOrchestrator(tasks.OrchestratorOpts{
		Contexts:  tasks.NewContextStore(opts.Checkouts),
		Cart:      store,
		Finalizer: carts,
		Logger:    opts.Logger,
		Progress:  progress,
	})

	return &Runner{
		config:      opts.Config,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		api:         api,
		auth:        auth,
		tokens:      tokens,
		coordinator: coordinator,
		carts:       carts,
		cart:        store,
		checkout:    checkout,
		progress:    progress,
		selector:    opts.Selector,
		google:      opts.Google,
	}
}

// Restore loads the persisted session and any checkout left in progress.
func (r *Runner) Restore(ctx context.Context) error {
	if err := r.tokens.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if err := r.checkout.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume checkout: %w", err)
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, cartCommand, checkoutCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) requireSession() error {
	if !r.tokens.IsAuthenticated() {
		return fmt.Errorf("%w: run 'tuneshop auth login' first", shared.ErrNotAuthenticated)
	}
	return nil
}

// watchProgress prints checkout progress until the returned stop function is called.
func (r *Runner) watchProgress(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case update := <-r.progress:
				r.writeProgress(update)
			case <-ctx.Done():
				for {
					select {
					case update := <-r.progress:
						r.writeProgress(update)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) writeProgress(update tasks.ProgressUpdate) {
	line := update.Message
	if update.Total > 0 {
		line = fmt.Sprintf("[%d/%d] %s", update.Step, update.Total, update.Message)
	}
	r.writePlain("%s %s\n", styles.Help("→"), line)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", styles.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
