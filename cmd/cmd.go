// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func productArgs() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: "type"},
		&cli.StringArg{Name: "id"},
	}
}

func paymentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "method",
			Aliases: []string{"m"},
			Usage:   "Payment method id (prompted for when omitted)",
		},
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Keep the payment method on file",
		},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "email",
						Aliases: []string{"e"},
						Usage:   "Account email",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Account password (prompted for when omitted)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "google",
				Usage:  "Sign in with Google in the browser",
				Action: r.AuthGoogle,
			},
			{
				Name:   "logout",
				Usage:  "Revoke the session and clear local credentials",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Check current authentication state",
				Action: r.AuthStatus,
			},
		},
	}
}

// cartCommand handles cart operations
func cartCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "View and edit the cart",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the cart",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown, csv or json",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.CartShow,
			},
			{
				Name:      "add",
				Usage:     "Add a song or album",
				Arguments: productArgs(),
				Action:    r.CartAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a line by its line id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "line"},
				},
				Action: r.CartRemove,
			},
			{
				Name:   "clear",
				Usage:  "Empty the cart",
				Action: r.CartClear,
			},
		},
	}
}

// checkoutCommand handles the purchase workflow
func checkoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "checkout",
		Aliases: []string{"co"},
		Usage:   "Purchase the cart or a single product",
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Begin a checkout of the cart, or of one product when <type> <id> is given",
				Arguments: productArgs(),
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "free",
						Usage: "The product costs nothing",
					},
				},
				Action: r.CheckoutStart,
			},
			{
				Name:   "pay",
				Usage:  "Select the payment method",
				Flags:  paymentFlags(),
				Action: r.CheckoutPay,
			},
			{
				Name:   "finalize",
				Usage:  "Complete the purchase",
				Action: r.CheckoutFinalize,
			},
			{
				Name:   "run",
				Usage:  "Prepare, pay and complete a cart checkout in one step",
				Flags:  paymentFlags(),
				Action: r.CheckoutRun,
			},
			{
				Name:      "buy",
				Usage:     "Buy one product now and keep the rest of the cart",
				Arguments: productArgs(),
				Flags: append(paymentFlags(), &cli.BoolFlag{
					Name:  "free",
					Usage: "The product costs nothing",
				}),
				Action: r.CheckoutBuy,
			},
			{
				Name:  "status",
				Usage: "Show the checkout in progress",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CheckoutStatus,
			},
			{
				Name:   "abandon",
				Usage:  "Drop the checkout in progress",
				Action: r.CheckoutAbandon,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for the interactive cart.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for the cart and checkout",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI owns the terminal",
				Value: "./tmp/tuneshop-tui.log",
			},
		},
		Action: r.TUI,
	}
}
