// Package cli provides bargainctl, the command-line client for negotiations.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"farmart-bargain/services/bargain-service/internal/client"
	"farmart-bargain/services/bargain-service/internal/config"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

type app struct {
	apiURL       string
	tokenFile    string
	pollInterval time.Duration

	logger *slog.Logger
	auth   *client.AuthSession
	api    *client.Client
}

// NewRootCmd builds the bargainctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cfg, cfgErr := config.LoadClient()

	root := &cobra.Command{
		Use:   "bargainctl",
		Short: "Negotiate livestock prices on Farmart",
		Long: `bargainctl talks to the Farmart bargain service: open negotiations on
listed animals, counter, accept or reject offers, chat, and turn an agreed
price into an order.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}
			if a.tokenFile == "" {
				a.tokenFile = client.DefaultTokenPath()
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: config.ParseLogLevel(cfg.LogLevel),
			}))
			a.auth = client.NewAuthSession(a.tokenFile)
			a.api = client.New(a.apiURL, a.auth)

			if cmd.Name() == "login" || cmd.Name() == "logout" {
				return nil
			}
			if err := a.auth.Init(cmd.Context(), a.api); err != nil {
				a.logger.Warn("could not verify saved token", "error", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.apiURL, "api", cfg.APIURL, "bargain service base URL")
	root.PersistentFlags().StringVar(&a.tokenFile, "token-file", cfg.TokenFile, "where the login token is kept (default ~/.farmart/token.json)")
	root.PersistentFlags().DurationVar(&a.pollInterval, "interval", cfg.PollInterval, "poll interval for watch")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.sessionsCmd(),
		a.showCmd(),
		a.offerCmd(),
		a.counterCmd(),
		a.acceptCmd(),
		a.rejectCmd(),
		a.sayCmd(),
		a.orderCmd(),
		a.listingCmd(),
		a.watchCmd(),
	)
	return root
}

// Execute runs bargainctl and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

// requireLogin is used by every command that acts for the user.
func (a *app) requireLogin(*cobra.Command, []string) error {
	if !a.auth.LoggedIn() {
		return fmt.Errorf("not signed in: run bargainctl login <token>")
	}
	return nil
}
