package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (a *app) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List your negotiations",
		Args:    cobra.NoArgs,
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := a.api.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No negotiations yet.")
				return nil
			}
			printSessionTable(cmd.OutOrStdout(), a.auth.UserID(), sessions)
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:     "show <session-id>",
		Short:   "Show a negotiation and its messages",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.api.GetSession(cmd.Context(), args[0], since)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), view.Session)
			fmt.Fprintln(cmd.OutOrStdout())
			printMessages(cmd.OutOrStdout(), a.auth.UserID(), view.Messages)
			return nil
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "only messages after this sequence number")
	return cmd
}

func (a *app) offerCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "offer <animal-id> <amount>",
		Short: "Open a negotiation with an initial offer",
		Long: `Open a negotiation on a listed animal. The offer must be between 50% and
120% of the asking price.

Examples:
  bargainctl offer cow-17 8500
  bargainctl offer cow-17 8500 -m "Can collect on Saturday"`,
		Args:    cobra.ExactArgs(2),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			s, err := a.api.CreateSession(cmd.Context(), args[0], amount, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", s.ID)
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "note sent with the offer")
	return cmd
}

func (a *app) counterCmd() *cobra.Command {
	var message string
	var ifVersion int
	cmd := &cobra.Command{
		Use:     "counter <session-id> <amount>",
		Short:   "Propose a new price",
		Args:    cobra.ExactArgs(2),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			s, err := a.api.Counter(cmd.Context(), args[0], amount, message, ifVersion)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "note sent with the counter-offer")
	cmd.Flags().IntVar(&ifVersion, "if-version", 0, "fail if the session changed since this version")
	return cmd
}

func (a *app) acceptCmd() *cobra.Command {
	var ifVersion int
	cmd := &cobra.Command{
		Use:     "accept <session-id>",
		Short:   "Accept the standing offer",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.api.Accept(cmd.Context(), args[0], ifVersion)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().IntVar(&ifVersion, "if-version", 0, "fail if the session changed since this version")
	return cmd
}

func (a *app) rejectCmd() *cobra.Command {
	var reason string
	var ifVersion int
	cmd := &cobra.Command{
		Use:     "reject <session-id>",
		Short:   "End the negotiation without a deal",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.api.Reject(cmd.Context(), args[0], reason, ifVersion)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the other party")
	cmd.Flags().IntVar(&ifVersion, "if-version", 0, "fail if the session changed since this version")
	return cmd
}

func (a *app) sayCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "say <session-id> <message...>",
		Short:   "Send a chat message",
		Args:    cobra.MinimumNArgs(2),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := a.api.SendMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if n := len(msgs); n > 0 {
				printMessages(cmd.OutOrStdout(), a.auth.UserID(), msgs[n-1:])
			}
			return nil
		},
	}
}

func (a *app) orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "order <session-id>",
		Short:   "Create (or fetch) the order for an accepted negotiation",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.api.BridgeToOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s: KES %s, %s\n", o.ID, o.Amount.StringFixed(2), o.State)
			return nil
		},
	}
}

func (a *app) listingCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list-animal <animal-id> <price>",
		Short:   "List an animal for sale, or change its asking price",
		Args:    cobra.ExactArgs(2),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			l, err := a.api.PutListing(cmd.Context(), args[0], price)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s listed at KES %s\n", l.AnimalID, l.Price.StringFixed(2))
			return nil
		},
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
