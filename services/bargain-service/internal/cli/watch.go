package cli

import (
	"fmt"
	"strings"

	"farmart-bargain/services/bargain-service/internal/client"
	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/poller"

	"github.com/spf13/cobra"
)

type update struct {
	sessionID string
	view      *client.SessionView
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-id>...",
		Short: "Follow negotiations live until they close",
		Long: `Poll the given negotiations and print new messages and status changes as
they arrive. A session stops being watched once it is rejected or completed,
or when the server does not know it. The command exits when nothing is left
to watch or on Ctrl-C.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			updates := make(chan update, len(args))
			gone := make(chan string, len(args))

			group := poller.NewGroup(a.api, a.pollInterval, a.logger)
			defer group.CloseAll()
			for _, id := range args {
				p := group.Open(ctx, id, func(v *client.SessionView) {
					select {
					case updates <- update{sessionID: id, view: v}:
					default:
						// the next tick brings a complete view anyway
					}
				})
				go func() {
					<-p.Done()
					if p.Gone() {
						gone <- p.SessionID()
					}
				}()
			}

			lastSeq := make(map[string]int64)
			lastVersion := make(map[string]int)
			var missing []string
			for group.Len() > 0 {
				select {
				case <-ctx.Done():
					return nil
				case id := <-gone:
					if group.Has(id) {
						missing = append(missing, id)
						fmt.Fprintf(out, "== %s: no such negotiation\n", id)
						group.Close(id)
					}
				case u := <-updates:
					s := u.view.Session
					if s.Version != lastVersion[u.sessionID] {
						lastVersion[u.sessionID] = s.Version
						fmt.Fprintf(out, "== %s: %s, offer KES %s (v%d)\n", s.ID, s.Status, s.CurrentOffer.StringFixed(2), s.Version)
					}
					for _, m := range u.view.Messages {
						if m.Seq > lastSeq[u.sessionID] {
							printMessages(out, a.auth.UserID(), []*domain.Message{m})
							lastSeq[u.sessionID] = m.Seq
						}
					}
					if s.Status.IsTerminal() {
						group.Close(u.sessionID)
					}
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
