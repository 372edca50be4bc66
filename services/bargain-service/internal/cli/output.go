package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"farmart-bargain/services/bargain-service/internal/client"
	"farmart-bargain/services/bargain-service/internal/domain"
)

func printSessionTable(w io.Writer, me string, sessions []*domain.NegotiationSession) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tANIMAL\tROLE\tSTATUS\tASKING\tOFFER\tROUNDS")
	for _, s := range sessions {
		role, _ := s.RoleOf(me)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.AnimalID, role, s.Status,
			s.OriginalPrice.StringFixed(2), s.CurrentOffer.StringFixed(2), s.Rounds)
	}
	tw.Flush()
}

func printSession(w io.Writer, s *domain.NegotiationSession) {
	fmt.Fprintf(w, "Session %s (v%d) on %s\n", s.ID, s.Version, s.AnimalID)
	fmt.Fprintf(w, "  status:  %s\n", s.Status)
	fmt.Fprintf(w, "  asking:  KES %s\n", s.OriginalPrice.StringFixed(2))
	fmt.Fprintf(w, "  offer:   KES %s by %s\n", s.CurrentOffer.StringFixed(2), s.LastOfferBy)
	if s.FinalPrice.Valid {
		fmt.Fprintf(w, "  final:   KES %s\n", s.FinalPrice.Decimal.StringFixed(2))
	}
	if s.OrderID != nil {
		fmt.Fprintf(w, "  order:   %s\n", *s.OrderID)
	}
}

func printMessages(w io.Writer, me string, msgs []*domain.Message) {
	for _, m := range msgs {
		who := string(m.SenderRole)
		if m.SenderID == me {
			who = "you"
		}
		if m.Kind == domain.KindSystem {
			who = "system"
		}
		fmt.Fprintf(w, "[%d] %s %-6s %s\n", m.Seq, m.CreatedAt.Local().Format("Jan 02 15:04"), who+":", m.Content)
	}
}

// describe turns API errors into something a person can act on.
func describe(err error) string {
	var oor *domain.OfferOutOfRangeError
	switch {
	case errors.As(err, &oor):
		return fmt.Sprintf("offer out of range: allowed KES %s to KES %s", oor.Min.StringFixed(2), oor.Max.StringFixed(2))
	case errors.Is(err, domain.ErrSessionNotFound):
		return "no such negotiation; run bargainctl sessions to see yours"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "action not available: " + err.Error()
	case errors.Is(err, domain.ErrConcurrentModification):
		return "the negotiation changed since you last looked; run bargainctl show and try again"
	case errors.Is(err, client.ErrNetworkFailure):
		return "could not reach the bargain service; check your connection and retry"
	case client.IsUnauthorized(err):
		return "your session has expired; run bargainctl login <token>"
	}
	return err.Error()
}
