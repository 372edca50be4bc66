package domain

// Kafka topics for negotiation events.
const (
	TopicSessionCreated  = "bargain-created"
	TopicSessionCounter  = "bargain-countered"
	TopicSessionAccepted = "bargain-accepted"
	TopicSessionRejected = "bargain-rejected"
	TopicOrderCreated    = "bargain-order-created"
	TopicSessionComplete = "bargain-completed"
)

// EventPublisher fans negotiation events out to other services. Publishing
// is fire-and-forget; delivery failures are the publisher's to log.
type EventPublisher interface {
	Publish(topic string, message map[string]interface{})
}

type NopPublisher struct{}

func (NopPublisher) Publish(string, map[string]interface{}) {}

// SessionEvent is the common event payload for a session.
func SessionEvent(s *NegotiationSession) map[string]interface{} {
	ev := map[string]interface{}{
		"session_id":    s.ID,
		"animal_id":     s.AnimalID,
		"buyer_id":      s.BuyerID,
		"farmer_id":     s.FarmerID,
		"status":        string(s.Status),
		"current_offer": s.CurrentOffer.String(),
		"version":       s.Version,
	}
	if s.FinalPrice.Valid {
		ev["final_price"] = s.FinalPrice.Decimal.String()
	}
	if s.OrderID != nil {
		ev["order_id"] = *s.OrderID
	}
	return ev
}
