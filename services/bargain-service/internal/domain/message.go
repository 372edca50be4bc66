package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MessageKind string

const (
	KindChat    MessageKind = "chat"
	KindOffer   MessageKind = "offer"
	KindCounter MessageKind = "counter"
	KindAccept  MessageKind = "accept"
	KindReject  MessageKind = "reject"
	KindSystem  MessageKind = "system"
)

// DefaultMaxMessageLength bounds chat content, counted in runes.
const DefaultMaxMessageLength = 1000

// Message is one immutable timeline entry. Seq is assigned by the store on
// append and is the ordering key within a session.
type Message struct {
	ID         string              `json:"id"`
	Seq        int64               `json:"seq"`
	SessionID  string              `json:"session_id"`
	SenderID   string              `json:"sender_id"`
	SenderRole Role                `json:"sender_role"`
	Kind       MessageKind         `json:"kind"`
	Amount     decimal.NullDecimal `json:"amount"`
	Content    string              `json:"content"`
	CreatedAt  time.Time           `json:"created_at"`
}
