// Package timeline keeps the append-only message log of a negotiation: chat
// between the two parties interleaved with the offer events the engine
// records.
package timeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/ids"

	"github.com/shopspring/decimal"
)

type Timeline struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
	maxLen   int
	now      func() time.Time
	newID    func() string
}

func New(sessions domain.SessionRepository, messages domain.MessageRepository, maxLen int) *Timeline {
	if maxLen <= 0 {
		maxLen = domain.DefaultMaxMessageLength
	}
	return &Timeline{
		sessions: sessions,
		messages: messages,
		maxLen:   maxLen,
		now:      time.Now,
		newID:    ids.NewMessageID,
	}
}

// Append adds a chat message from one of the session's parties. Closed
// (rejected or completed) sessions take no further messages.
func (t *Timeline) Append(ctx context.Context, sessionID, senderID string, role domain.Role, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}
	if err := t.CheckLength(content); err != nil {
		return nil, err
	}

	s, err := t.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: session is %s", domain.ErrSessionTerminal, s.Status)
	}
	if role != domain.RoleBuyer && role != domain.RoleFarmer {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	if s.PartyID(role) != senderID {
		return nil, domain.ErrForbidden
	}

	msg := &domain.Message{
		ID:         t.newID(),
		SessionID:  sessionID,
		SenderID:   senderID,
		SenderRole: role,
		Kind:       domain.KindChat,
		Content:    content,
		CreatedAt:  t.now(),
	}
	if err := t.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CheckLength fails with ErrInvalidInput when user-supplied text would not
// fit in one message. Callers check notes before changing any state.
func (t *Timeline) CheckLength(content string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(content)); n > t.maxLen {
		return fmt.Errorf("%w: message is %d characters, limit is %d", domain.ErrInvalidInput, n, t.maxLen)
	}
	return nil
}

// ListSince returns the messages after cursor (a Seq value) in append order.
// A zero cursor returns the whole log.
func (t *Timeline) ListSince(ctx context.Context, sessionID string, cursor int64) ([]*domain.Message, error) {
	if _, err := t.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	if cursor < 0 {
		cursor = 0
	}
	return t.messages.ListSince(ctx, sessionID, cursor)
}

// Record writes an offer or system event for s. Unlike Append it is allowed
// on closed sessions, since the closing action itself is recorded. Content
// past the length limit is cut; user text is expected to have passed
// CheckLength already.
func (t *Timeline) Record(ctx context.Context, s *domain.NegotiationSession, role domain.Role, kind domain.MessageKind, amount decimal.NullDecimal, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > t.maxLen {
		content = string([]rune(content)[:t.maxLen])
	}
	msg := &domain.Message{
		ID:         t.newID(),
		SessionID:  s.ID,
		SenderID:   s.PartyID(role),
		SenderRole: role,
		Kind:       kind,
		Amount:     amount,
		Content:    content,
		CreatedAt:  t.now(),
	}
	if kind == domain.KindSystem {
		msg.SenderID = ""
	}
	if err := t.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
