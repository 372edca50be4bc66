package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"farmart-bargain/services/bargain-service/internal/domain"
)

// MemoryStore keeps every table in process memory. It backs local runs
// (BARGAIN_STORE=memory) and tests, with the same version and sequence rules
// as the Postgres store. Values are copied in and out so callers never share
// state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.NegotiationSession
	messages map[string][]domain.Message
	seq      int64
	orders   map[string]domain.Order
	listings map[string]domain.Listing
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.NegotiationSession),
		messages: make(map[string][]domain.Message),
		orders:   make(map[string]domain.Order),
		listings: make(map[string]domain.Listing),
	}
}

func (m *MemoryStore) Sessions() *MemorySessionRepo { return &MemorySessionRepo{m} }
func (m *MemoryStore) Messages() *MemoryMessageRepo { return &MemoryMessageRepo{m} }
func (m *MemoryStore) Orders() *MemoryOrderRepo     { return &MemoryOrderRepo{m} }
func (m *MemoryStore) Listings() *MemoryListingRepo { return &MemoryListingRepo{m} }

type MemorySessionRepo struct{ *MemoryStore }

func (r *MemorySessionRepo) Create(_ context.Context, s *domain.NegotiationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return domain.ErrConcurrentModification
	}
	if s.Version == 0 {
		s.Version = 1
	}
	r.sessions[s.ID] = copySession(s)
	return nil
}

func (r *MemorySessionRepo) Update(_ context.Context, s *domain.NegotiationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[s.ID]
	if !ok || cur.Version != s.Version {
		return domain.ErrConcurrentModification
	}
	s.Version++
	r.sessions[s.ID] = copySession(s)
	return nil
}

func (r *MemorySessionRepo) Get(_ context.Context, id string) (*domain.NegotiationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := copySession(&cur)
	return &out, nil
}

func (r *MemorySessionRepo) ListByParty(_ context.Context, userID string) ([]*domain.NegotiationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.NegotiationSession
	for _, s := range r.sessions {
		if s.BuyerID == userID || s.FarmerID == userID {
			c := copySession(&s)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

type MemoryMessageRepo struct{ *MemoryStore }

func (r *MemoryMessageRepo) Append(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[msg.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if msg.Kind == domain.KindChat && s.Status.IsTerminal() {
		return fmt.Errorf("%w: session is %s", domain.ErrSessionTerminal, s.Status)
	}
	r.seq++
	msg.Seq = r.seq
	r.messages[msg.SessionID] = append(r.messages[msg.SessionID], *msg)
	return nil
}

func (r *MemoryMessageRepo) ListSince(_ context.Context, sessionID string, afterSeq int64) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.messages[sessionID]
	// seq is strictly increasing within the log
	i := sort.Search(len(log), func(i int) bool { return log[i].Seq > afterSeq })
	out := make([]*domain.Message, 0, len(log)-i)
	for _, msg := range log[i:] {
		c := msg
		out = append(out, &c)
	}
	return out, nil
}

type MemoryOrderRepo struct{ *MemoryStore }

func (r *MemoryOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.SessionID == o.SessionID {
			return domain.ErrConcurrentModification
		}
	}
	if o.Version == 0 {
		o.Version = 1
	}
	r.orders[o.ID] = *o
	return nil
}

func (r *MemoryOrderRepo) Update(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok || cur.Version != o.Version {
		return domain.ErrConcurrentModification
	}
	o.Version++
	r.orders[o.ID] = *o
	return nil
}

func (r *MemoryOrderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (r *MemoryOrderRepo) GetBySession(_ context.Context, sessionID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.SessionID == sessionID {
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *MemoryOrderRepo) FindPaidUnsettled(_ context.Context, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if len(out) >= limit {
			break
		}
		if o.State != domain.OrderPaid {
			continue
		}
		if s, ok := r.sessions[o.SessionID]; ok && s.Status == domain.StatusAccepted {
			c := o
			out = append(out, &c)
		}
	}
	return out, nil
}

type MemoryListingRepo struct{ *MemoryStore }

func (r *MemoryListingRepo) PutListing(_ context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.listings[l.AnimalID]; ok && (cur.Status == domain.ListingSold || cur.FarmerID != l.FarmerID) {
		return domain.ErrListingUnavailable
	}
	c := *l
	c.Status = domain.ListingAvailable
	c.SoldSessionID = nil
	r.listings[l.AnimalID] = c
	return nil
}

func (r *MemoryListingRepo) GetListing(_ context.Context, animalID string) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[animalID]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return &l, nil
}

func (r *MemoryListingRepo) MarkSold(_ context.Context, animalID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[animalID]
	if !ok {
		return domain.ErrListingNotFound
	}
	if l.Status == domain.ListingSold {
		if l.SoldSessionID != nil && *l.SoldSessionID == sessionID {
			return nil
		}
		return domain.ErrListingUnavailable
	}
	l.Status = domain.ListingSold
	l.SoldSessionID = &sessionID
	r.listings[animalID] = l
	return nil
}

func copySession(s *domain.NegotiationSession) domain.NegotiationSession {
	c := *s
	if s.OrderID != nil {
		id := *s.OrderID
		c.OrderID = &id
	}
	return c
}
