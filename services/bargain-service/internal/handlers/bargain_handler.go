package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"farmart-bargain/services/bargain-service/internal/bargain"
	"farmart-bargain/services/bargain-service/internal/domain"

	"github.com/shopspring/decimal"
)

type BargainHandler struct {
	Service *bargain.Service
	Logger  *slog.Logger
}

type createSessionRequest struct {
	AnimalID    string          `json:"animal_id"`
	OfferAmount decimal.Decimal `json:"offer_amount"`
	Message     string          `json:"message"`
}

type counterRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type listingRequest struct {
	Price decimal.Decimal `json:"price"`
}

type sessionResponse struct {
	Session  *domain.NegotiationSession `json:"session"`
	Messages []*domain.Message          `json:"messages,omitempty"`
}

func (h *BargainHandler) writeSession(w http.ResponseWriter, status int, s *domain.NegotiationSession, msgs []*domain.Message) {
	w.Header().Set("ETag", etag(s.Version))
	writeJSON(w, status, sessionResponse{Session: s, Messages: msgs})
}

// HandleCreate handles POST /bargain/sessions.
func (h *BargainHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var req createSessionRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	s, err := h.Service.CreateSession(r.Context(), userID, bargain.CreateSessionInput{
		AnimalID:    req.AnimalID,
		OfferAmount: req.OfferAmount,
		Message:     req.Message,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.writeSession(w, http.StatusCreated, s, nil)
}

// HandleList handles GET /bargain/sessions.
func (h *BargainHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	sessions, err := h.Service.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleGet handles GET /bargain/sessions/{id}[?since=<seq>].
func (h *BargainHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		if since, err = strconv.ParseInt(v, 10, 64); err != nil || since < 0 {
			writeError(w, h.Logger, errInvalid("since must be a non-negative message sequence"))
			return
		}
	}
	s, msgs, err := h.Service.Get(r.Context(), userID, r.PathValue("id"), since)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.Header().Set("ETag", etag(s.Version))
	writeJSON(w, http.StatusOK, sessionResponse{Session: s, Messages: nonNil(msgs)})
}

// HandleMessage handles POST /bargain/sessions/{id}/messages.
func (h *BargainHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var req messageRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	msgs, err := h.Service.SendMessage(r.Context(), userID, r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"messages": nonNil(msgs)})
}

// HandleAccept handles PUT /bargain/sessions/{id}/accept.
func (h *BargainHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	userID, version, err := mutationPreamble(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	s, err := h.Service.Accept(r.Context(), userID, r.PathValue("id"), version)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.writeSession(w, http.StatusOK, s, nil)
}

// HandleCounter handles POST /bargain/sessions/{id}/counter.
func (h *BargainHandler) HandleCounter(w http.ResponseWriter, r *http.Request) {
	userID, version, err := mutationPreamble(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var req counterRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	s, err := h.Service.Counter(r.Context(), userID, r.PathValue("id"), bargain.CounterInput{
		Amount:    req.Amount,
		Message:   req.Message,
		IfVersion: version,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.writeSession(w, http.StatusOK, s, nil)
}

// HandleReject handles PUT /bargain/sessions/{id}/reject. The body is optional.
func (h *BargainHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	userID, version, err := mutationPreamble(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var req rejectRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	s, err := h.Service.Reject(r.Context(), userID, r.PathValue("id"), req.Reason, version)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.writeSession(w, http.StatusOK, s, nil)
}

// HandlePutListing handles PUT /listings/{id}; the caller becomes the farmer.
func (h *BargainHandler) HandlePutListing(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var req listingRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	l, err := h.Service.PutListing(r.Context(), userID, r.PathValue("id"), req.Price)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": l})
}

// HandleMe handles GET /auth/me.
func (h *BargainHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func mutationPreamble(r *http.Request) (string, int, error) {
	userID, err := caller(r)
	if err != nil {
		return "", 0, err
	}
	version, err := ifMatch(r)
	if err != nil {
		return "", 0, err
	}
	return userID, version, nil
}

func nonNil(msgs []*domain.Message) []*domain.Message {
	if msgs == nil {
		return []*domain.Message{}
	}
	return msgs
}
