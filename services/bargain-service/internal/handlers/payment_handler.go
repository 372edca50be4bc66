package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"farmart-bargain/services/bargain-service/internal/orderbridge"
)

// PaymentHandler serves the order side of a negotiation: bridging an
// accepted session to an order, reading it back, and the payment
// collaborator's "order paid" callback.
type PaymentHandler struct {
	Bridge        *orderbridge.Bridge
	CallbackToken string
	Logger        *slog.Logger
}

// HandleBridge handles POST /bargain/sessions/{id}/order.
func (h *PaymentHandler) HandleBridge(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	order, err := h.Bridge.BridgeToOrder(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": order.ID, "order": order})
}

// HandleGetOrder handles GET /orders/{id}.
func (h *PaymentHandler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	order, err := h.Bridge.GetOrder(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

// HandlePaid handles POST /orders/{id}/paid, called by the checkout service
// once the M-Pesa payment for the order has cleared.
func (h *PaymentHandler) HandlePaid(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Callback-Token")
	if h.CallbackToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.CallbackToken)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid callback token", Code: "UNAUTHORIZED"})
		return
	}

	orderID := r.PathValue("id")
	if err := h.Bridge.MarkOrderPaid(r.Context(), orderID); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Logger.Info("payment callback applied", "order_id", orderID)
	writeJSON(w, http.StatusAccepted, map[string]string{"order_id": orderID, "state": "paid"})
}
