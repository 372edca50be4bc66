package handlers

import "net/http"

type Middleware func(http.Handler) http.Handler

// Routes wires the public API. auth guards every user-facing route; the
// payment callback authenticates with its own shared token. Any extra
// middleware (rate limiting) runs after auth so it can key on the user.
func Routes(bh *BargainHandler, ph *PaymentHandler, auth Middleware, extra ...Middleware) *http.ServeMux {
	guard := func(h http.HandlerFunc) http.Handler {
		var wrapped http.Handler = h
		for i := len(extra) - 1; i >= 0; i-- {
			wrapped = extra[i](wrapped)
		}
		return auth(wrapped)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /auth/me", guard(bh.HandleMe))
	mux.Handle("PUT /listings/{id}", guard(bh.HandlePutListing))

	mux.Handle("POST /bargain/sessions", guard(bh.HandleCreate))
	mux.Handle("GET /bargain/sessions", guard(bh.HandleList))
	mux.Handle("GET /bargain/sessions/{id}", guard(bh.HandleGet))
	mux.Handle("POST /bargain/sessions/{id}/messages", guard(bh.HandleMessage))
	mux.Handle("POST /bargain/sessions/{id}/counter", guard(bh.HandleCounter))
	mux.Handle("PUT /bargain/sessions/{id}/accept", guard(bh.HandleAccept))
	mux.Handle("PUT /bargain/sessions/{id}/reject", guard(bh.HandleReject))
	mux.Handle("POST /bargain/sessions/{id}/order", guard(ph.HandleBridge))

	mux.Handle("GET /orders/{id}", guard(ph.HandleGetOrder))
	mux.HandleFunc("POST /orders/{id}/paid", ph.HandlePaid)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
