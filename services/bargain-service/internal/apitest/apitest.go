// Package apitest runs the bargain API in-process over the memory store, for
// tests of its HTTP clients.
package apitest

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"farmart-bargain/services/bargain-service/internal/bargain"
	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/handlers"
	"farmart-bargain/services/bargain-service/internal/middleware"
	"farmart-bargain/services/bargain-service/internal/orderbridge"
	"farmart-bargain/services/bargain-service/internal/repository"
	"farmart-bargain/services/bargain-service/internal/timeline"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Tokens accepted by the test server.
const (
	BuyerToken    = "tok-buyer"
	FarmerToken   = "tok-farmer"
	CallbackToken = "tok-callback"

	BuyerID  = "buyer-1"
	FarmerID = "farmer-1"
	AnimalID = "cow-1"
)

type Server struct {
	*httptest.Server
	Store  *repository.MemoryStore
	Bridge *orderbridge.Bridge
}

// NewServer serves the full route table with one listing, AnimalID priced
// at KES 10000 by FarmerID. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	require.NoError(t, store.Listings().PutListing(context.Background(), &domain.Listing{
		AnimalID: AnimalID, FarmerID: FarmerID, Price: decimal.NewFromInt(10000),
	}))
	tl := timeline.New(store.Sessions(), store.Messages(), 0)
	svc, err := bargain.NewService(store.Sessions(), store.Listings(), tl, nil, domain.DefaultOfferPolicy(), logger)
	require.NoError(t, err)
	bridge := orderbridge.New(store.Sessions(), store.Orders(), store.Listings(), tl, nil, logger)
	verifier := middleware.StaticTokenVerifier{BuyerToken: BuyerID, FarmerToken: FarmerID}

	srv := httptest.NewServer(handlers.Routes(
		&handlers.BargainHandler{Service: svc, Logger: logger},
		&handlers.PaymentHandler{Bridge: bridge, CallbackToken: CallbackToken, Logger: logger},
		middleware.Auth(verifier, logger),
	))
	t.Cleanup(srv.Close)
	return &Server{Server: srv, Store: store, Bridge: bridge}
}
