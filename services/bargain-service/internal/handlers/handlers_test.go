package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"farmart-bargain/services/bargain-service/internal/bargain"
	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/middleware"
	"farmart-bargain/services/bargain-service/internal/orderbridge"
	"farmart-bargain/services/bargain-service/internal/repository"
	"farmart-bargain/services/bargain-service/internal/timeline"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackToken = "cb-secret"

type apiFixture struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	require.NoError(t, store.Listings().PutListing(context.Background(), &domain.Listing{
		AnimalID: "cow-1", FarmerID: "farmer-1", Price: decimal.NewFromInt(10000),
	}))
	tl := timeline.New(store.Sessions(), store.Messages(), 0)
	svc, err := bargain.NewService(store.Sessions(), store.Listings(), tl, nil, domain.DefaultOfferPolicy(), logger)
	require.NoError(t, err)
	bridge := orderbridge.New(store.Sessions(), store.Orders(), store.Listings(), tl, nil, logger)

	verifier := middleware.StaticTokenVerifier{
		"tok-buyer":    "buyer-1",
		"tok-farmer":   "farmer-1",
		"tok-stranger": "someone-else",
	}
	mux := Routes(
		&BargainHandler{Service: svc, Logger: logger},
		&PaymentHandler{Bridge: bridge, CallbackToken: callbackToken, Logger: logger},
		middleware.Auth(verifier, logger),
	)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &apiFixture{t: t, server: server}
}

func (f *apiFixture) do(method, path, token, body string, header map[string]string) (*http.Response, map[string]any) {
	f.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	require.NoError(f.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	if len(raw) > 0 {
		require.NoError(f.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func sessionField(body map[string]any, field string) any {
	return body["session"].(map[string]any)[field]
}

func (f *apiFixture) openSession(offer string) string {
	f.t.Helper()
	resp, body := f.do(http.MethodPost, "/bargain/sessions", "tok-buyer",
		`{"animal_id":"cow-1","offer_amount":`+offer+`,"message":"Is this fair?"}`, nil)
	require.Equal(f.t, http.StatusCreated, resp.StatusCode, body)
	return sessionField(body, "id").(string)
}

func TestNegotiationOverHTTP(t *testing.T) {
	f := newAPI(t)

	resp, body := f.do(http.MethodPost, "/bargain/sessions", "tok-buyer", `{"animal_id":"cow-1","offer_amount":8500}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `"1"`, resp.Header.Get("ETag"))
	assert.Equal(t, "pending", sessionField(body, "status"))
	id := sessionField(body, "id").(string)

	resp, body = f.do(http.MethodPost, "/bargain/sessions/"+id+"/counter", "tok-farmer",
		`{"amount":"9200","message":"Meet me at 9200"}`, map[string]string{"If-Match": `"1"`})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "counter", sessionField(body, "status"))
	assert.Equal(t, `"2"`, resp.Header.Get("ETag"))

	resp, body = f.do(http.MethodPut, "/bargain/sessions/"+id+"/accept", "tok-buyer", "", map[string]string{"If-Match": `"1"`})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONCURRENT_MODIFICATION", body["code"])

	resp, body = f.do(http.MethodPut, "/bargain/sessions/"+id+"/accept", "tok-buyer", "", map[string]string{"If-Match": `"2"`})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "accepted", sessionField(body, "status"))
	assert.Equal(t, "9200", sessionField(body, "final_price"))

	resp, body = f.do(http.MethodPost, "/bargain/sessions/"+id+"/order", "tok-buyer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	orderID := body["order_id"].(string)
	require.NotEmpty(t, orderID)

	resp, body = f.do(http.MethodPost, "/bargain/sessions/"+id+"/order", "tok-farmer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, orderID, body["order_id"])

	resp, _ = f.do(http.MethodPost, "/orders/"+orderID+"/paid", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/orders/"+orderID+"/paid", "", "", map[string]string{"X-Callback-Token": callbackToken})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body = f.do(http.MethodGet, "/bargain/sessions/"+id, "tok-farmer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", sessionField(body, "status"))
	assert.Equal(t, orderID, sessionField(body, "order_id"))
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 5)
	assert.Equal(t, "offer", msgs[0].(map[string]any)["kind"])
	assert.Equal(t, "system", msgs[4].(map[string]any)["kind"])

	last := msgs[2].(map[string]any)["seq"].(float64)
	resp, body = f.do(http.MethodGet, "/bargain/sessions/"+id+"?since="+strconv.Itoa(int(last)), "tok-buyer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["messages"].([]any), 2)

	resp, body = f.do(http.MethodGet, "/orders/"+orderID, "tok-buyer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", body["order"].(map[string]any)["state"])
}

func TestOfferOutOfRangeReportsBounds(t *testing.T) {
	f := newAPI(t)

	resp, body := f.do(http.MethodPost, "/bargain/sessions", "tok-buyer", `{"animal_id":"cow-1","offer_amount":4999}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "OFFER_OUT_OF_RANGE", body["code"])
	assert.Equal(t, "5000.00", body["min"])
	assert.Equal(t, "12000.00", body["max"])

	resp, _ = f.do(http.MethodGet, "/bargain/sessions", "tok-buyer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAccessControl(t *testing.T) {
	f := newAPI(t)
	id := f.openSession("9000")

	resp, _ := f.do(http.MethodGet, "/bargain/sessions/"+id, "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := f.do(http.MethodGet, "/bargain/sessions/"+id, "tok-stranger", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["code"])

	resp, body = f.do(http.MethodGet, "/bargain/sessions/missing", "tok-buyer", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", body["code"])

	resp, body = f.do(http.MethodGet, "/auth/me", "tok-farmer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "farmer-1", body["user_id"])

	resp, _ = f.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRejectAndChat(t *testing.T) {
	f := newAPI(t)
	id := f.openSession("9000")

	resp, body := f.do(http.MethodPost, "/bargain/sessions/"+id+"/messages", "tok-farmer", `{"content":"Still interested?"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Len(t, body["messages"].([]any), 2)

	resp, body = f.do(http.MethodPost, "/bargain/sessions/"+id+"/messages", "tok-farmer", `{"content":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	resp, body = f.do(http.MethodPut, "/bargain/sessions/"+id+"/reject", "tok-farmer", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "rejected", sessionField(body, "status"))

	resp, body = f.do(http.MethodPost, "/bargain/sessions/"+id+"/counter", "tok-buyer", `{"amount":9500}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", body["code"])

	resp, body = f.do(http.MethodPost, "/bargain/sessions/"+id+"/messages", "tok-buyer", `{"content":"wait"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SESSION_TERMINAL", body["code"])
}

func TestMalformedRequests(t *testing.T) {
	f := newAPI(t)
	id := f.openSession("9000")

	resp, _ := f.do(http.MethodPost, "/bargain/sessions", "tok-buyer", `{"animal_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/bargain/sessions", "tok-buyer", `{"animal_id":"cow-1","offer_amount":9000,"bogus":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(http.MethodGet, "/bargain/sessions/"+id+"?since=-3", "tok-buyer", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(http.MethodPut, "/bargain/sessions/"+id+"/accept", "tok-farmer", "", map[string]string{"If-Match": "latest"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(http.MethodPost, "/bargain/sessions/"+id+"/order", "tok-buyer", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", body["code"])
}

func TestPutListing(t *testing.T) {
	f := newAPI(t)

	resp, body := f.do(http.MethodPut, "/listings/goat-7", "tok-farmer", `{"price":"4500"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "farmer-1", body["listing"].(map[string]any)["farmer_id"])

	resp, _ = f.do(http.MethodPut, "/listings/goat-7", "tok-buyer", `{"price":"100"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIfMatch(t *testing.T) {
	cases := map[string]int{"": 0, "*": 0, `"4"`: 4, `W/"7"`: 7}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("If-Match", header)
		got, err := ifMatch(req)
		require.NoError(t, err, header)
		assert.Equal(t, want, got, header)
	}
}
