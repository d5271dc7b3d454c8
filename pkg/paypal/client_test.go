package paypal

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	c, err := NewClient(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      srv.URL,
		BrandName:    "Lavender Moon Villas",
	})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	c, err := NewClient(Config{ClientID: "a", ClientSecret: "b"})
	require.NoError(t, err)
	assert.Equal(t, SandboxBaseURL, c.baseURL)
	assert.Equal(t, "USD", c.Currency())

	c, err = NewClient(Config{ClientID: "a", ClientSecret: "b", Environment: "live"})
	require.NoError(t, err)
	assert.Equal(t, LiveBaseURL, c.baseURL)
}

func TestCreateOrder(t *testing.T) {
	srv, tokenCalls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/checkout/orders", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body["intent"])
		unit := body["purchase_units"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "LMV22927-250601-01", unit["reference_id"])
		amount := unit["amount"].(map[string]interface{})
		assert.Equal(t, "345.00", amount["value"])
		assert.Equal(t, "USD", amount["currency_code"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[
			{"href":"https://api.sandbox.paypal.com/v2/checkout/orders/5O190127TN364715T","rel":"self"},
			{"href":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve"}]}`))
	})
	c := newTestClient(t, srv)

	order, err := c.CreateOrder(context.Background(), &CreateOrderRequest{
		ReferenceID: "LMV22927-250601-01",
		Description: "Reservation LMV22927-250601-01",
		Amount:      345,
		ReturnURL:   "https://villas.example.com/api/v1/payments/paypal/callback",
		CancelURL:   "https://villas.example.com/book/payment/failed",
		GivenName:   "Ada",
		Surname:     "Lovelace",
		Email:       "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", order.ID)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", order.ApprovalURL())

	// 第二次调用复用令牌
	_, err = c.CreateOrder(context.Background(), &CreateOrderRequest{Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))
}

func TestCaptureOrder(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders/ORDER-1/capture", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"reference_id":"LMV22927-250601-01",
			"payments":{"captures":[{"id":"CAP-9","status":"COMPLETED","amount":{"currency_code":"USD","value":"345.00"}}]}}]}`))
	})
	c := newTestClient(t, srv)

	order, err := c.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCompleted, order.Status)
	capture := order.FirstCapture()
	require.NotNil(t, capture)
	assert.Equal(t, "CAP-9", capture.ID)
	assert.Equal(t, 345.0, capture.Amount.Float())
}

func TestCaptureOrder_APIError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"ORDER_ALREADY_CAPTURED","debug_id":"abc"}`))
	})
	c := newTestClient(t, srv)

	_, err := c.CaptureOrder(context.Background(), "ORDER-1")
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "UNPROCESSABLE_ENTITY", apiErr.Name)
	assert.True(t, apiErr.IsClientError())
}

func TestOrderHelpers(t *testing.T) {
	var o Order
	assert.Empty(t, o.ApprovalURL())
	assert.Nil(t, o.FirstCapture())
	assert.Equal(t, 0.0, (*Money)(nil).Float())
	assert.Equal(t, "10.50", FormatAmount(10.5))
}
