package order

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()

	f := newFixture(t)
	handler := NewHandler(f.service, f.store, f.service.logger)
	mux := http.NewServeMux()
	handler.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, f
}

func doJSON(t *testing.T, method, url, userID string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeOrder(t *testing.T, resp *http.Response) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	return order
}

func TestHandlerCreateOrder(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/orders", "cust-1", models.CreateOrderRequest{
		RestaurantID: "rest-1",
		Items:        map[string]int{"margherita": 2},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	order := decodeOrder(t, resp)
	require.NotEmpty(t, order.ID)
	require.Equal(t, models.StatusCheckout, order.Status)
}

func TestHandlerCreateOrder_MissingIdentity(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/orders", "", models.CreateOrderRequest{RestaurantID: "rest-1"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerCreateOrder_UnknownUser(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/orders", "nobody", models.CreateOrderRequest{RestaurantID: "rest-1"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerCreateOrder_UnknownJSONField(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/orders", "cust-1", map[string]interface{}{
		"restaurant_id": "rest-1",
		"surprise":      true,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerPayOrder_ErrorStatuses(t *testing.T) {
	server, f := newTestServer(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	// unknown order id
	resp := doJSON(t, http.MethodPost, server.URL+"/orders/pay", "cust-1", models.PayOrderRequest{ID: "missing"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// successful payment
	resp = doJSON(t, http.MethodPost, server.URL+"/orders/pay", "cust-1", models.PayOrderRequest{ID: order.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// repeated payment conflicts
	resp = doJSON(t, http.MethodPost, server.URL+"/orders/pay", "cust-1", models.PayOrderRequest{ID: order.ID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandlerGetOrder(t *testing.T) {
	server, f := newTestServer(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	resp := doJSON(t, http.MethodGet, server.URL+"/orders/"+order.ID, "cust-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, order.ID, decodeOrder(t, resp).ID)
}

func TestHandlerOrderHistory_EmptyIsArray(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/orders/history", "cust-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var orders []models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	require.NotNil(t, orders)
	require.Empty(t, orders)
}

func TestHandlerGetDish(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/dishes/margherita", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dish models.Dish
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dish))
	require.Equal(t, "margherita", dish.ID)
	require.Equal(t, "Margherita", dish.Name)
}

func TestHandlerGetDish_Unknown(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/dishes/sushi", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/orders", "cust-1", nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandlerHealthCheck(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindInvalidInput, http.StatusUnprocessableEntity},
		{apperr.KindIllegalTransition, http.StatusUnprocessableEntity},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, StatusForKind(tt.kind), "kind %s", tt.kind)
	}
}
