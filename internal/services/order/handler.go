package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/logger"
	"fulfillment-system/internal/models"
	"fulfillment-system/internal/storage"
)

// Handler handles HTTP requests for the customer order endpoints
type Handler struct {
	service *Service
	users   storage.UserStore
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, users storage.UserStore, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		users:   users,
		logger:  log,
	}
}

// Register sets up the customer-facing HTTP routes
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/orders", h.WithLogging(h.CreateOrder))
	mux.HandleFunc("/orders/update", h.WithLogging(h.UpdateOrder))
	mux.HandleFunc("/orders/pay", h.WithLogging(h.PayOrder))
	mux.HandleFunc("/orders/cancel", h.WithLogging(h.CancelOrder))
	mux.HandleFunc("/orders/history", h.WithLogging(h.OrderHistory))
	mux.HandleFunc("/orders/", h.WithLogging(h.GetOrder))
	mux.HandleFunc("/dishes/", h.WithLogging(h.GetDish))
	mux.HandleFunc("/health", h.WithLogging(h.HealthCheck))
}

// CreateOrder handles POST /orders requests
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodPost {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	user, ok := h.userFromRequest(w, r, requestID)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if !h.decodeBody(w, r, &req, requestID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.Create(ctx, &req, user, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusCreated, order)
}

// UpdateOrder handles POST /orders/update requests
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodPost {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	user, ok := h.userFromRequest(w, r, requestID)
	if !ok {
		return
	}

	var req models.UpdateOrderRequest
	if !h.decodeBody(w, r, &req, requestID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.UpdateItems(ctx, &req, user, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// PayOrder handles POST /orders/pay requests
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodPost {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	user, ok := h.userFromRequest(w, r, requestID)
	if !ok {
		return
	}

	var req models.PayOrderRequest
	if !h.decodeBody(w, r, &req, requestID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.Pay(ctx, &req, user, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// CancelOrder handles POST /orders/cancel requests
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodPost {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	user, ok := h.userFromRequest(w, r, requestID)
	if !ok {
		return
	}

	var req models.CancelOrderRequest
	if !h.decodeBody(w, r, &req, requestID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.Cancel(ctx, &req, user, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// OrderHistory handles GET /orders/history requests
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodGet {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	user, ok := h.userFromRequest(w, r, requestID)
	if !ok {
		return
	}

	orders, err := h.service.History(r.Context(), user)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetOrder handles GET /orders/{id} requests
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodGet {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	orderID := strings.TrimPrefix(r.URL.Path, "/orders/")
	if orderID == "" || strings.Contains(orderID, "/") {
		h.writeErrorResponse(w, http.StatusNotFound, "Order not found", requestID)
		return
	}

	user, ok := h.userFromRequest(w, r, requestID)
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), orderID, user)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// GetDish handles GET /dishes/{id} requests. The menu is public, so no
// identity header is required here.
func (h *Handler) GetDish(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodGet {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	dishID := strings.TrimPrefix(r.URL.Path, "/dishes/")
	if dishID == "" || strings.Contains(dishID, "/") {
		h.writeErrorResponse(w, http.StatusNotFound, "Dish not found", requestID)
		return
	}

	dish, err := h.service.Dish(r.Context(), dishID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusOK, dish)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := h.service.HealthCheck(ctx)

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"healthy":   healthy,
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	h.writeJSON(w, status, response)
}

// userFromRequest resolves the acting user from the identity header set by
// the upstream gateway. Token verification happens before requests reach
// this service.
func (h *Handler) userFromRequest(w http.ResponseWriter, r *http.Request, requestID string) (models.User, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeErrorResponse(w, http.StatusUnauthorized, "Missing X-User-ID header", requestID)
		return models.User{}, false
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, requestID)
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, requestID string) bool {
	if r.Header.Get("Content-Type") != "application/json" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Content-Type must be application/json", requestID)
		return false
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", "", err, nil)
	}
}

// writeError maps a service error to its stable HTTP status
func (h *Handler) writeError(w http.ResponseWriter, err error, requestID string) {
	h.writeErrorResponse(w, StatusForKind(apperr.KindOf(err)), err.Error(), requestID)
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}

	json.NewEncoder(w).Encode(errorResponse)
}

// StatusForKind maps an error kind to its HTTP status code
func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidInput, apperr.KindIllegalTransition:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// WithLogging adds request logging middleware
func (h *Handler) WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": duration.Milliseconds(),
			})
	}
}

type requestIDKey struct{}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return logger.GenerateRequestID()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
