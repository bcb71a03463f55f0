package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/logger"
	"fulfillment-system/internal/models"
	"fulfillment-system/internal/services/order"
	"fulfillment-system/internal/storage"
)

// Handler handles HTTP requests for the worker panel
type Handler struct {
	service *Service
	users   storage.UserStore
	logger  *logger.Logger
}

// NewHandler creates a new worker-panel handler
func NewHandler(service *Service, users storage.UserStore, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		users:   users,
		logger:  log,
	}
}

// Register sets up the worker-panel HTTP routes. The logging middleware is
// shared with the order handler so both surfaces log requests the same way.
func (h *Handler) Register(mux *http.ServeMux, withLogging func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/worker/orders/transition", withLogging(h.TransitionStatus))
	mux.HandleFunc("/worker/orders/", withLogging(h.OrdersByStatus))
}

// TransitionStatus handles POST /worker/orders/transition requests
func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	if r.Method != http.MethodPost {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	worker, ok := h.workerFromRequest(w, r, requestID)
	if !ok {
		return
	}

	var req models.TransitionOrderStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	target, _ := models.ToOrderStatus(req.Status)
	o, err := h.service.TransitionStatus(ctx, req.ID, worker.RestaurantID, target, worker.ID, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

// OrdersByStatus handles GET /worker/orders/{status} requests
func (h *Handler) OrdersByStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	if r.Method != http.MethodGet {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	worker, ok := h.workerFromRequest(w, r, requestID)
	if !ok {
		return
	}

	statusValue := strings.TrimPrefix(r.URL.Path, "/worker/orders/")
	status, err := models.ToOrderStatus(statusValue)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}

	orders, err := h.service.OrdersByStatus(r.Context(), worker.RestaurantID, status)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// workerFromRequest resolves the acting worker and checks role and
// restaurant assignment
func (h *Handler) workerFromRequest(w http.ResponseWriter, r *http.Request, requestID string) (models.User, bool) {
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

	if user.Role != models.RoleWorker {
		h.writeErrorResponse(w, http.StatusForbidden, "Worker role required", requestID)
		return models.User{}, false
	}
	if user.RestaurantID == "" {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, "Worker is not assigned to any restaurant", requestID)
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", "", err, nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, requestID string) {
	h.writeErrorResponse(w, order.StatusForKind(apperr.KindOf(err)), err.Error(), requestID)
}

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
