package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/order-api/core/ports"
)

const (
	msgInvalidJSON    = "Invalid JSON body"
	msgOrderNotFound  = "Order not found"
	msgInternalServer = "Internal server error"
)

// maxBodyBytes caps the size of a create request.
const maxBodyBytes = 1 << 20

// Handler handles incoming HTTP requests for orders.
type Handler struct {
	orderService ports.OrderService
	logger       *slog.Logger
}

func NewHandler(os ports.OrderService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orderService: os,
		logger:       logger.With("component", "http_handler"),
	}
}

// CreateOrder validates the body, stores a CREATED order and enqueues it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("decode create order body: %w", domain.NewValidationError("body", msgInvalidJSON)))
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
	})
}

// GetOrder returns the full order document.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "OK"})
}

// fail is the only place errors are turned into responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	h.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	writeError(w, status, msg)
}

func statusOf(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, msgOrderNotFound
	default:
		return http.StatusInternalServerError, msgInternalServer
	}
}

// writeJSON encodes before writing the header so an unencodable value turns
// into a 500 instead of an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: msgInternalServer})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
