package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/internal/repository"
	"github.com/utafrali/order-service/internal/service"
	apperrors "github.com/utafrali/order-service/pkg/errors"
	"github.com/utafrali/order-service/pkg/httputil"
	"github.com/utafrali/order-service/pkg/pagination"
	"github.com/utafrali/order-service/pkg/validator"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateOrderRequest is the JSON request body for creating an order.
// Quantity, totalPrice and status are checked by the service so that every
// caller gets the same rules.
type CreateOrderRequest struct {
	MemberID   int64            `json:"memberId" validate:"required,gt=0"`
	ProductID  int64            `json:"productId" validate:"required,gt=0"`
	Quantity   int              `json:"quantity"`
	TotalPrice *decimal.Decimal `json:"totalPrice"`
	Status     *string          `json:"status"`
}

// UpdateOrderRequest is the JSON request body for a partial update. Absent
// fields are left unchanged.
type UpdateOrderRequest struct {
	MemberID   *int64           `json:"memberId" validate:"omitnil,gt=0"`
	ProductID  *int64           `json:"productId" validate:"omitnil,gt=0"`
	Quantity   *int             `json:"quantity"`
	TotalPrice *decimal.Decimal `json:"totalPrice"`
	Status     *string          `json:"status"`
}

func (r UpdateOrderRequest) patch() domain.OrderPatch {
	return domain.OrderPatch{
		MemberID:   r.MemberID,
		ProductID:  r.ProductID,
		Quantity:   r.Quantity,
		TotalPrice: r.TotalPrice,
		Status:     parseStatus(r.Status),
	}
}

func parseStatus(s *string) *domain.OrderStatus {
	if s == nil {
		return nil
	}
	st := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(*s)))
	return &st
}

// --- Handlers ---

// CreateOrder handles POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		MemberID:   req.MemberID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		TotalPrice: req.TotalPrice,
		Status:     parseStatus(req.Status),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, order)
}

// GetOrder handles GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, order)
}

// ListOrders handles GET /api/orders?page=&size=&sort=field,dir&status=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r, repository.SortFieldNames())
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	filter := repository.OrderFilter{Params: params}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = parseStatus(&v)
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewPage(orders, total, params))
}

// UpdateOrder handles PUT /api/orders/{id}
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.service.UpdateOrder(r.Context(), id.String(), req.patch())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, order)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
