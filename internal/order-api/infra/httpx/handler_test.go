package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/order-api/app"
	"github.com/jcmexdev/order-pipeline/internal/pkg/store/memory"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) CreateOrder(ctx context.Context, draft domain.Draft) (*domain.Order, error) {
	args := m.Called(ctx, draft)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

func (m *mockOrderService) RepublishStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Int(0), args.Error(1)
}

const validBody = `{
	"customerId": "cust-1",
	"customerEmail": "ana@example.com",
	"items": [
		{"productId": "p-1", "name": "Keyboard", "quantity": 2, "price": 10},
		{"productId": "p-2", "name": "Mouse", "quantity": 1, "price": 5}
	],
	"shippingAddress": {"street": "1 Main St", "city": "Springfield", "state": "IL", "zipCode": "62701", "country": "US"}
}`

func serve(t *testing.T, svc *mockOrderService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandler(svc, quiet), quiet)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &mockOrderService{}
	svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(d domain.Draft) bool {
		return d.CustomerID == "cust-1" && len(d.Items) == 2 && d.Total() == 25 && d.ShippingAddress.ZipCode == "62701"
	})).Return(&domain.Order{ID: "ord-1", Status: domain.StatusCreated}, nil).Once()

	rec := serve(t, svc, http.MethodPost, "/orders", validBody)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, CreateOrderResponse{OrderID: "ord-1", Status: domain.StatusCreated}, decode[CreateOrderResponse](t, rec))
	svc.AssertExpectations(t)
}

func TestCreateOrder_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"customerId":`, msgInvalidJSON},
		{"missing customer", `{"customerEmail":"a@b.c","items":[{"productId":"p","name":"n","quantity":1,"price":1}],"shippingAddress":{"street":"s","city":"c","state":"st","zipCode":"z","country":"co"}}`, domain.MissingFieldsMessage},
		{"no items", `{"customerId":"c","customerEmail":"a@b.c","items":[],"shippingAddress":{"street":"s","city":"c","state":"st","zipCode":"z","country":"co"}}`, domain.MissingFieldsMessage},
		{"no address", `{"customerId":"c","customerEmail":"a@b.c","items":[{"productId":"p","name":"n","quantity":1,"price":1}]}`, domain.MissingFieldsMessage},
		{"missing price", `{"customerId":"c","customerEmail":"a@b.c","items":[{"productId":"p","name":"n","quantity":1}],"shippingAddress":{"street":"s","city":"c","state":"st","zipCode":"z","country":"co"}}`, domain.ItemPricingMessage},
		{"missing quantity", `{"customerId":"c","customerEmail":"a@b.c","items":[{"productId":"p","name":"n","price":3}],"shippingAddress":{"street":"s","city":"c","state":"st","zipCode":"z","country":"co"}}`, domain.ItemPricingMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{}
			rec := serve(t, svc, http.MethodPost, "/orders", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode[ErrorResponse](t, rec).Error)
			svc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_DomainValidationIs400(t *testing.T) {
	svc := &mockOrderService{}
	svc.On("CreateOrder", mock.Anything, mock.Anything).
		Return(nil, errors.Join(domain.NewValidationError("items[0].quantity", "Item quantity must be at least 1"))).Once()

	rec := serve(t, svc, http.MethodPost, "/orders", validBody)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Item quantity must be at least 1", decode[ErrorResponse](t, rec).Error)
}

func TestCreateOrder_InfrastructureFailureIs500(t *testing.T) {
	svc := &mockOrderService{}
	svc.On("CreateOrder", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("publish fulfillment request: %w", errors.New("channel not ready"))).Once()

	rec := serve(t, svc, http.MethodPost, "/orders", validBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternalServer, decode[ErrorResponse](t, rec).Error)
}

func TestGetOrder(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tn := domain.TrackingNumberFor("ord-1")
	order := &domain.Order{
		ID:             "ord-1",
		CustomerID:     "cust-1",
		Items:          []domain.Item{{ProductID: "p-1", Name: "Keyboard", Quantity: 2, Price: 10}},
		TotalAmount:    20,
		Status:         domain.StatusShipped,
		PaymentStatus:  domain.PaymentPaid,
		TrackingNumber: &tn,
		ProcessedAt:    &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	svc := &mockOrderService{}
	svc.On("GetOrder", mock.Anything, "ord-1").Return(order, nil).Once()

	rec := serve(t, svc, http.MethodGet, "/orders/ord-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "ord-1", got["id"])
	assert.Equal(t, "SHIPPED", got["status"])
	assert.Equal(t, "PAID", got["paymentStatus"])
	assert.Equal(t, "TRKord-1", got["trackingNumber"])
	assert.Nil(t, got["shippedAt"])
	assert.InDelta(t, 20.0, got["totalAmount"], 0.001)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{}
	svc.On("GetOrder", mock.Anything, "ghost").Return(nil, domain.NewNotFoundError("ghost")).Once()

	rec := serve(t, svc, http.MethodGet, "/orders/ghost", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgOrderNotFound, decode[ErrorResponse](t, rec).Error)
}

func TestHealth(t *testing.T) {
	rec := serve(t, &mockOrderService{}, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "OK"}, decode[HealthResponse](t, rec))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{domain.NewValidationError("order", domain.MissingFieldsMessage), http.StatusBadRequest, domain.MissingFieldsMessage},
		{fmt.Errorf("fetch: %w", domain.NewNotFoundError("x")), http.StatusNotFound, msgOrderNotFound},
		{domain.ErrConflict, http.StatusInternalServerError, msgInternalServer},
		{context.DeadlineExceeded, http.StatusInternalServerError, msgInternalServer},
	}
	for _, tt := range tests {
		status, msg := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.msg, msg, tt.err.Error())
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.FulfillmentRequest) error { return nil }

func TestCreateOrder_OverflowingTotalIs400(t *testing.T) {
	store := memory.New()
	router := NewRouter(NewHandler(app.NewService(store, nopPublisher{}, quiet), quiet), quiet)

	body := `{"customerId":"c","customerEmail":"a@b.c","items":[{"productId":"p","name":"n","quantity":10,"price":1e308}],"shippingAddress":{"street":"s","city":"c","state":"st","zipCode":"z","country":"co"}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Item subtotal is not a valid amount", decode[ErrorResponse](t, rec).Error)

	stored, err := store.ListByStatus(t.Context(), domain.StatusCreated, time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCreateOrder_RejectionsLoggedAtError(t *testing.T) {
	for _, body := range []string{"not json", `{"customerId":"c"}`} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		svc := &mockOrderService{}

		rec := httptest.NewRecorder()
		NewHandler(svc, logger).CreateOrder(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record), body)
		assert.Equal(t, "ERROR", record["level"], body)
		assert.Equal(t, "request failed", record["msg"], body)
		assert.EqualValues(t, http.StatusBadRequest, record["status"], body)
	}
}

func TestWriteJSON_UnencodableValueIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, &domain.Order{ID: "ord-1", TotalAmount: math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternalServer, decode[ErrorResponse](t, rec).Error)
}
