package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/domain/gateway"
	"github.com/lumora-app/billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeProcessor records the last webhook it was handed.
type fakeProcessor struct {
	last billing.OrderWebhook
	err  error
}

func (p *fakeProcessor) ProcessOrderWebhook(_ context.Context, wh billing.OrderWebhook) error {
	p.last = wh
	return p.err
}

type handlerFixture struct {
	engine      *gin.Engine
	processor   *fakeProcessor
	mockRepo    *billing.MockOrderRepo
	mockTx      *billing.MockTxOrderRepo
	mockGateway *gateway.MockClient
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	f := &handlerFixture{
		processor:   &fakeProcessor{},
		mockRepo:    billing.NewMockOrderRepo(ctrl),
		mockTx:      billing.NewMockTxOrderRepo(ctrl),
		mockGateway: gateway.NewMockClient(ctrl),
	}

	l := logger.New("error")
	reconciler := billing.NewReconcilerService(f.mockRepo, f.mockGateway, nil, l)
	handler := NewBillingHandler(reconciler, f.processor, nil, l)

	f.engine = gin.New()
	f.engine.POST("/billing/confirm-order", handler.ConfirmOrder)
	f.engine.POST("/billing/webhook", handler.Webhook)
	f.engine.GET("/billing/orders/:order_id", handler.GetOrder)
	f.engine.GET("/billing/orders/:order_id/audit", handler.GetOrderAudit)

	return f
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestBillingHandler_Webhook(t *testing.T) {
	t.Run("unparseable body is rejected with received false", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/billing/webhook", "not json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"received": false}`, w.Body.String())
	})

	t.Run("parseable payload is acknowledged with received true", func(t *testing.T) {
		f := newFixture(t)

		body := `{"event_id": "evt-1", "order_id": "ORDER-1", "status": "completed"}`
		w := f.do(http.MethodPost, "/billing/webhook", body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received": true}`, w.Body.String())
		assert.Equal(t, "ORDER-1", f.processor.last.OrderID)
		assert.JSONEq(t, body, string(f.processor.last.Raw))
	})

	t.Run("payload without order id is still acknowledged", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/billing/webhook", `{"event_id": "evt-1", "status": "completed"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received": true}`, w.Body.String())
	})

	t.Run("processing failure asks the provider to retry", func(t *testing.T) {
		f := newFixture(t)
		f.processor.err = errors.New("connection reset")

		w := f.do(http.MethodPost, "/billing/webhook", `{"order_id": "ORDER-1"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"received": false}`, w.Body.String())
	})
}

func TestBillingHandler_ConfirmOrder(t *testing.T) {
	t.Run("missing order_id is a 400", func(t *testing.T) {
		f := newFixture(t)

		for _, body := range []string{`{}`, `{"order_id": ""}`, `broken`} {
			w := f.do(http.MethodPost, "/billing/confirm-order", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
		}
	})

	t.Run("missing gateway credentials is a 500 without internals", func(t *testing.T) {
		f := newFixture(t)
		f.mockGateway.EXPECT().FetchOrder(gomock.Any(), "ORDER-1").
			Return(gateway.Order{}, gateway.ErrMisconfigured)

		w := f.do(http.MethodPost, "/billing/confirm-order", `{"order_id": "ORDER-1"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "key")
	})

	t.Run("gateway status is proxied", func(t *testing.T) {
		f := newFixture(t)
		f.mockGateway.EXPECT().FetchOrder(gomock.Any(), "ORDER-404").
			Return(gateway.Order{}, &gateway.Error{
				Code:       "order_not_found",
				Message:    "no order with this id",
				HTTPStatus: http.StatusNotFound,
			})

		w := f.do(http.MethodPost, "/billing/confirm-order", `{"order_id": "ORDER-404"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "no order with this id")
	})

	t.Run("gateway failure without a status is a 502", func(t *testing.T) {
		f := newFixture(t)
		f.mockGateway.EXPECT().FetchOrder(gomock.Any(), "ORDER-1").
			Return(gateway.Order{}, &gateway.Error{Message: "gateway unreachable"})

		w := f.do(http.MethodPost, "/billing/confirm-order", `{"order_id": "ORDER-1"}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("successful confirmation returns the reconciled result", func(t *testing.T) {
		f := newFixture(t)
		amount := 999.0

		f.mockGateway.EXPECT().FetchOrder(gomock.Any(), "ORDER-1").Return(gateway.Order{
			OrderID:    "ORDER-1",
			RawStatus:  "completed",
			Amount:     &amount,
			Currency:   "EUR",
			CustomInfo: map[string]any{"subscription_interval": "annual"},
		}, nil)
		f.mockRepo.EXPECT().InTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, fn func(billing.TxOrderRepo) error) error {
				return fn(f.mockTx)
			},
		)
		f.mockTx.EXPECT().GetOrderForUpdate(gomock.Any(), "ORDER-1").Return(billing.Order{}, billing.ErrOrderNotFound)
		f.mockTx.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil)

		w := f.do(http.MethodPost, "/billing/confirm-order", `{"order_id": "ORDER-1"}`)

		require.Equal(t, http.StatusOK, w.Code)

		var result billing.ReconciliationResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, billing.StatusCompleted, result.Status)
		require.NotNil(t, result.Interval)
		assert.Equal(t, billing.IntervalAnnual, *result.Interval)
		require.NotNil(t, result.Amount)
		assert.Equal(t, amount, *result.Amount)
		assert.Equal(t, "EUR", result.Currency)
	})

	t.Run("pending is a normal 200", func(t *testing.T) {
		f := newFixture(t)

		f.mockGateway.EXPECT().FetchOrder(gomock.Any(), "ORDER-1").Return(gateway.Order{
			OrderID:   "ORDER-1",
			RawStatus: "pending",
		}, nil)
		f.mockRepo.EXPECT().InTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, fn func(billing.TxOrderRepo) error) error {
				return fn(f.mockTx)
			},
		)
		f.mockTx.EXPECT().GetOrderForUpdate(gomock.Any(), "ORDER-1").Return(billing.Order{}, billing.ErrOrderNotFound)
		f.mockTx.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil)

		w := f.do(http.MethodPost, "/billing/confirm-order", `{"order_id": "ORDER-1"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"pending"`)
		assert.NotContains(t, w.Body.String(), "interval")
	})
}

func TestBillingHandler_GetOrder(t *testing.T) {
	t.Run("stored order is returned", func(t *testing.T) {
		f := newFixture(t)
		f.mockRepo.EXPECT().GetOrder(gomock.Any(), "ORDER-1").Return(billing.Order{
			OrderID:  "ORDER-1",
			Status:   billing.StatusCompleted,
			Currency: "EUR",
		}, nil)

		w := f.do(http.MethodGet, "/billing/orders/ORDER-1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"completed"`)
	})

	t.Run("unknown order is a 404", func(t *testing.T) {
		f := newFixture(t)
		f.mockRepo.EXPECT().GetOrder(gomock.Any(), "ORDER-9").Return(billing.Order{}, billing.ErrOrderNotFound)

		w := f.do(http.MethodGet, "/billing/orders/ORDER-9", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBillingHandler_GetOrderAudit(t *testing.T) {
	t.Run("audit endpoint is 503 without a sink", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodGet, "/billing/orders/ORDER-1/audit", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
