package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/lumora-app/billing-service/internal/domain/gateway"
	"github.com/lumora-app/billing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func reconcilerService(t *testing.T) (*ReconcilerService, *MockOrderRepo, *MockTxOrderRepo, *gateway.MockClient) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockRepo := NewMockOrderRepo(ctrl)
	mockTx := NewMockTxOrderRepo(ctrl)
	mockGateway := gateway.NewMockClient(ctrl)

	service := NewReconcilerService(mockRepo, mockGateway, nil, logger.New("error"))

	return service, mockRepo, mockTx, mockGateway
}

func inTransaction(mockRepo *MockOrderRepo, mockTx *MockTxOrderRepo) {
	mockRepo.EXPECT().InTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, fn func(TxOrderRepo) error) error {
			return fn(mockTx)
		},
	)
}

func floatPtr(f float64) *float64 { return &f }

func TestReconcilerService_Confirm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("should reject blank order id before any gateway call", func(t *testing.T) {
		service, _, _, _ := reconcilerService(t)

		for _, orderID := range []string{"", "   "} {
			_, err := service.Confirm(ctx, orderID)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		}
	})

	t.Run("should propagate gateway failures classified", func(t *testing.T) {
		testCases := []struct {
			name       string
			gatewayErr error
		}{
			{name: "misconfigured credentials", gatewayErr: gateway.ErrMisconfigured},
			{name: "gateway rejection", gatewayErr: &gateway.Error{Code: "not_found", Message: "no such order", HTTPStatus: 404}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				// given
				service, _, _, mockGateway := reconcilerService(t)
				mockGateway.EXPECT().FetchOrder(ctx, "ORDER-1").Return(gateway.Order{}, tc.gatewayErr)

				// when
				_, err := service.Confirm(ctx, "ORDER-1")

				// then
				assert.Error(t, err)
				var gwErr *gateway.Error
				if errors.As(tc.gatewayErr, &gwErr) {
					var got *gateway.Error
					assert.ErrorAs(t, err, &got)
					assert.Equal(t, gwErr, got)
				} else {
					assert.ErrorIs(t, err, tc.gatewayErr)
				}
			})
		}
	})

	t.Run("should create and report a first observation", func(t *testing.T) {
		// given
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)

		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-1").Return(gateway.Order{
			OrderID:    "ORDER-1",
			RawStatus:  "completed",
			Amount:     floatPtr(999),
			Currency:   "EUR",
			CustomInfo: map[string]any{"subscription_interval": "annual"},
		}, nil)

		inTransaction(mockRepo, mockTx)
		mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-1").Return(Order{}, ErrOrderNotFound)
		mockTx.EXPECT().CreateOrder(ctx, gomock.Any()).Return(nil)

		// when
		result, err := service.Confirm(ctx, "ORDER-1")

		// then
		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, result.Status)
		assert.Equal(t, floatPtr(999), result.Amount)
		assert.Equal(t, "EUR", result.Currency)
		if assert.NotNil(t, result.Interval) {
			assert.Equal(t, IntervalAnnual, *result.Interval)
		}
	})

	t.Run("should normalize a novel gateway status to unknown", func(t *testing.T) {
		// given
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)

		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-2").Return(gateway.Order{
			OrderID:   "ORDER-2",
			RawStatus: "charged_back",
		}, nil)

		inTransaction(mockRepo, mockTx)
		mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-2").Return(Order{}, ErrOrderNotFound)
		mockTx.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, o Order) error {
			assert.Equal(t, StatusUnknown, o.Status)
			assert.Equal(t, DefaultCurrency, o.Currency)
			return nil
		})

		// when
		result, err := service.Confirm(ctx, "ORDER-2")

		// then
		assert.NoError(t, err)
		assert.Equal(t, StatusUnknown, result.Status)
		assert.Nil(t, result.Interval)
	})

	t.Run("should advance a stored pending order to completed", func(t *testing.T) {
		// given
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)

		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-3").Return(gateway.Order{
			OrderID:   "ORDER-3",
			RawStatus: "completed",
			Currency:  "USD",
		}, nil)

		inTransaction(mockRepo, mockTx)
		mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-3").Return(Order{
			OrderID:  "ORDER-3",
			Status:   StatusPending,
			Currency: "USD",
		}, nil)
		mockTx.EXPECT().UpdateOrder(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, o Order) error {
			assert.Equal(t, StatusCompleted, o.Status)
			return nil
		})

		// when
		result, err := service.Confirm(ctx, "ORDER-3")

		// then
		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, result.Status)
	})

	t.Run("should report the stored status when the poll is stale", func(t *testing.T) {
		// given: gateway replica still says pending, store already completed
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)

		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-4").Return(gateway.Order{
			OrderID:   "ORDER-4",
			RawStatus: "pending",
		}, nil)

		inTransaction(mockRepo, mockTx)
		mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-4").Return(Order{
			OrderID:  "ORDER-4",
			Status:   StatusCompleted,
			Currency: "EUR",
		}, nil)
		mockTx.EXPECT().UpdateOrder(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, o Order) error {
			assert.Equal(t, StatusCompleted, o.Status)
			return nil
		})

		// when
		result, err := service.Confirm(ctx, "ORDER-4")

		// then: the terminal state wins over the stale observation
		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, result.Status)
	})

	t.Run("should merge after losing the create race", func(t *testing.T) {
		// given
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)

		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-5").Return(gateway.Order{
			OrderID:   "ORDER-5",
			RawStatus: "completed",
		}, nil)

		inTransaction(mockRepo, mockTx)
		gomock.InOrder(
			mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-5").Return(Order{}, ErrOrderNotFound),
			mockTx.EXPECT().CreateOrder(ctx, gomock.Any()).Return(ErrOrderAlreadyExists),
			mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-5").Return(Order{
				OrderID:  "ORDER-5",
				Status:   StatusPending,
				Currency: "EUR",
			}, nil),
			mockTx.EXPECT().UpdateOrder(ctx, gomock.Any()).Return(nil),
		)

		// when
		result, err := service.Confirm(ctx, "ORDER-5")

		// then
		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, result.Status)
	})

	t.Run("should fail when the store fails", func(t *testing.T) {
		// given
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)

		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-6").Return(gateway.Order{
			OrderID:   "ORDER-6",
			RawStatus: "completed",
		}, nil)

		inTransaction(mockRepo, mockTx)
		mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-6").Return(Order{}, errors.New("connection reset"))

		// when
		_, err := service.Confirm(ctx, "ORDER-6")

		// then
		assert.Error(t, err)
	})
}

func TestReconcilerService_ProcessOrderWebhook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("should ignore a payload without order id", func(t *testing.T) {
		// given: no repo or gateway expectations at all
		service, _, _, _ := reconcilerService(t)

		// when
		err := service.ProcessOrderWebhook(ctx, OrderWebhook{EventID: "evt-1", Status: "completed"})

		// then
		assert.NoError(t, err)
	})

	t.Run("should treat a duplicate delivery as a no-op", func(t *testing.T) {
		// given: receipt insert hits the unique (order_id, provider_event_id) pair
		service, mockRepo, _, _ := reconcilerService(t)
		mockRepo.EXPECT().CreateEvent(ctx, gomock.Any()).Return(ErrEventAlreadyStored)

		// when
		err := service.ProcessOrderWebhook(ctx, OrderWebhook{
			EventID: "evt-1",
			OrderID: "ORDER-1",
			Status:  "completed",
		})

		// then: acknowledged, gateway never consulted
		assert.NoError(t, err)
	})

	t.Run("should record a trust gap when verification fails", func(t *testing.T) {
		// given: receipt stored, gateway unreachable
		service, mockRepo, _, mockGateway := reconcilerService(t)
		mockRepo.EXPECT().CreateEvent(ctx, gomock.Any()).Return(nil)
		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-1").
			Return(gateway.Order{}, &gateway.Error{Message: "gateway unreachable"})

		// when
		err := service.ProcessOrderWebhook(ctx, OrderWebhook{
			EventID: "evt-2",
			OrderID: "ORDER-1",
			Status:  "completed",
		})

		// then: no status write happened (no InTransaction expectation), no error
		assert.NoError(t, err)
	})

	t.Run("should apply the verified status, not the payload's", func(t *testing.T) {
		// given: payload claims completed, gateway says declined
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)
		mockRepo.EXPECT().CreateEvent(ctx, gomock.Any()).Return(nil)
		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-1").Return(gateway.Order{
			OrderID:   "ORDER-1",
			RawStatus: "declined",
		}, nil)

		inTransaction(mockRepo, mockTx)
		mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-1").Return(Order{
			OrderID:  "ORDER-1",
			Status:   StatusPending,
			Currency: "EUR",
		}, nil)
		mockTx.EXPECT().UpdateOrder(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, o Order) error {
			assert.Equal(t, StatusDeclined, o.Status)
			return nil
		})

		// when
		err := service.ProcessOrderWebhook(ctx, OrderWebhook{
			EventID: "evt-3",
			OrderID: "ORDER-1",
			Status:  "completed",
		})

		// then
		assert.NoError(t, err)
	})

	t.Run("should fail when the receipt cannot be recorded", func(t *testing.T) {
		// given
		service, mockRepo, _, _ := reconcilerService(t)
		mockRepo.EXPECT().CreateEvent(ctx, gomock.Any()).Return(errors.New("connection reset"))

		// when
		err := service.ProcessOrderWebhook(ctx, OrderWebhook{
			EventID: "evt-4",
			OrderID: "ORDER-1",
		})

		// then: surfaced so the receiver answers 500 and the provider retries
		assert.Error(t, err)
	})

	t.Run("should fall back to a generated dedupe key without a provider event id", func(t *testing.T) {
		// given
		service, mockRepo, mockTx, mockGateway := reconcilerService(t)
		mockRepo.EXPECT().CreateEvent(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, e WebhookEvent) error {
			assert.NotEmpty(t, e.ProviderEventID)
			assert.NotEmpty(t, e.Payload)
			return nil
		})
		mockGateway.EXPECT().FetchOrder(ctx, "ORDER-1").Return(gateway.Order{
			OrderID:   "ORDER-1",
			RawStatus: "pending",
		}, nil)

		inTransaction(mockRepo, mockTx)
		mockTx.EXPECT().GetOrderForUpdate(ctx, "ORDER-1").Return(Order{}, ErrOrderNotFound)
		mockTx.EXPECT().CreateOrder(ctx, gomock.Any()).Return(nil)

		// when
		err := service.ProcessOrderWebhook(ctx, OrderWebhook{OrderID: "ORDER-1", Status: "pending"})

		// then
		assert.NoError(t, err)
	})
}

func TestMergeObservation(t *testing.T) {
	t.Parallel()

	annual := IntervalAnnual

	t.Run("fills in amount and interval once known", func(t *testing.T) {
		current := Order{OrderID: "O-1", Status: StatusPending, Currency: "EUR"}
		obs := Order{OrderID: "O-1", Status: StatusPending, Amount: floatPtr(999), Currency: DefaultCurrency, Interval: &annual}

		merged := mergeObservation(current, obs)

		assert.Equal(t, StatusPending, merged.Status)
		assert.Equal(t, floatPtr(999), merged.Amount)
		assert.Equal(t, &annual, merged.Interval)
	})

	t.Run("never clears metadata on a sparse observation", func(t *testing.T) {
		current := Order{OrderID: "O-1", Status: StatusPending, Amount: floatPtr(999), Currency: "USD", Interval: &annual}
		obs := Order{OrderID: "O-1", Status: StatusCompleted, Currency: DefaultCurrency}

		merged := mergeObservation(current, obs)

		assert.Equal(t, StatusCompleted, merged.Status)
		assert.Equal(t, floatPtr(999), merged.Amount)
		assert.Equal(t, "USD", merged.Currency)
		assert.Equal(t, &annual, merged.Interval)
	})
}
