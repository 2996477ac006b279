package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumora-app/billing-service/internal/domain/gateway"
	"github.com/lumora-app/billing-service/pkg/logger"
	"github.com/lumora-app/billing-service/pkg/metrics"

	"github.com/google/uuid"
)

// ReconcilerService merges order-state observations from client-initiated
// confirmation polls and provider-pushed webhooks into one authoritative
// decision. The gateway is the source of truth; the local store only keeps
// the latest confirmed state under the monotonic transition rule.
type ReconcilerService struct {
	orderRepo OrderRepo
	gateway   gateway.Client
	audit     AuditSink // optional, nil when no sink is configured
	log       *logger.Logger
}

func NewReconcilerService(orderRepo OrderRepo, gw gateway.Client, audit AuditSink, l *logger.Logger) *ReconcilerService {
	return &ReconcilerService{
		orderRepo: orderRepo,
		gateway:   gw,
		audit:     audit,
		log:       l,
	}
}

// Confirm resolves the current authoritative state of one order. A pending
// order is a normal successful result, never an error. Gateway failures
// propagate unmodified in kind (gateway.ErrMisconfigured, *gateway.Error)
// so the boundary can classify them.
func (s *ReconcilerService) Confirm(ctx context.Context, orderID string) (ReconciliationResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return ReconciliationResult{}, fmt.Errorf("%w: missing order_id", ErrInvalidRequest)
	}

	gwOrder, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return ReconciliationResult{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	stored, err := s.applyObservation(ctx, observationFromGateway(gwOrder))
	if err != nil {
		return ReconciliationResult{}, fmt.Errorf("apply observation for %s: %w", orderID, err)
	}

	metrics.Reconciliations.WithLabelValues(string(stored.Status)).Inc()

	return ReconciliationResult{
		Status:   stored.Status,
		Interval: stored.Interval,
		Amount:   stored.Amount,
		Currency: stored.Currency,
	}, nil
}

// ProcessOrderWebhook records the receipt of a provider-pushed event and,
// after independent verification against the gateway, applies the verified
// status. The payload's self-reported status is never applied on its own:
// when verification fails a trust-gap audit entry is recorded instead.
func (s *ReconcilerService) ProcessOrderWebhook(ctx context.Context, wh OrderWebhook) error {
	if wh.OrderID == "" {
		metrics.WebhooksReceived.WithLabelValues("unactionable").Inc()
		s.log.Warn("webhook without order_id ignored: event_id=%s", wh.EventID)
		return nil
	}

	receipt := WebhookEvent{
		EventID:         uuid.NewString(),
		OrderID:         wh.OrderID,
		ProviderEventID: wh.EventID,
		Payload:         wh.Raw,
		CreatedAt:       time.Now().UTC(),
	}
	if receipt.ProviderEventID == "" {
		// No provider id means no dedupe key; keep the receipt anyway.
		receipt.ProviderEventID = receipt.EventID
	}
	if receipt.Payload == nil {
		receipt.Payload, _ = json.Marshal(wh)
	}

	if err := s.orderRepo.CreateEvent(ctx, receipt); err != nil {
		if errors.Is(err, ErrEventAlreadyStored) {
			metrics.WebhooksReceived.WithLabelValues("duplicate").Inc()
			s.log.Info("duplicate webhook ignored: order_id=%s provider_event_id=%s",
				wh.OrderID, wh.EventID)
			s.recordAudit(ctx, wh.OrderID, AuditWebhookDuplicate, wh.EventID, receipt.Payload)
			return nil
		}
		metrics.WebhooksReceived.WithLabelValues("failed").Inc()
		return fmt.Errorf("store webhook receipt: %w", err)
	}
	s.recordAudit(ctx, wh.OrderID, AuditWebhookReceived, wh.EventID, receipt.Payload)

	gwOrder, err := s.gateway.FetchOrder(ctx, wh.OrderID)
	if err != nil {
		metrics.TrustGaps.Inc()
		s.log.Warn("trust gap: webhook status left unverified: order_id=%s provider_event_id=%s reported_status=%s error=%v",
			wh.OrderID, wh.EventID, wh.Status, err)
		data, _ := json.Marshal(map[string]string{
			"reported_status": wh.Status,
			"verify_error":    err.Error(),
		})
		s.recordAudit(ctx, wh.OrderID, AuditTrustGap, wh.EventID, data)
		return nil
	}

	if _, err := s.applyObservation(ctx, observationFromGateway(gwOrder)); err != nil {
		metrics.WebhooksReceived.WithLabelValues("failed").Inc()
		return fmt.Errorf("apply verified observation for %s: %w", wh.OrderID, err)
	}

	metrics.WebhooksReceived.WithLabelValues("accepted").Inc()
	return nil
}

func (s *ReconcilerService) GetOrderByID(ctx context.Context, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, fmt.Errorf("%w: missing order_id", ErrInvalidRequest)
	}
	return s.orderRepo.GetOrder(ctx, orderID)
}

func (s *ReconcilerService) GetEvents(ctx context.Context, orderID string) ([]WebhookEvent, error) {
	query := NewEventQueryBuilder().
		WithOrderIDs(orderID).
		Build()

	events, err := s.orderRepo.GetEvents(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get events for order %s: %w", orderID, err)
	}
	return events, nil
}

// observationFromGateway normalizes a raw gateway order into the closed
// domain vocabulary. Unrecognized statuses become unknown, metadata outside
// the closed interval set stays absent, a missing currency falls back.
func observationFromGateway(gw gateway.Order) Order {
	now := time.Now().UTC()

	obs := Order{
		OrderID:   gw.OrderID,
		Status:    NormalizeStatus(gw.RawStatus),
		Amount:    gw.Amount,
		Currency:  gw.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if obs.Currency == "" {
		obs.Currency = DefaultCurrency
	}
	if interval, ok := ResolveInterval(gw.CustomInfo); ok {
		obs.Interval = &interval
	}
	return obs
}

// applyObservation merges one gateway-confirmed observation into the store
// inside a single-writer-per-order critical section. Stale transitions are
// skipped, not errored: the recorded state stays authoritative and is what
// gets reported back.
func (s *ReconcilerService) applyObservation(ctx context.Context, obs Order) (Order, error) {
	var stored Order
	var skippedFrom Status

	err := s.orderRepo.InTransaction(ctx, func(tx TxOrderRepo) error {
		current, err := tx.GetOrderForUpdate(ctx, obs.OrderID)
		if errors.Is(err, ErrOrderNotFound) {
			if createErr := tx.CreateOrder(ctx, obs); createErr != nil {
				if errors.Is(createErr, ErrOrderAlreadyExists) {
					// Lost the create race; lock the winner's row and merge.
					current, err = tx.GetOrderForUpdate(ctx, obs.OrderID)
					if err != nil {
						return fmt.Errorf("reload order: %w", err)
					}
				} else {
					return fmt.Errorf("create order: %w", createErr)
				}
			} else {
				stored = obs
				return nil
			}
		} else if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		merged := mergeObservation(current, obs)
		if current.Status != obs.Status && merged.Status != obs.Status {
			skippedFrom = current.Status
		}

		if err := tx.UpdateOrder(ctx, merged); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		stored = merged
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if skippedFrom != "" {
		metrics.TransitionsSkipped.Inc()
		s.log.Warn("stale status transition skipped: order_id=%s stored=%s observed=%s",
			obs.OrderID, skippedFrom, obs.Status)
		data, _ := json.Marshal(map[string]string{
			"stored_status":   string(skippedFrom),
			"observed_status": string(obs.Status),
		})
		s.recordAudit(ctx, obs.OrderID, AuditStatusSkipped, "", data)
	}

	return stored, nil
}

// mergeObservation folds a fresh observation into the stored order. The
// status only moves along valid transitions; amount, currency and interval
// fill in once known and never regress to absent.
func mergeObservation(current, obs Order) Order {
	merged := current

	if current.Status != obs.Status && current.Status.CanBeUpdatedTo(obs.Status) {
		merged.Status = obs.Status
	}
	if obs.Amount != nil {
		merged.Amount = obs.Amount
	}
	if obs.Currency != "" && obs.Currency != DefaultCurrency {
		merged.Currency = obs.Currency
	}
	if merged.Currency == "" {
		merged.Currency = DefaultCurrency
	}
	if obs.Interval != nil {
		merged.Interval = obs.Interval
	}
	merged.UpdatedAt = obs.UpdatedAt

	return merged
}

func (s *ReconcilerService) recordAudit(ctx context.Context, orderID string, kind AuditEventKind, providerEventID string, data json.RawMessage) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.CreateAuditEvent(ctx, NewAuditEvent{
		OrderID:         orderID,
		Kind:            kind,
		ProviderEventID: providerEventID,
		Data:            data,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("failed to record audit event: order_id=%s kind=%s error=%v", orderID, kind, err)
	}
}
