package billing

import (
	"context"
	"encoding/json"
	"time"
)

// AuditSink records operator-facing audit events. Trust-gap entries are the
// important ones: they mark webhook payloads whose self-reported status was
// never verified against the gateway, so operators can audit discrepancies.
type AuditSink interface {
	CreateAuditEvent(ctx context.Context, event NewAuditEvent) (*AuditEvent, error)
	GetAuditEvents(ctx context.Context, query AuditEventQuery) ([]AuditEvent, error)
}

type AuditEventKind string

const (
	AuditWebhookReceived  AuditEventKind = "webhook_received"
	AuditWebhookDuplicate AuditEventKind = "webhook_duplicate"
	AuditTrustGap         AuditEventKind = "trust_gap"
	AuditStatusApplied    AuditEventKind = "status_applied"
	AuditStatusSkipped    AuditEventKind = "status_skipped"
)

type NewAuditEvent struct {
	OrderID         string          `json:"order_id"`
	Kind            AuditEventKind  `json:"kind"`
	ProviderEventID string          `json:"provider_event_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type AuditEvent struct {
	EventID string `json:"event_id"`
	NewAuditEvent
}

type AuditEventQuery struct {
	OrderIDs []string         `json:"order_ids,omitempty" url:"order_ids,omitempty" form:"order_ids,omitempty"`
	Kinds    []AuditEventKind `json:"kinds,omitempty" url:"kinds,omitempty" form:"kinds,omitempty"`
}
