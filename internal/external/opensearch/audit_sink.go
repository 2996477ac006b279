package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lumora-app/billing-service/internal/domain/billing"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go"
)

var _ billing.AuditSink = (*AuditSink)(nil)

// AuditSink stores billing audit events in OpenSearch so operators can
// search trust-gap and skipped-transition records without touching the
// primary database.
type AuditSink struct {
	client *opensearch.Client
	index  string
}

func NewAuditSink(ctx context.Context, urls []string, index string) (*AuditSink, error) {
	if len(urls) == 0 {
		return nil, errors.New("no OpenSearch addresses configured")
	}

	cfg := opensearch.Config{
		Addresses: urls,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
		},
	}
	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}

	sink := &AuditSink{client: client, index: index}
	if err := sink.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *AuditSink) ensureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("indices.exists: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"event_id":          map[string]any{"type": "keyword"},
				"order_id":          map[string]any{"type": "keyword"},
				"kind":              map[string]any{"type": "keyword"},
				"provider_event_id": map[string]any{"type": "keyword"},
				"created_at":        map[string]any{"type": "date"},
				"data":              map[string]any{"type": "object", "enabled": true},
			},
		},
		"settings": map[string]any{
			"number_of_replicas": 0, // dev-friendly; change in prod
		},
	}
	buf, _ := json.Marshal(body)
	cr, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithBody(bytes.NewReader(buf)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("indices.create: %w", err)
	}
	defer cr.Body.Close()
	if cr.IsError() {
		return fmt.Errorf("indices.create error: %s", cr.String())
	}
	return nil
}

type osAuditDoc struct {
	EventID         string                 `json:"event_id"`
	OrderID         string                 `json:"order_id"`
	Kind            billing.AuditEventKind `json:"kind"`
	ProviderEventID string                 `json:"provider_event_id,omitempty"`
	Data            json.RawMessage        `json:"data,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func (s *AuditSink) CreateAuditEvent(ctx context.Context, ev billing.NewAuditEvent) (*billing.AuditEvent, error) {
	eventID := uuid.NewString()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	doc := osAuditDoc{
		EventID:         eventID,
		OrderID:         ev.OrderID,
		Kind:            ev.Kind,
		ProviderEventID: ev.ProviderEventID,
		Data:            ev.Data,
		CreatedAt:       ev.CreatedAt.UTC(),
	}
	payload, _ := json.Marshal(doc)
	res, err := s.client.Index(
		s.index,
		bytes.NewReader(payload),
		s.client.Index.WithDocumentID(eventID),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("index error: %s", res.String())
	}
	return &billing.AuditEvent{
		EventID:       eventID,
		NewAuditEvent: ev,
	}, nil
}

func (s *AuditSink) GetAuditEvents(ctx context.Context, query billing.AuditEventQuery) ([]billing.AuditEvent, error) {
	filters := make([]map[string]any, 0, 2)
	if vals := nonEmpty(query.OrderIDs); len(vals) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"order_id": vals},
		})
	}
	if len(query.Kinds) > 0 {
		vals := make([]string, 0, len(query.Kinds))
		for _, k := range query.Kinds {
			if k != "" {
				vals = append(vals, string(k))
			}
		}
		if len(vals) > 0 {
			filters = append(filters, map[string]any{
				"terms": map[string]any{"kind": vals},
			})
		}
	}

	body := map[string]any{
		"size": 500,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": filters,
			},
		},
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "asc"}},
		},
	}
	raw, _ := json.Marshal(body)

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(raw)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	out := make([]billing.AuditEvent, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		var doc osAuditDoc
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode hit: %w", err)
		}
		evtID := doc.EventID
		if evtID == "" {
			evtID = h.ID
		}
		out = append(out, billing.AuditEvent{
			EventID: evtID,
			NewAuditEvent: billing.NewAuditEvent{
				OrderID:         doc.OrderID,
				Kind:            doc.Kind,
				ProviderEventID: doc.ProviderEventID,
				Data:            doc.Data,
				CreatedAt:       doc.CreatedAt,
			},
		})
	}
	return out, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
