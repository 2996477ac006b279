package order_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// PgOrderRepo is the main repository.
type PgOrderRepo struct {
	pg *postgres.Postgres
	repo
}

func NewPgOrderRepo(pg *postgres.Postgres) billing.OrderRepo {
	return &PgOrderRepo{
		pg:   pg,
		repo: repo{db: pg.Pool, builder: pg.Builder},
	}
}

func (r *PgOrderRepo) InTransaction(ctx context.Context, fn func(repo billing.TxOrderRepo) error) error {
	return r.pg.InTransaction(ctx, func(tx postgres.Executor) error {
		txRepo := &repo{db: tx, builder: r.pg.Builder}
		return fn(txRepo)
	})
}

type repo struct {
	db      postgres.Executor
	builder squirrel.StatementBuilderType
}

const orderColumns = "id, status, amount, currency, billing_interval, created_at, updated_at"

func (r *repo) GetOrder(ctx context.Context, orderID string) (billing.Order, error) {
	return r.getOrder(ctx, orderID, false)
}

// GetOrderForUpdate locks the order row until the surrounding transaction
// ends. Outside a transaction the lock is released immediately, so only
// call it through InTransaction.
func (r *repo) GetOrderForUpdate(ctx context.Context, orderID string) (billing.Order, error) {
	return r.getOrder(ctx, orderID, true)
}

func (r *repo) getOrder(ctx context.Context, orderID string, forUpdate bool) (billing.Order, error) {
	query := r.builder.Select(orderColumns).
		From("orders").
		Where(squirrel.Eq{"id": orderID})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return billing.Order{}, fmt.Errorf("build select query: %w", err)
	}

	row := r.db.QueryRow(ctx, sql, args...)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return billing.Order{}, billing.ErrOrderNotFound
	}
	return o, err
}

func (r *repo) CreateOrder(ctx context.Context, o billing.Order) error {
	query, args, err := r.builder.Insert("orders").
		Columns("id", "status", "amount", "currency", "billing_interval", "created_at", "updated_at").
		Values(o.OrderID, o.Status, o.Amount, o.Currency, intervalValue(o.Interval), o.CreatedAt, o.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return billing.ErrOrderAlreadyExists
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *repo) UpdateOrder(ctx context.Context, o billing.Order) error {
	query, args, err := r.builder.Update("orders").
		Set("status", o.Status).
		Set("amount", o.Amount).
		Set("currency", o.Currency).
		Set("billing_interval", intervalValue(o.Interval)).
		Set("updated_at", o.UpdatedAt).
		Where(squirrel.Eq{"id": o.OrderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func (r *repo) CreateEvent(ctx context.Context, event billing.WebhookEvent) error {
	query, args, err := r.builder.Insert("order_webhook_events").
		Columns("id", "order_id", "provider_event_id", "payload", "created_at").
		Values(event.EventID, event.OrderID, event.ProviderEventID, event.Payload, event.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert event query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return billing.ErrEventAlreadyStored
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *repo) GetEvents(ctx context.Context, q *billing.EventQuery) ([]billing.WebhookEvent, error) {
	query := r.builder.Select("id", "order_id", "provider_event_id", "payload", "created_at").
		From("order_webhook_events").
		OrderBy("created_at DESC")

	if len(q.OrderIDs) > 0 {
		query = query.Where(squirrel.Eq{"order_id": q.OrderIDs})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return parseEventRows(rows)
}

func scanOrder(row pgx.Row) (billing.Order, error) {
	var o billing.Order
	var rawStatus string
	var rawInterval *string

	err := row.Scan(&o.OrderID, &rawStatus, &o.Amount, &o.Currency, &rawInterval, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return billing.Order{}, err
	}

	status, err := billing.NewStatus(rawStatus)
	if err != nil {
		return billing.Order{}, fmt.Errorf("invalid status in database: %w", err)
	}
	o.Status = status

	if rawInterval != nil {
		interval, err := billing.NewInterval(*rawInterval)
		if err != nil {
			return billing.Order{}, fmt.Errorf("invalid interval in database: %w", err)
		}
		o.Interval = &interval
	}

	return o, nil
}

func parseEventRows(rows pgx.Rows) ([]billing.WebhookEvent, error) {
	var events []billing.WebhookEvent
	for rows.Next() {
		var e billing.WebhookEvent
		if err := rows.Scan(&e.EventID, &e.OrderID, &e.ProviderEventID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}

func intervalValue(i *billing.Interval) *string {
	if i == nil {
		return nil
	}
	s := string(*i)
	return &s
}
