package billing

import "context"

//go:generate mockgen -source repo.go -destination mock_repo.go -package billing

type OrderRepo interface {
	TxOrderRepo
	InTransaction(ctx context.Context, fn func(repo TxOrderRepo) error) error
}

type TxOrderRepo interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	// GetOrderForUpdate locks the order row for the rest of the transaction,
	// making each orderID a single-writer critical section.
	GetOrderForUpdate(ctx context.Context, orderID string) (Order, error)
	CreateOrder(ctx context.Context, order Order) error
	UpdateOrder(ctx context.Context, order Order) error

	CreateEvent(ctx context.Context, event WebhookEvent) error
	GetEvents(ctx context.Context, query *EventQuery) ([]WebhookEvent, error)
}
