package billing

import "errors"

var (
	// ErrInvalidRequest is returned when caller input fails validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrOrderNotFound is returned when no order row exists locally.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderAlreadyExists is returned when an insert hits an existing row.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrInvalidStatus is returned when a stored status is outside the closed enum.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrInvalidInterval is returned when a value is outside the closed interval set.
	ErrInvalidInterval = errors.New("invalid billing interval")

	// ErrEventAlreadyStored is returned when a webhook receipt with the same
	// (order_id, provider_event_id) already exists.
	ErrEventAlreadyStored = errors.New("event already stored")
)
