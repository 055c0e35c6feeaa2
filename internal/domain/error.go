package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrPaymentNotFound    = errors.New("invalid payment: not found")
	ErrProductNotFound    = errors.New("invalid product: not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnknownProvider    = errors.New("unknown payment provider")
	ErrMalformedPayload   = errors.New("invalid payment: malformed correlation payload")
	ErrRecurringNotSaved  = errors.New("no saved recurring details for subscription")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsInfrastructure reports whether err originates from an unavailable or
// failing backing service (database, cache) rather than from business state.
// The webhook ingress maps these to 503 so the provider retries the delivery.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrOperationFailed) ||
		errors.Is(err, ErrReadDatabaseRow) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrInvalidExecContext)
}
