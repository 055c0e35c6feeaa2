package model

import "time"

type WebhookErrorType string

const (
	// WebhookErrorPermanent will never succeed on retry (unknown payment,
	// malformed correlation id). The provider is told not to retry.
	WebhookErrorPermanent WebhookErrorType = "permanent"
	// WebhookErrorTransient is a business failure worth retrying.
	WebhookErrorTransient WebhookErrorType = "transient"
	// WebhookErrorInfrastructure means the database or cache was unavailable.
	WebhookErrorInfrastructure WebhookErrorType = "infrastructure"
	WebhookErrorUnknown        WebhookErrorType = "unknown"
)

// FailedWebhook is the dead-letter record for a webhook delivery that could
// not be processed. The verbatim payload is kept for manual replay; rows are
// never auto-deleted.
type FailedWebhook struct {
	ID           string // UUID
	Provider     ProviderID
	Payload      []byte // verbatim request body
	ErrorMessage string
	ErrorType    WebhookErrorType
	RetryCount   int
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}
